package spaceapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// TriggerPerson identifies this integration in state change requests
	TriggerPerson = "Home Assistant SpaceAPI"

	messageSwitchedOn  = "Space was switched on"
	messageSwitchedOff = "Space was switched off"
)

// Snapshot is the last successfully parsed SpaceAPI document. It is
// immutable once built and is replaced wholesale by every poll.
type Snapshot struct {
	Raw       json.RawMessage
	Data      map[string]interface{}
	FetchedAt time.Time
}

// StateUpdate is the POST body sent to /api/space/state
type StateUpdate struct {
	Open          bool   `json:"open"`
	Message       string `json:"message"`
	TriggerPerson string `json:"trigger_person"`
}

// WriteResponse is the server reply to a state update
type WriteResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// NewStateUpdate builds the request body for the given open state
func NewStateUpdate(open bool) StateUpdate {
	message := messageSwitchedOff
	if open {
		message = messageSwitchedOn
	}
	return StateUpdate{
		Open:          open,
		Message:       message,
		TriggerPerson: TriggerPerson,
	}
}

// ParseSnapshot decodes a SpaceAPI response body. Documents that are valid
// JSON but not objects are kept as Raw with a nil Data map.
func ParseSnapshot(body []byte, fetchedAt time.Time) (*Snapshot, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode SpaceAPI document: %w", err)
	}

	snap := &Snapshot{
		Raw:       append(json.RawMessage(nil), body...),
		FetchedAt: fetchedAt,
	}
	if obj, ok := doc.(map[string]interface{}); ok {
		snap.Data = obj
	}
	return snap, nil
}

// Open returns state.open, or false when the snapshot is nil or the field
// is missing or not a boolean.
func (s *Snapshot) Open() bool {
	if s == nil {
		return false
	}
	state, ok := s.Data["state"].(map[string]interface{})
	if !ok {
		return false
	}
	open, ok := state["open"].(bool)
	return ok && open
}

// SpaceName returns the "space" field when it is a non-blank string
func (s *Snapshot) SpaceName() (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.Data["space"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}
