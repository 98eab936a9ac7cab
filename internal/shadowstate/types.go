package shadowstate

import "time"

// Action types recorded for the switch entity
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
	ActionIgnored = "ignored"
)

// Outcomes recorded for switch actions
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// maxHistory bounds the number of actions kept per entity
const maxHistory = 20

// EntityShadowState is the interface that all entity shadow states must implement
type EntityShadowState interface {
	GetCurrentInputs() map[string]interface{}
	GetLastActionInputs() map[string]interface{}
	GetOutputs() interface{}
	GetMetadata() StateMetadata
}

// StateMetadata contains metadata about the shadow state
type StateMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	EntityName  string    `json:"entityName"`
}

// ActionRecord represents a single action taken by an entity
type ActionRecord struct {
	Timestamp  time.Time              `json:"timestamp"`
	ActionType string                 `json:"actionType"`
	Outcome    string                 `json:"outcome"`
	Reason     string                 `json:"reason"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// SwitchShadowState captures the inputs and decisions of the space status switch
type SwitchShadowState struct {
	Entity   string        `json:"entity"`
	Inputs   SwitchInputs  `json:"inputs"`
	Outputs  SwitchOutputs `json:"outputs"`
	Metadata StateMetadata `json:"metadata"`
}

// SwitchInputs tracks current and last-action input values
type SwitchInputs struct {
	Current      map[string]interface{} `json:"current"`
	AtLastAction map[string]interface{} `json:"atLastAction"`
}

// SwitchOutputs tracks what the switch did
type SwitchOutputs struct {
	Optimistic *bool          `json:"optimistic"`
	Switching  bool           `json:"switching"`
	LastAction *ActionRecord  `json:"lastAction,omitempty"`
	History    []ActionRecord `json:"history"`
}

// GetCurrentInputs implements EntityShadowState
func (s *SwitchShadowState) GetCurrentInputs() map[string]interface{} {
	return s.Inputs.Current
}

// GetLastActionInputs implements EntityShadowState
func (s *SwitchShadowState) GetLastActionInputs() map[string]interface{} {
	return s.Inputs.AtLastAction
}

// GetOutputs implements EntityShadowState
func (s *SwitchShadowState) GetOutputs() interface{} {
	return s.Outputs
}

// GetMetadata implements EntityShadowState
func (s *SwitchShadowState) GetMetadata() StateMetadata {
	return s.Metadata
}

// NewSwitchShadowState creates a new switch shadow state
func NewSwitchShadowState(entity string) *SwitchShadowState {
	return &SwitchShadowState{
		Entity: entity,
		Inputs: SwitchInputs{
			Current:      make(map[string]interface{}),
			AtLastAction: make(map[string]interface{}),
		},
		Outputs: SwitchOutputs{
			History: make([]ActionRecord, 0),
		},
		Metadata: StateMetadata{
			LastUpdated: time.Now(),
			EntityName:  entity,
		},
	}
}
