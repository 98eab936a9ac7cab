package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/shadowstate"
	"spaceapiclient/internal/spaceapi"

	"go.uber.org/zap"
)

// DefaultSettleDelay is how long to wait after a successful write before
// trusting a fresh read
const DefaultSettleDelay = 500 * time.Millisecond

// StateWriter is the write side of the SpaceAPI client
type StateWriter interface {
	SetSpaceState(ctx context.Context, open bool) (*spaceapi.WriteResponse, error)
}

// ToggleError is the user-visible failure of a turn on/off request
type ToggleError struct {
	Open bool
	Err  error
}

func (e *ToggleError) Error() string {
	action := "off"
	if e.Open {
		action = "on"
	}
	return fmt.Sprintf("Failed to turn %s space: %v", action, e.Err)
}

func (e *ToggleError) Unwrap() error {
	return e.Err
}

// Switch writes the space's open state. At most one write is in flight per
// switch; requests arriving while one is running are dropped.
type Switch struct {
	base
	writer      StateWriter
	logger      *zap.Logger
	clock       clock.Clock
	settleDelay time.Duration
	tracker     *shadowstate.SwitchTracker

	mu         sync.Mutex
	optimistic Tristate
	switching  bool
}

// NewSwitch creates the space status switch
func NewSwitch(entryID, hostURL string, source DataSource, writer StateWriter, logger *zap.Logger, clk clock.Clock) *Switch {
	return &Switch{
		base: base{
			uniqueID: entryID,
			entryID:  entryID,
			hostURL:  hostURL,
			source:   source,
		},
		writer:      writer,
		logger:      logger.Named("switch"),
		clock:       clk,
		settleDelay: DefaultSettleDelay,
		tracker:     shadowstate.NewSwitchTracker("space_status_switch"),
		optimistic:  UnknownState(),
	}
}

// SetSettleDelay overrides the post-write settle delay
func (s *Switch) SetSettleDelay(d time.Duration) {
	s.settleDelay = d
}

// PlatformName identifies the platform this entity belongs to
func (s *Switch) PlatformName() string {
	return "switch"
}

// Start subscribes to coordinator updates
func (s *Switch) Start() error {
	s.start()
	s.logger.Debug("Switch added", zap.String("unique_id", s.uniqueID))
	return nil
}

// Stop unsubscribes from coordinator updates
func (s *Switch) Stop() {
	s.stop()
	s.logger.Debug("Switch removed", zap.String("unique_id", s.uniqueID))
}

// IsOn returns the optimistic value while one is set, otherwise the last
// snapshot's open state, otherwise false.
func (s *Switch) IsOn() bool {
	s.mu.Lock()
	optimistic := s.optimistic
	s.mu.Unlock()

	return Display(false, optimistic, s.confirmed())
}

// IsSwitching reports whether a write is in flight
func (s *Switch) IsSwitching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switching
}

// AssumedState is always false: the switch reconciles with the server
func (s *Switch) AssumedState() bool {
	return false
}

// ShadowState returns the switch's action record
func (s *Switch) ShadowState() *shadowstate.SwitchShadowState {
	s.captureInputs()
	return s.tracker.GetState()
}

// GetShadowState implements plugin.ShadowStateProvider
func (s *Switch) GetShadowState() shadowstate.EntityShadowState {
	return s.ShadowState()
}

// TurnOn requests the space be opened
func (s *Switch) TurnOn(ctx context.Context) error {
	return s.toggle(ctx, true)
}

// TurnOff requests the space be closed
func (s *Switch) TurnOff(ctx context.Context) error {
	return s.toggle(ctx, false)
}

func (s *Switch) confirmed() Tristate {
	snap := s.source.Data()
	if snap == nil {
		return UnknownState()
	}
	return ConfirmedState(snap.Open())
}

func (s *Switch) toggle(ctx context.Context, open bool) error {
	action := shadowstate.ActionTurnOff
	if open {
		action = shadowstate.ActionTurnOn
	}

	s.mu.Lock()
	if s.switching {
		s.mu.Unlock()
		s.logger.Debug("Ignoring request - switch operation already in progress",
			zap.String("action", action))
		s.tracker.RecordAction(shadowstate.ActionRecord{
			ActionType: shadowstate.ActionIgnored,
			Outcome:    shadowstate.OutcomeSkipped,
			Reason:     "switch operation already in progress",
			Details:    map[string]interface{}{"requested": action},
		})
		return nil
	}
	s.switching = true
	s.optimistic = OptimisticState(open)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.switching = false
		s.mu.Unlock()
		s.syncTracker()
		s.writeState()
	}()

	s.captureInputs()
	s.tracker.SnapshotInputsForAction()
	s.syncTracker()
	s.writeState()

	s.logger.Debug("Sending space state update", zap.Bool("open", open))
	if _, err := s.writer.SetSpaceState(ctx, open); err != nil {
		s.logger.Error("Failed to send space state update",
			zap.Bool("open", open),
			zap.Error(err))
		s.clearOptimistic()
		s.source.RequestRefresh(ctx)
		s.tracker.RecordAction(shadowstate.ActionRecord{
			ActionType: action,
			Outcome:    shadowstate.OutcomeFailed,
			Reason:     "write request failed",
			Error:      err.Error(),
		})
		return &ToggleError{Open: open, Err: err}
	}
	s.logger.Debug("Space state update completed", zap.Bool("open", open))

	s.clock.Sleep(s.settleDelay)
	s.clearOptimistic()
	s.source.RequestRefresh(ctx)

	s.tracker.RecordAction(shadowstate.ActionRecord{
		ActionType: action,
		Outcome:    shadowstate.OutcomeSucceeded,
		Reason:     "write request accepted",
		Details:    map[string]interface{}{"confirmedOpen": s.source.Data().Open()},
	})
	return nil
}

func (s *Switch) clearOptimistic() {
	s.mu.Lock()
	s.optimistic = UnknownState()
	s.mu.Unlock()
	s.syncTracker()
	s.writeState()
}

func (s *Switch) captureInputs() {
	snap := s.source.Data()
	inputs := map[string]interface{}{
		"hasSnapshot":  snap != nil,
		"snapshotOpen": snap.Open(),
	}
	s.tracker.UpdateCurrentInputs(inputs)
}

func (s *Switch) syncTracker() {
	s.mu.Lock()
	var optimistic *bool
	if s.optimistic.Kind == Optimistic {
		v := s.optimistic.Value
		optimistic = &v
	}
	switching := s.switching
	s.mu.Unlock()

	s.tracker.SetRuntime(optimistic, switching)
}
