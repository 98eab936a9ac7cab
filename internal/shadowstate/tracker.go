package shadowstate

import (
	"sync"
	"time"
)

// Tracker collects shadow state providers for all entities
type Tracker struct {
	mu             sync.RWMutex
	stateProviders map[string]func() EntityShadowState
}

// NewTracker creates a new shadow state tracker
func NewTracker() *Tracker {
	return &Tracker{
		stateProviders: make(map[string]func() EntityShadowState),
	}
}

// RegisterEntityProvider registers a function that provides an entity's shadow state dynamically
func (t *Tracker) RegisterEntityProvider(name string, provider func() EntityShadowState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateProviders[name] = provider
}

// GetEntityState retrieves an entity's shadow state
func (t *Tracker) GetEntityState(name string) (EntityShadowState, bool) {
	t.mu.RLock()
	provider, ok := t.stateProviders[name]
	t.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return provider(), true
}

// GetAllEntityStates retrieves all entity shadow states
func (t *Tracker) GetAllEntityStates() map[string]EntityShadowState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]EntityShadowState, len(t.stateProviders))
	for k, provider := range t.stateProviders {
		states[k] = provider()
	}
	return states
}

// SwitchTracker manages shadow state for the space status switch
type SwitchTracker struct {
	mu    sync.RWMutex
	state *SwitchShadowState
}

// NewSwitchTracker creates a new switch shadow state tracker
func NewSwitchTracker(entity string) *SwitchTracker {
	return &SwitchTracker{
		state: NewSwitchShadowState(entity),
	}
}

// UpdateCurrentInputs merges the given input values
func (st *SwitchTracker) UpdateCurrentInputs(inputs map[string]interface{}) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for key, value := range inputs {
		st.state.Inputs.Current[key] = value
	}
	st.state.Metadata.LastUpdated = time.Now()
}

// SnapshotInputsForAction captures current inputs as the at-last-action snapshot
func (st *SwitchTracker) SnapshotInputsForAction() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.Inputs.AtLastAction = make(map[string]interface{}, len(st.state.Inputs.Current))
	for key, value := range st.state.Inputs.Current {
		st.state.Inputs.AtLastAction[key] = value
	}
}

// SetRuntime records the optimistic value and the switching flag
func (st *SwitchTracker) SetRuntime(optimistic *bool, switching bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if optimistic != nil {
		v := *optimistic
		st.state.Outputs.Optimistic = &v
	} else {
		st.state.Outputs.Optimistic = nil
	}
	st.state.Outputs.Switching = switching
	st.state.Metadata.LastUpdated = time.Now()
}

// RecordAction appends an action to the history and makes it the last action
func (st *SwitchTracker) RecordAction(record ActionRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	st.state.Outputs.History = append(st.state.Outputs.History, record)
	if len(st.state.Outputs.History) > maxHistory {
		st.state.Outputs.History = st.state.Outputs.History[len(st.state.Outputs.History)-maxHistory:]
	}

	last := record
	st.state.Outputs.LastAction = &last
	st.state.Metadata.LastUpdated = record.Timestamp
}

// GetState returns a deep copy of the current shadow state
func (st *SwitchTracker) GetState() *SwitchShadowState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	stateCopy := &SwitchShadowState{
		Entity: st.state.Entity,
		Inputs: SwitchInputs{
			Current:      make(map[string]interface{}, len(st.state.Inputs.Current)),
			AtLastAction: make(map[string]interface{}, len(st.state.Inputs.AtLastAction)),
		},
		Outputs: SwitchOutputs{
			Switching: st.state.Outputs.Switching,
			History:   make([]ActionRecord, len(st.state.Outputs.History)),
		},
		Metadata: st.state.Metadata,
	}

	for k, v := range st.state.Inputs.Current {
		stateCopy.Inputs.Current[k] = v
	}
	for k, v := range st.state.Inputs.AtLastAction {
		stateCopy.Inputs.AtLastAction[k] = v
	}
	copy(stateCopy.Outputs.History, st.state.Outputs.History)

	if st.state.Outputs.Optimistic != nil {
		v := *st.state.Outputs.Optimistic
		stateCopy.Outputs.Optimistic = &v
	}
	if st.state.Outputs.LastAction != nil {
		last := *st.state.Outputs.LastAction
		stateCopy.Outputs.LastAction = &last
	}

	return stateCopy
}
