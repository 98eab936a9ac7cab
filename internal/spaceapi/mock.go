package spaceapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MockClient implements SpaceClient interface for testing
type MockClient struct {
	hostURL   string
	hasAPIKey bool

	stateMu    sync.RWMutex
	open       bool
	spaceName  string
	applyWrite bool
	getErr     error
	setErr     error

	// gate, when set, blocks SetSpaceState until a value is received
	gate chan struct{}

	callsMu  sync.Mutex
	getCalls int
	setCalls []SetCall
}

// SetCall records a SetSpaceState call for testing
type SetCall struct {
	Open bool
	Time time.Time
}

// NewMockClient creates a new mock SpaceAPI client. Writes are applied to
// the mock server state unless SetApplyWrites(false) is called.
func NewMockClient(hostURL string, hasAPIKey bool) *MockClient {
	return &MockClient{
		hostURL:    hostURL,
		hasAPIKey:  hasAPIKey,
		spaceName:  "Mock Space",
		applyWrite: true,
		setCalls:   make([]SetCall, 0),
	}
}

// HostURL returns the configured host
func (m *MockClient) HostURL() string {
	return m.hostURL
}

// HasAPIKey reports whether the mock was created with a key
func (m *MockClient) HasAPIKey() bool {
	return m.hasAPIKey
}

// GetSpaceState returns a snapshot of the mock server state
func (m *MockClient) GetSpaceState(ctx context.Context) (*Snapshot, error) {
	m.callsMu.Lock()
	m.getCalls++
	m.callsMu.Unlock()

	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	doc := map[string]interface{}{
		"api_compatibility": []string{"15"},
		"state":             map[string]interface{}{"open": m.open},
	}
	if m.spaceName != "" {
		doc["space"] = m.spaceName
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, &ClientError{Msg: err.Error(), Err: err}
	}
	return ParseSnapshot(body, time.Now())
}

// SetSpaceState records the call and optionally applies it
func (m *MockClient) SetSpaceState(ctx context.Context, open bool) (*WriteResponse, error) {
	if !m.hasAPIKey {
		return nil, &AuthenticationError{Msg: "API key is required to set space state"}
	}

	m.callsMu.Lock()
	m.setCalls = append(m.setCalls, SetCall{Open: open, Time: time.Now()})
	gate := m.gate
	m.callsMu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &ClientError{Msg: ctx.Err().Error(), Err: ctx.Err()}
		}
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.setErr != nil {
		return nil, m.setErr
	}
	if m.applyWrite {
		m.open = open
	}
	return &WriteResponse{StatusCode: 200}, nil
}

// SetOpen sets the mock server open state (for testing)
func (m *MockClient) SetOpen(open bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.open = open
}

// SetSpaceName sets the "space" field, "" removes it
func (m *MockClient) SetSpaceName(name string) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.spaceName = name
}

// SetApplyWrites controls whether successful writes change the mock state
func (m *MockClient) SetApplyWrites(apply bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.applyWrite = apply
}

// SetGetError makes GetSpaceState fail with err, nil clears it
func (m *MockClient) SetGetError(err error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.getErr = err
}

// SetSetError makes SetSpaceState fail with err, nil clears it
func (m *MockClient) SetSetError(err error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.setErr = err
}

// HoldWrites makes SetSpaceState block until ReleaseWrite is called
func (m *MockClient) HoldWrites() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.gate = make(chan struct{})
}

// ReleaseWrite lets one blocked SetSpaceState call proceed
func (m *MockClient) ReleaseWrite() {
	m.callsMu.Lock()
	gate := m.gate
	m.callsMu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// GetCallCount returns the number of GetSpaceState calls
func (m *MockClient) GetCallCount() int {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	return m.getCalls
}

// GetSetCalls returns all recorded SetSpaceState calls
func (m *MockClient) GetSetCalls() []SetCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]SetCall, len(m.setCalls))
	copy(calls, m.setCalls)
	return calls
}

// SetCallCount returns the number of SetSpaceState calls
func (m *MockClient) SetCallCount() int {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	return len(m.setCalls)
}
