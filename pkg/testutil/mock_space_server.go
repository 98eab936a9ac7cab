// Package testutil provides testing utilities for the SpaceAPI client.
// This package contains a mock SpaceAPI HTTP endpoint that records every
// request and can inject failures per path.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

const (
	// PathSpace is the dedicated read endpoint
	PathSpace = "/api/space"
	// PathState is the write endpoint
	PathState = "/api/space/state"
	// PathRoot is the bare host
	PathRoot = "/"
)

// RecordedRequest captures a request received by the mock server
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
	Time   time.Time
}

// StateUpdate mirrors the JSON body accepted on PathState
type StateUpdate struct {
	Open          bool   `json:"open"`
	Message       string `json:"message"`
	TriggerPerson string `json:"trigger_person"`
}

// MockSpaceServer simulates a SpaceAPI endpoint with a write extension
type MockSpaceServer struct {
	server *httptest.Server

	mu        sync.Mutex
	open      bool
	spaceName string
	apiKey    string
	status    map[string]int
	delay     map[string]time.Duration
	raw       map[string]rawResponse
	hold      chan struct{}
	requests  []RecordedRequest
}

// NewMockSpaceServer starts a mock server. Close it with Close().
func NewMockSpaceServer() *MockSpaceServer {
	s := &MockSpaceServer{
		spaceName: "Test Hackerspace",
		status:    make(map[string]int),
		delay:     make(map[string]time.Duration),
		raw:       make(map[string]rawResponse),
		requests:  make([]RecordedRequest, 0),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL of the server
func (s *MockSpaceServer) URL() string {
	return s.server.URL
}

// Client returns an HTTP client wired to the server
func (s *MockSpaceServer) Client() *http.Client {
	return s.server.Client()
}

// Close shuts the server down
func (s *MockSpaceServer) Close() {
	s.mu.Lock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
	s.mu.Unlock()
	s.server.Close()
}

// SetOpen sets the open state served by the read endpoints
func (s *MockSpaceServer) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

// IsOpen returns the current server-side open state
func (s *MockSpaceServer) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SetSpaceName sets the "space" field, "" omits it
func (s *MockSpaceServer) SetSpaceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaceName = name
}

// RequireAPIKey makes PathState reject requests without this X-API-Key
func (s *MockSpaceServer) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
}

// SetStatus makes the given path respond with code, 0 restores normal handling
func (s *MockSpaceServer) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.status, path)
		return
	}
	s.status[path] = code
}

// SetDelay delays responses on the given path
func (s *MockSpaceServer) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[path] = d
}

type rawResponse struct {
	contentType string
	body        string
}

// SetRawResponse serves body verbatim as application/json on the given path
func (s *MockSpaceServer) SetRawResponse(path, body string) {
	s.SetRawResponseType(path, "application/json", body)
}

// SetRawResponseType serves body verbatim with the given Content-Type
func (s *MockSpaceServer) SetRawResponseType(path, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[path] = rawResponse{contentType: contentType, body: body}
}

// HoldWrites blocks PathState requests until ReleaseWrites is called
func (s *MockSpaceServer) HoldWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
}

// ReleaseWrites unblocks every held PathState request
func (s *MockSpaceServer) ReleaseWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
}

// Requests returns every recorded request
func (s *MockSpaceServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := make([]RecordedRequest, len(s.requests))
	copy(reqs, s.requests)
	return reqs
}

// CountRequests returns how many requests matched method and path
func (s *MockSpaceServer) CountRequests(method, path string) int {
	count := 0
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			count++
		}
	}
	return count
}

// LastStateUpdate decodes the most recent PathState body
func (s *MockSpaceServer) LastStateUpdate() (*StateUpdate, *RecordedRequest) {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path != PathState {
			continue
		}
		var update StateUpdate
		if err := json.Unmarshal(reqs[i].Body, &update); err != nil {
			return nil, &reqs[i]
		}
		return &update, &reqs[i]
	}
	return nil, nil
}

func (s *MockSpaceServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
		Time:   time.Now(),
	})
	status := s.status[r.URL.Path]
	delay := s.delay[r.URL.Path]
	raw, hasRaw := s.raw[r.URL.Path]
	hold := s.hold
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if hasRaw {
		w.Header().Set("Content-Type", raw.contentType)
		io.WriteString(w, raw.body)
		return
	}

	switch {
	case r.Method == http.MethodGet && (r.URL.Path == PathSpace || r.URL.Path == PathRoot):
		s.writeDocument(w)
	case r.Method == http.MethodPost && r.URL.Path == PathState:
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		s.handleStateUpdate(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

func (s *MockSpaceServer) writeDocument(w http.ResponseWriter) {
	s.mu.Lock()
	doc := map[string]interface{}{
		"api_compatibility": []string{"15"},
		"state": map[string]interface{}{
			"open": s.open,
		},
	}
	if s.spaceName != "" {
		doc["space"] = s.spaceName
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (s *MockSpaceServer) handleStateUpdate(w http.ResponseWriter, r *http.Request, body []byte) {
	s.mu.Lock()
	requiredKey := s.apiKey
	s.mu.Unlock()

	if requiredKey != "" && r.Header.Get("X-API-Key") != requiredKey {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	var update StateUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.open = update.Open
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"open":    update.Open,
	})
}
