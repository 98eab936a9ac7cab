// Package configflow validates a new SpaceAPI endpoint before it is added:
// field checks first, then a live read against the endpoint.
package configflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"spaceapiclient/internal/spaceapi"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Form fields and error keys
const (
	FieldHost   = "host"
	FieldAPIKey = "api_key"
	FieldBase   = "base"

	ErrInvalidURL    = "invalid_url"
	ErrInvalidAPIKey = "invalid_api_key"
	ErrAuth          = "auth"
	ErrConnection    = "connection"
	ErrUnknown       = "unknown"

	AbortAlreadyConfigured = "already_configured"
)

// Input is the submitted setup form
type Input struct {
	Host   string `json:"host" yaml:"host"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`
}

// Entry is a configured endpoint
type Entry struct {
	Title    string `json:"title"`
	UniqueID string `json:"unique_id"`
	Data     Input  `json:"data"`
}

// Result is the outcome of a submission. Exactly one of Errors, Entry or
// AbortReason is set.
type Result struct {
	Errors      map[string]string
	Entry       *Entry
	AbortReason string
}

// OK reports whether the submission created an entry
func (r Result) OK() bool {
	return r.Entry != nil
}

// Flow tracks configured entries and runs submissions against them
type Flow struct {
	session *http.Client
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a setup flow that tests credentials using session
func New(session *http.Client, logger *zap.Logger) *Flow {
	return &Flow{
		session: session,
		logger:  logger.Named("configflow"),
		entries: make(map[string]Entry),
	}
}

// Validate checks the form fields without touching the network. A blank API
// key is allowed and leaves the endpoint read-only.
func Validate(input Input) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(input.Host) == "" {
		errs[FieldHost] = ErrInvalidURL
	} else if _, err := spaceapi.SanitizeHostURL(input.Host); err != nil {
		errs[FieldHost] = ErrInvalidURL
	}

	if input.APIKey != "" {
		if _, err := spaceapi.SanitizeAPIKey(input.APIKey, nil); err != nil {
			errs[FieldAPIKey] = ErrInvalidAPIKey
		}
	}

	return errs
}

// Submit validates input, performs a test read and registers the entry
func (f *Flow) Submit(ctx context.Context, input Input) Result {
	if errs := Validate(input); len(errs) > 0 {
		return Result{Errors: errs}
	}

	if err := f.testCredentials(ctx, input); err != nil {
		return Result{Errors: map[string]string{FieldBase: f.classify(err)}}
	}

	uniqueID := Slug(input.Host)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[uniqueID]; exists {
		f.logger.Info("Endpoint already configured", zap.String("unique_id", uniqueID))
		return Result{AbortReason: AbortAlreadyConfigured}
	}

	entry := Entry{
		Title:    fmt.Sprintf("SpaceAPI (%s)", input.Host),
		UniqueID: uniqueID,
		Data:     input,
	}
	f.entries[uniqueID] = entry

	f.logger.Info("Endpoint configured",
		zap.String("unique_id", uniqueID),
		zap.Bool("read_only", input.APIKey == ""))
	return Result{Entry: &entry}
}

// Entries returns all configured entries sorted by unique id
func (f *Flow) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UniqueID < result[j].UniqueID
	})
	return result
}

// Remove deletes an entry, reporting whether it existed
func (f *Flow) Remove(uniqueID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[uniqueID]; !ok {
		return false
	}
	delete(f.entries, uniqueID)
	return true
}

func (f *Flow) testCredentials(ctx context.Context, input Input) error {
	client, err := spaceapi.NewClient(input.Host, input.APIKey, f.session, f.logger)
	if err != nil {
		return err
	}
	_, err = client.GetSpaceState(ctx)
	return err
}

func (f *Flow) classify(err error) string {
	var authErr *spaceapi.AuthenticationError
	var commErr *spaceapi.CommunicationError

	switch {
	case errors.As(err, &authErr):
		f.logger.Warn("Authentication failed", zap.Error(err))
		return ErrAuth
	case errors.As(err, &commErr):
		f.logger.Error("Could not reach endpoint", zap.Error(err))
		return ErrConnection
	default:
		f.logger.Error("Unexpected error testing endpoint", zap.Error(err))
		return ErrUnknown
	}
}

// Slug transliterates s to ASCII, lowercases it and joins the words with
// dashes.
func Slug(s string) string {
	return slug.Make(s)
}
