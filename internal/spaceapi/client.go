package spaceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every request made by the client
const DefaultTimeout = 10 * time.Second

// jsonContentType matches application/json and application/*+json
var jsonContentType = regexp.MustCompile(`^application/(?:[\w.+-]+\+)?json`)

// SpaceClient defines the interface for talking to a SpaceAPI endpoint
type SpaceClient interface {
	GetSpaceState(ctx context.Context) (*Snapshot, error)
	SetSpaceState(ctx context.Context, open bool) (*WriteResponse, error)
	HostURL() string
	HasAPIKey() bool
}

// Client implements SpaceClient over HTTP
type Client struct {
	hostURL string
	apiKey  string
	session *http.Client
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewClient validates the host URL and API key and creates a new client.
// The session is owned by the caller and reused for every request.
func NewClient(hostURL, apiKey string, session *http.Client, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	host, err := SanitizeHostURL(hostURL)
	if err != nil {
		return nil, err
	}

	key, err := SanitizeAPIKey(apiKey, logger)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, &ConfigError{Msg: "HTTP session is required"}
	}

	return &Client{
		hostURL: host,
		apiKey:  key,
		session: session,
		logger:  logger.Named("spaceapi"),
		timeout: DefaultTimeout,
		now:     time.Now,
	}, nil
}

// SetTimeout overrides the per-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// HostURL returns the sanitized host URL
func (c *Client) HostURL() string {
	return c.hostURL
}

// HasAPIKey reports whether write calls are possible
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// GetSpaceState reads {host}/api/space. When that fails with a
// communication error and no API key is configured, the bare host URL is
// tried once. If the retry also fails the original error is returned.
func (c *Client) GetSpaceState(ctx context.Context) (*Snapshot, error) {
	snap, err := c.fetchSnapshot(ctx, c.hostURL+"/api/space")
	if err == nil {
		return snap, nil
	}

	var commErr *CommunicationError
	if !errors.As(err, &commErr) || c.apiKey != "" {
		return nil, err
	}

	c.logger.Debug("API endpoint /api/space failed, trying fallback to host URL",
		zap.String("host", c.hostURL),
		zap.Error(err))

	snap, fallbackErr := c.fetchSnapshot(ctx, c.hostURL)
	if fallbackErr != nil {
		c.logger.Debug("Fallback request failed", zap.Error(fallbackErr))
		commErr.Fallback = fallbackErr
		return nil, err
	}

	return snap, nil
}

// SetSpaceState posts the desired open state to {host}/api/space/state
func (c *Client) SetSpaceState(ctx context.Context, open bool) (*WriteResponse, error) {
	if c.apiKey == "" {
		return nil, &AuthenticationError{Msg: "API key is required to set space state"}
	}

	body, err := json.Marshal(NewStateUpdate(open))
	if err != nil {
		return nil, &ClientError{Msg: fmt.Sprintf("failed to encode state update: %v", err), Err: err}
	}

	status, _, data, err := c.do(ctx, http.MethodPost, c.hostURL+"/api/space/state", body, map[string]string{
		"X-API-Key":    c.apiKey,
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Space state updated",
		zap.Bool("open", open),
		zap.Int("status", status))

	resp := &WriteResponse{StatusCode: status}
	if len(bytes.TrimSpace(data)) > 0 {
		resp.Body = json.RawMessage(data)
	}
	return resp, nil
}

func (c *Client) fetchSnapshot(ctx context.Context, url string) (*Snapshot, error) {
	status, header, data, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	if ct := header.Get("Content-Type"); !jsonContentType.MatchString(strings.ToLower(ct)) {
		return nil, &CommunicationError{
			Msg: fmt.Sprintf("Error fetching information - %d, unexpected content type %q", status, ct),
		}
	}

	snap, err := ParseSnapshot(data, c.now())
	if err != nil {
		return nil, &ClientError{Msg: fmt.Sprintf("Something really wrong happened! - %v", err), Err: err}
	}
	return snap, nil
}

// do performs a single request bounded by the client timeout and returns
// the status code, headers and body. Failures are classified into the error
// taxonomy; a caller that gave up is never reported as a communication error.
func (c *Client) do(ctx context.Context, method, url string, body []byte, headers map[string]string) (int, http.Header, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return 0, nil, nil, &ClientError{Msg: fmt.Sprintf("Something really wrong happened! - %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return 0, nil, nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, resp.Header, nil, &AuthenticationError{Msg: "Invalid credentials"}
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, resp.Header, nil, &CommunicationError{
			Msg: fmt.Sprintf("Error fetching information - %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, c.classify(ctx, err)
	}

	return resp.StatusCode, resp.Header, data, nil
}

// classify maps a transport failure, checking the caller's context first so
// that only the client's own timeout counts as a communication error
func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ClientError{Msg: fmt.Sprintf("Request cancelled - %v", ctxErr), Err: err}
	}
	return classifyTransportError(err)
}

func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &CommunicationError{Msg: fmt.Sprintf("Timeout error fetching information - %v", err), Err: err}
	case errors.Is(err, context.Canceled):
		return &ClientError{Msg: fmt.Sprintf("Request cancelled - %v", err), Err: err}
	case errors.As(err, &netErr):
		return &CommunicationError{Msg: fmt.Sprintf("Error fetching information - %v", err), Err: err}
	default:
		return &ClientError{Msg: fmt.Sprintf("Something really wrong happened! - %v", err), Err: err}
	}
}
