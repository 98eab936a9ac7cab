package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"spaceapiclient/internal/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StateResponse is the JSON body of GET /api/state
type StateResponse struct {
	// Open is the last snapshot's state.open
	Open bool `json:"open"`
	// IsOn is what the switch displays, optimistic value included
	IsOn              bool            `json:"is_on"`
	Space             string          `json:"space"`
	Writable          bool            `json:"writable"`
	Switching         bool            `json:"switching"`
	LastUpdateSuccess bool            `json:"last_update_success"`
	LastError         string          `json:"last_error,omitempty"`
	FetchedAt         *time.Time      `json:"fetched_at,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check with last poll status"},
	{Path: "/api/state", Method: "GET", Description: "Space open state, switch state and raw SpaceAPI document"},
	{Path: "/api/device", Method: "GET", Description: "Device metadata"},
	{Path: "/api/shadow", Method: "GET", Description: "Recorded switch actions"},
	{Path: "/api/switch/turn_on", Method: "POST", Description: "Open the space (requires API key)"},
	{Path: "/api/switch/turn_off", Method: "POST", Description: "Close the space (requires API key)"},
	{Path: "/api/ws", Method: "GET", Description: "Websocket stream of state changes"},
}

func (s *Server) writable() bool {
	return !s.readOnly && s.integ.Switch() != nil
}

func (s *Server) stateResponse() StateResponse {
	coord := s.integ.Coordinator
	snap := coord.Data()

	resp := StateResponse{
		Open:              snap.Open(),
		IsOn:              snap.Open(),
		Space:             entity.DeviceName(s.integ.Client.HostURL(), snap),
		Writable:          s.writable(),
		LastUpdateSuccess: coord.LastUpdateSuccess(),
	}
	if sw := s.integ.Switch(); sw != nil {
		resp.IsOn = sw.IsOn()
		resp.Switching = sw.IsSwitching()
	}
	if err := coord.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	if snap != nil {
		fetchedAt := snap.FetchedAt
		resp.FetchedAt = &fetchedAt
		resp.Raw = snap.Raw
	}
	return resp
}

func (s *Server) liveUpdate() LiveUpdate {
	st := s.stateResponse()
	return LiveUpdate{
		Open:      st.Open,
		IsOn:      st.IsOn,
		Space:     st.Space,
		Switching: st.Switching,
	}
}

func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.stateResponse())
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if !s.integ.Coordinator.LastUpdateSuccess() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              status,
		"last_update_success": s.integ.Coordinator.LastUpdateSuccess(),
	})
}

func (s *Server) handleGetDevice(c *gin.Context) {
	c.JSON(http.StatusOK, s.integ.DeviceInfo())
}

func (s *Server) handleGetShadow(c *gin.Context) {
	c.JSON(http.StatusOK, s.integ.Tracker.GetAllEntityStates())
}

func (s *Server) handleWebsocket(c *gin.Context) {
	s.hub.serve(c.Writer, c.Request, s.liveUpdate())
}

func (s *Server) handleTurnOn(c *gin.Context) {
	s.toggle(c, true)
}

func (s *Server) handleTurnOff(c *gin.Context) {
	s.toggle(c, false)
}

func (s *Server) toggle(c *gin.Context, open bool) {
	sw := s.integ.Switch()
	if s.readOnly || sw == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "switch not available: no API key configured or read-only mode"})
		return
	}

	// Writes are not cancelled when the caller disconnects
	ctx := context.WithoutCancel(c.Request.Context())

	var err error
	if open {
		err = sw.TurnOn(ctx)
	} else {
		err = sw.TurnOff(ctx)
	}
	if err != nil {
		s.logger.Warn("Switch request failed", zap.Bool("open", open), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.stateResponse())
}

// handleSitemap lists the endpoints as HTML for browsers and plain text
// otherwise
func (s *Server) handleSitemap(c *gin.Context) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>SpaceAPI Client</title></head>\n<body>\n")
		b.WriteString("<h1>SpaceAPI Client</h1>\n<ul>\n")
		for _, ep := range endpoints {
			fmt.Fprintf(&b, "  <li><code>%s</code> <a href=\"%s\">%s</a> - %s</li>\n", ep.Method, ep.Path, ep.Path, ep.Description)
		}
		b.WriteString("</ul>\n</body>\n</html>\n")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
		return
	}

	var b strings.Builder
	b.WriteString("SpaceAPI Client\n===============\n\nAvailable endpoints:\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "  %-6s %-22s %s\n", ep.Method, ep.Path, ep.Description)
	}
	fmt.Fprintf(&b, "\nEndpoint: %s\n", s.integ.Client.HostURL())
	c.String(http.StatusOK, b.String())
}
