package plugin

import (
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/coordinator"
	"spaceapiclient/internal/spaceapi"

	"go.uber.org/zap"
)

// Context provides dependencies to platform factories
type Context struct {
	// EntryID identifies the configured endpoint. Entity unique ids derive
	// from it.
	EntryID string

	// Client talks to the endpoint
	Client spaceapi.SpaceClient

	// Coordinator owns the polled snapshot
	Coordinator *coordinator.Coordinator

	// Logger is a structured logger for the platform to use.
	// Platforms should use logger.Named("platformname") for namespacing.
	Logger *zap.Logger

	// Clock drives the switch settle delay
	Clock clock.Clock

	// SettleDelay overrides the switch's post-write delay when positive
	SettleDelay time.Duration

	// ReadOnly suppresses write platforms even when an API key is set
	ReadOnly bool
}

// CanWrite reports whether write platforms should be created
func (c *Context) CanWrite() bool {
	return c.Client != nil && c.Client.HasAPIKey() && !c.ReadOnly
}
