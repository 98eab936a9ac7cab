// Package plugin provides the platform interfaces and registry used to set
// up the entities of a configured SpaceAPI endpoint. Each platform is
// created by a factory; a factory may decline with ErrPlatformSkipped when
// the endpoint's configuration does not support it.
package plugin

import (
	"errors"

	"spaceapiclient/internal/shadowstate"
)

// ErrPlatformSkipped is returned by a Factory whose platform does not apply
// to the current configuration, e.g. the switch without an API key
var ErrPlatformSkipped = errors.New("platform skipped")

// Platform is the core interface every entity platform implements
type Platform interface {
	// PlatformName returns the registry key, e.g. "binary_sensor"
	PlatformName() string

	// Start subscribes the platform's entity to coordinator updates
	Start() error

	// Stop unsubscribes and releases resources
	Stop()
}

// ShadowStateProvider is an optional interface for platforms that record
// their actions for observability
type ShadowStateProvider interface {
	GetShadowState() shadowstate.EntityShadowState
}

// Factory creates a platform for the given context
type Factory func(ctx *Context) (Platform, error)
