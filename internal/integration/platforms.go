package integration

import (
	"fmt"

	"spaceapiclient/internal/entity"
	"spaceapiclient/pkg/plugin"

	"go.uber.org/zap"
)

// Platform names
const (
	PlatformBinarySensor = "binary_sensor"
	PlatformSwitch       = "switch"
)

// DefaultRegistry returns a registry holding the built-in platforms: the
// binary sensor, always, and the switch when writes are possible.
func DefaultRegistry(logger *zap.Logger) *plugin.Registry {
	registry := plugin.NewRegistry(logger)

	// Built-in registrations cannot fail: names and factories are set.
	_ = registry.Register(plugin.PlatformInfo{
		Name:        PlatformBinarySensor,
		Description: "Read-only space open state",
		Order:       10,
		Factory:     newBinarySensor,
	})
	_ = registry.Register(plugin.PlatformInfo{
		Name:        PlatformSwitch,
		Description: "Space open state with write support",
		Order:       20,
		Factory:     newSwitch,
	})

	return registry
}

func newBinarySensor(ctx *plugin.Context) (plugin.Platform, error) {
	return entity.NewBinarySensor(ctx.EntryID, ctx.Client.HostURL(), ctx.Coordinator, ctx.Logger), nil
}

func newSwitch(ctx *plugin.Context) (plugin.Platform, error) {
	if !ctx.CanWrite() {
		reason := "no API key configured"
		if ctx.ReadOnly {
			reason = "read-only mode"
		}
		return nil, fmt.Errorf("%s: %w", reason, plugin.ErrPlatformSkipped)
	}

	sw := entity.NewSwitch(ctx.EntryID, ctx.Client.HostURL(), ctx.Coordinator, ctx.Client, ctx.Logger, ctx.Clock)
	if ctx.SettleDelay > 0 {
		sw.SetSettleDelay(ctx.SettleDelay)
	}
	return sw, nil
}
