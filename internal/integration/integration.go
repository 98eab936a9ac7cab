// Package integration sets up a configured SpaceAPI endpoint: it builds the
// client, performs the first poll, creates the entity platforms and starts
// periodic polling.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/config"
	"spaceapiclient/internal/configflow"
	"spaceapiclient/internal/coordinator"
	"spaceapiclient/internal/entity"
	"spaceapiclient/internal/shadowstate"
	"spaceapiclient/internal/spaceapi"
	"spaceapiclient/pkg/plugin"

	"go.uber.org/zap"
)

// Options controls Setup
type Options struct {
	// EntryID defaults to the slug of the host URL
	EntryID      string
	PollInterval time.Duration
	SettleDelay  time.Duration
	ReadOnly     bool
	// Clock defaults to the real clock
	Clock clock.Clock
	// Registry defaults to DefaultRegistry
	Registry *plugin.Registry
}

// OptionsFromConfig maps loaded configuration onto setup options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		EntryID:      configflow.Slug(cfg.HostURL),
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
		ReadOnly:     cfg.ReadOnly,
	}
}

// Integration is a running endpoint with its entities
type Integration struct {
	EntryID     string
	Client      spaceapi.SpaceClient
	Coordinator *coordinator.Coordinator
	Tracker     *shadowstate.Tracker

	logger    *zap.Logger
	platforms []plugin.Platform
	sensor    *entity.BinarySensor
	sw        *entity.Switch
}

// Setup builds an HTTP client for cfg and delegates to SetupWithClient
func Setup(ctx context.Context, cfg *config.Config, session *http.Client, logger *zap.Logger) (*Integration, error) {
	client, err := spaceapi.NewClient(cfg.HostURL, cfg.APIKey, session, logger)
	if err != nil {
		return nil, err
	}
	client.SetTimeout(cfg.RequestTimeout)

	return SetupWithClient(ctx, client, OptionsFromConfig(cfg), logger)
}

// SetupWithClient performs the first refresh, creates the platforms and
// starts polling. A failed first refresh aborts setup.
func SetupWithClient(ctx context.Context, client spaceapi.SpaceClient, opts Options, logger *zap.Logger) (*Integration, error) {
	logger = logger.Named("integration")

	if opts.EntryID == "" {
		opts.EntryID = configflow.Slug(client.HostURL())
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry(logger)
	}

	coord := coordinator.New(client, logger, opts.Clock, opts.PollInterval)
	if err := coord.FirstRefresh(ctx); err != nil {
		return nil, err
	}

	pctx := &plugin.Context{
		EntryID:     opts.EntryID,
		Client:      client,
		Coordinator: coord,
		Logger:      logger,
		Clock:       opts.Clock,
		SettleDelay: opts.SettleDelay,
		ReadOnly:    opts.ReadOnly,
	}

	platforms, err := opts.Registry.CreateAll(pctx)
	if err != nil {
		return nil, err
	}

	integ := &Integration{
		EntryID:     opts.EntryID,
		Client:      client,
		Coordinator: coord,
		Tracker:     shadowstate.NewTracker(),
		logger:      logger,
	}

	for i, p := range platforms {
		if err := p.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				platforms[j].Stop()
			}
			return nil, fmt.Errorf("failed to start platform %s: %w", p.PlatformName(), err)
		}
		integ.attach(p)
	}
	integ.platforms = platforms

	coord.Start(context.WithoutCancel(ctx))

	logger.Info("Integration set up",
		zap.String("entry_id", opts.EntryID),
		zap.String("host_url", client.HostURL()),
		zap.Strings("platforms", integ.PlatformNames()))
	return integ, nil
}

func (i *Integration) attach(p plugin.Platform) {
	switch e := p.(type) {
	case *entity.BinarySensor:
		i.sensor = e
	case *entity.Switch:
		i.sw = e
	}
	if provider, ok := p.(plugin.ShadowStateProvider); ok {
		i.Tracker.RegisterEntityProvider(p.PlatformName(), provider.GetShadowState)
	}
}

// BinarySensor returns the read-only entity
func (i *Integration) BinarySensor() *entity.BinarySensor {
	return i.sensor
}

// Switch returns the write entity, or nil when no API key is configured or
// the integration is read-only
func (i *Integration) Switch() *entity.Switch {
	return i.sw
}

// PlatformNames lists the created platforms in setup order
func (i *Integration) PlatformNames() []string {
	names := make([]string, 0, len(i.platforms))
	for _, p := range i.platforms {
		names = append(names, p.PlatformName())
	}
	return names
}

// DeviceInfo describes the device the entities belong to
func (i *Integration) DeviceInfo() entity.DeviceInfo {
	return entity.NewDeviceInfo(i.EntryID, i.Client.HostURL(), i.Coordinator.Data())
}

// Unload stops polling and all platforms in reverse setup order
func (i *Integration) Unload() {
	i.Coordinator.Stop()
	for j := len(i.platforms) - 1; j >= 0; j-- {
		i.platforms[j].Stop()
	}
	i.platforms = nil
	i.logger.Info("Integration unloaded", zap.String("entry_id", i.EntryID))
}
