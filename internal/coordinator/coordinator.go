// Package coordinator polls a SpaceAPI endpoint on a fixed interval and
// keeps the latest snapshot for the entities that display it.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/spaceapi"

	"go.uber.org/zap"
)

// DefaultInterval is the poll interval used when none is configured
const DefaultInterval = 60 * time.Second

// Fetcher is the read side of the SpaceAPI client
type Fetcher interface {
	GetSpaceState(ctx context.Context) (*spaceapi.Snapshot, error)
}

// UpdateListener is called after every refresh attempt
type UpdateListener func()

// Coordinator owns the latest snapshot. A failed refresh keeps the previous
// snapshot and records the error.
type Coordinator struct {
	fetcher  Fetcher
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration

	dataMu            sync.RWMutex
	data              *spaceapi.Snapshot
	lastErr           error
	lastUpdateSuccess bool

	listenersMu    sync.RWMutex
	listeners      map[int]UpdateListener
	nextListenerID int

	// refreshMu serializes refreshes so a slow poll cannot overwrite a newer one
	refreshMu sync.Mutex

	runMu   sync.Mutex
	timer   clock.Timer
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new coordinator. A zero interval selects DefaultInterval.
func New(fetcher Fetcher, logger *zap.Logger, clk clock.Clock, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coordinator{
		fetcher:   fetcher,
		logger:    logger.Named("coordinator"),
		clock:     clk,
		interval:  interval,
		listeners: make(map[int]UpdateListener),
	}
}

// Interval returns the poll interval
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// FirstRefresh performs the eager startup poll. Unlike scheduled polls its
// failure is returned so setup can be aborted.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if _, err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh failed: %w", err)
	}
	return nil
}

// Refresh polls the endpoint once, stores the result and notifies listeners
func (c *Coordinator) Refresh(ctx context.Context) (*spaceapi.Snapshot, error) {
	c.refreshMu.Lock()
	snap, err := c.fetcher.GetSpaceState(ctx)

	c.dataMu.Lock()
	if err != nil {
		c.lastErr = err
		c.lastUpdateSuccess = false
	} else {
		c.data = snap
		c.lastErr = nil
		c.lastUpdateSuccess = true
	}
	c.dataMu.Unlock()
	c.refreshMu.Unlock()

	if err != nil {
		c.logger.Warn("Error fetching space state", zap.Error(err))
	} else {
		c.logger.Debug("Space state refreshed", zap.Bool("open", snap.Open()))
	}

	c.notifyListeners()
	return snap, err
}

// RequestRefresh triggers an out-of-band poll. Errors are logged and kept in
// LastError, never returned.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Debug("Requested refresh failed", zap.Error(err))
	}
}

// Data returns the last successful snapshot, or nil before the first one
func (c *Coordinator) Data() *spaceapi.Snapshot {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.data
}

// LastUpdateSuccess reports whether the most recent refresh succeeded
func (c *Coordinator) LastUpdateSuccess() bool {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.lastUpdateSuccess
}

// LastError returns the error of the most recent refresh, if it failed
func (c *Coordinator) LastError() error {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	return c.lastErr
}

// AddListener registers fn and returns a function that removes it
func (c *Coordinator) AddListener(fn UpdateListener) func() {
	c.listenersMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Coordinator) notifyListeners() {
	c.listenersMu.RLock()
	listeners := make([]UpdateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Start schedules periodic refreshes until Stop is called or ctx is done
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("Starting space state polling", zap.Duration("interval", c.interval))
	c.scheduleLocked()
}

// Stop cancels the scheduled refresh and any in-flight poll
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.logger.Info("Stopped space state polling")
}

func (c *Coordinator) scheduleLocked() {
	c.timer = c.clock.AfterFunc(c.interval, c.tick)
}

func (c *Coordinator) tick() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	ctx := c.ctx
	c.runMu.Unlock()

	if ctx.Err() != nil {
		c.Stop()
		return
	}

	c.Refresh(ctx)

	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		c.scheduleLocked()
	}
}
