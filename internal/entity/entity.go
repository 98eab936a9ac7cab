// Package entity implements the entities the host displays for a SpaceAPI
// endpoint: a read-only binary sensor and a switch that writes the open
// state with optimistic updates.
package entity

import (
	"context"
	"fmt"
	"sync"

	"spaceapiclient/internal/coordinator"
	"spaceapiclient/internal/spaceapi"
)

const (
	// Attribution is shown next to every entity
	Attribution = "Data provided by SpaceAPI"
	// Manufacturer of the virtual device
	Manufacturer = "SpaceAPI"
	// Model of the virtual device
	Model = "SpaceAPI v15"

	// Icon for both entities
	Icon = "mdi:door-open"
	// DisplayName for both entities
	DisplayName = "Space Status"
)

// DataSource is what an entity needs from the poll coordinator
type DataSource interface {
	Data() *spaceapi.Snapshot
	RequestRefresh(ctx context.Context)
	AddListener(fn coordinator.UpdateListener) func()
}

// DeviceInfo describes the virtual device the entities belong to
type DeviceInfo struct {
	Identifier       string `json:"identifier"`
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	ConfigurationURL string `json:"configuration_url"`
}

// NewDeviceInfo builds device metadata for the given host and snapshot
func NewDeviceInfo(entryID, hostURL string, snap *spaceapi.Snapshot) DeviceInfo {
	return DeviceInfo{
		Identifier:       entryID,
		Name:             DeviceName(hostURL, snap),
		Manufacturer:     Manufacturer,
		Model:            Model,
		ConfigurationURL: hostURL,
	}
}

// DeviceName prefers the snapshot's "space" field and falls back to a name
// built from the host URL when it is absent, blank or not a string.
func DeviceName(hostURL string, snap *spaceapi.Snapshot) string {
	if name, ok := snap.SpaceName(); ok {
		return name
	}
	if hostURL == "" {
		hostURL = "Unknown"
	}
	return fmt.Sprintf("SpaceAPI (%s)", hostURL)
}

// base holds what the binary sensor and switch share
type base struct {
	uniqueID string
	entryID  string
	hostURL  string
	source   DataSource

	updateMu       sync.RWMutex
	onUpdate       func()
	removeListener func()
}

// UniqueID returns the entity's unique identifier
func (b *base) UniqueID() string {
	return b.uniqueID
}

// Name returns the entity display name
func (b *base) Name() string {
	return DisplayName
}

// Icon returns the entity icon
func (b *base) Icon() string {
	return Icon
}

// Attribution returns the data attribution
func (b *base) Attribution() string {
	return Attribution
}

// DeviceInfo returns metadata for the device this entity belongs to
func (b *base) DeviceInfo() DeviceInfo {
	return NewDeviceInfo(b.entryID, b.hostURL, b.source.Data())
}

// SetUpdateHandler sets the callback fired whenever the displayed state may
// have changed
func (b *base) SetUpdateHandler(fn func()) {
	b.updateMu.Lock()
	defer b.updateMu.Unlock()
	b.onUpdate = fn
}

func (b *base) start() {
	b.removeListener = b.source.AddListener(b.writeState)
}

func (b *base) stop() {
	if b.removeListener != nil {
		b.removeListener()
		b.removeListener = nil
	}
}

func (b *base) writeState() {
	b.updateMu.RLock()
	fn := b.onUpdate
	b.updateMu.RUnlock()

	if fn != nil {
		fn()
	}
}
