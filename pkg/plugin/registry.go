package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Priority constants for platform registration.
// Higher priority values override lower priority platforms with the same name.
const (
	PriorityDefault  = 0
	PriorityOverride = 100
)

// DefaultOrder is used when PlatformInfo.Order is zero
const DefaultOrder = 50

// PlatformInfo contains metadata about a registered platform
type PlatformInfo struct {
	// Name is the registry key. Platforms with the same name override
	// each other based on priority.
	Name string

	// Description is a human-readable description of the platform
	Description string

	// Priority decides which registration wins for a name. Higher wins.
	Priority int

	// Factory creates new instances of the platform
	Factory Factory

	// Order specifies the setup order. Lower values start first.
	Order int
}

// Registry manages platform registration and instantiation
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	platforms map[string]PlatformInfo
	order     []string
}

// NewRegistry creates a new platform registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger.Named("registry"),
		platforms: make(map[string]PlatformInfo),
		order:     make([]string, 0),
	}
}

// Register adds a platform. If one with the same name already exists, the
// higher priority wins; on equal priority the later registration wins.
func (r *Registry) Register(info PlatformInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("platform name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("platform %s: factory cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	existing, exists := r.platforms[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			r.logger.Debug("Platform registration skipped",
				zap.String("platform", info.Name),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}
		r.logger.Debug("Platform being overridden",
			zap.String("platform", info.Name),
			zap.Int("from", existing.Priority),
			zap.Int("to", info.Priority))
	}

	r.platforms[info.Name] = info
	if !exists {
		r.order = append(r.order, info.Name)
	}

	r.logger.Debug("Platform registered",
		zap.String("platform", info.Name),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order))
	return nil
}

// Get returns the platform info for a given name, or nil if not found
func (r *Registry) Get(name string) *PlatformInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.platforms[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns all registered platforms sorted by setup order, then name
func (r *Registry) List() []PlatformInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PlatformInfo, 0, len(r.platforms))
	for _, name := range r.order {
		result = append(result, r.platforms[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// CreateAll instantiates every registered platform in order. Factories that
// return ErrPlatformSkipped are left out. On any other error the platforms
// created so far are stopped.
func (r *Registry) CreateAll(ctx *Context) ([]Platform, error) {
	infos := r.List()
	result := make([]Platform, 0, len(infos))

	for _, info := range infos {
		platform, err := info.Factory(ctx)
		if errors.Is(err, ErrPlatformSkipped) {
			r.logger.Info("Platform skipped", zap.String("platform", info.Name), zap.Error(err))
			continue
		}
		if err != nil {
			for i := len(result) - 1; i >= 0; i-- {
				result[i].Stop()
			}
			return nil, fmt.Errorf("failed to create platform %s: %w", info.Name, err)
		}
		result = append(result, platform)
	}

	return result, nil
}

// Names returns the names of all registered platforms in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clear removes all registered platforms
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.platforms = make(map[string]PlatformInfo)
	r.order = make([]string, 0)
}
