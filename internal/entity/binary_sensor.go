package entity

import (
	"go.uber.org/zap"
)

// BinarySensor reports the space's open state as last read from the server
type BinarySensor struct {
	base
	logger *zap.Logger
}

// NewBinarySensor creates the read-only space status sensor
func NewBinarySensor(entryID, hostURL string, source DataSource, logger *zap.Logger) *BinarySensor {
	return &BinarySensor{
		base: base{
			uniqueID: entryID + "_space_status",
			entryID:  entryID,
			hostURL:  hostURL,
			source:   source,
		},
		logger: logger.Named("binary_sensor"),
	}
}

// IsOn returns the snapshot's open state, false without a snapshot
func (s *BinarySensor) IsOn() bool {
	return s.source.Data().Open()
}

// PlatformName identifies the platform this entity belongs to
func (s *BinarySensor) PlatformName() string {
	return "binary_sensor"
}

// Start subscribes to coordinator updates
func (s *BinarySensor) Start() error {
	s.start()
	s.logger.Debug("Binary sensor added", zap.String("unique_id", s.uniqueID))
	return nil
}

// Stop unsubscribes from coordinator updates
func (s *BinarySensor) Stop() {
	s.stop()
	s.logger.Debug("Binary sensor removed", zap.String("unique_id", s.uniqueID))
}
