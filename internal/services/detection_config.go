package services

import (
	"fmt"
	"time"
)

// DetectionConfig holds the thresholds and windows used by the anomaly rules
// and the brute-force monitor
type DetectionConfig struct {
	ImpossibleTravelWindow time.Duration
	ImpossibleTravelMaxKm  float64

	NewDeviceWindow   time.Duration
	NewLocationWindow time.Duration

	UnusualTimeWindow           time.Duration
	UnusualTimeMinSamples       int
	UnusualTimeStdDevMultiplier float64
	CircularHourStats           bool // use circular statistics for hour-of-day baselines

	BruteForceWindow    time.Duration
	BruteForceThreshold int

	QueryTimeout time.Duration // Applied to each detection pass
}

// DefaultDetectionConfig returns the production thresholds
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		ImpossibleTravelWindow:      1 * time.Hour,
		ImpossibleTravelMaxKm:       500,
		NewDeviceWindow:             90 * 24 * time.Hour,
		NewLocationWindow:           90 * 24 * time.Hour,
		UnusualTimeWindow:           30 * 24 * time.Hour,
		UnusualTimeMinSamples:       10,
		UnusualTimeStdDevMultiplier: 2,
		BruteForceWindow:            5 * time.Minute,
		BruteForceThreshold:         10,
		QueryTimeout:                5 * time.Second,
	}
}

// Validate rejects configurations that would make a rule fire on everything or nothing
func (c DetectionConfig) Validate() error {
	windows := map[string]time.Duration{
		"impossible travel window": c.ImpossibleTravelWindow,
		"new device window":        c.NewDeviceWindow,
		"new location window":      c.NewLocationWindow,
		"unusual time window":      c.UnusualTimeWindow,
		"brute force window":       c.BruteForceWindow,
		"query timeout":            c.QueryTimeout,
	}
	for name, d := range windows {
		if d <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", name, d)
		}
	}

	if c.ImpossibleTravelMaxKm <= 0 {
		return fmt.Errorf("impossible travel distance must be positive (got %.1f)", c.ImpossibleTravelMaxKm)
	}
	if c.UnusualTimeMinSamples < 1 {
		return fmt.Errorf("unusual time minimum samples must be at least 1 (got %d)", c.UnusualTimeMinSamples)
	}
	if c.UnusualTimeStdDevMultiplier < 0 {
		return fmt.Errorf("unusual time stddev multiplier cannot be negative")
	}
	if c.BruteForceThreshold < 1 {
		return fmt.Errorf("brute force threshold must be at least 1 (got %d)", c.BruteForceThreshold)
	}

	return nil
}
