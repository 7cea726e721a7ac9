package reconcile

import "time"

// Config holds configuration for the reconciliation engine.
type Config struct {
	// BatchSize bounds how many records one scan page loads.
	BatchSize int `mapstructure:"batch_size" default:"200"`
	// GracePeriodSeconds is how long a submitted record may stay unknown to
	// the ledger before it is abandoned as failed.
	GracePeriodSeconds int `mapstructure:"grace_period_seconds" default:"900"`
	// LookbackWindowSeconds is how far back the identity lookback searches
	// for orphaned transfers.
	LookbackWindowSeconds int `mapstructure:"lookback_window_seconds" default:"86400"`
}

// GracePeriod returns the grace period as a duration.
func (c Config) GracePeriod() time.Duration {
	if c.GracePeriodSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// LookbackWindow returns the lookback window as a duration.
func (c Config) LookbackWindow() time.Duration {
	if c.LookbackWindowSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.LookbackWindowSeconds) * time.Second
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 200
	}
	return c.BatchSize
}
