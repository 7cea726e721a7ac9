package settle

import "time"

// Config holds configuration for the settlement worker.
type Config struct {
	// BatchSize bounds how many due records one cycle submits.
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// Concurrency bounds how many submissions run in parallel.
	Concurrency int `mapstructure:"concurrency" default:"4"`
	// IntervalSeconds is the delay between cycles in start mode.
	IntervalSeconds int `mapstructure:"interval_seconds" default:"60"`
	// BackoffBaseSeconds is the initial resubmission backoff.
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds" default:"30"`
	// BackoffMaxSeconds caps the exponential resubmission backoff.
	BackoffMaxSeconds int `mapstructure:"backoff_max_seconds" default:"3600"`
}

// Interval returns the cycle interval as a duration.
func (c Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c Config) backoffBase() time.Duration {
	if c.BackoffBaseSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

func (c Config) backoffMax() time.Duration {
	if c.BackoffMaxSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}

// Backoff returns the capped exponential delay before attempt n+1,
// given n prior attempts.
func (c Config) Backoff(attempts int) time.Duration {
	base := c.backoffBase()
	max := c.backoffMax()

	// Shift bound keeps the doubling from overflowing.
	if attempts > 30 {
		attempts = 30
	}
	d := base << uint(attempts)
	if d <= 0 || d > max {
		return max
	}
	return d
}
