package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link timing defaults.
type Config struct {
	HeartbeatInterval time.Duration
	// LivenessTimeout should keep roughly a 2:1 margin over HeartbeatInterval.
	LivenessTimeout time.Duration
	// SyncBurst bounds dump items emitted per tick; 0 sends the whole dump.
	SyncBurst int
	Probe     BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 1500 * time.Millisecond,
		LivenessTimeout:   3000 * time.Millisecond,
		SyncBurst:         0,
		Probe: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields. A missing timeout is derived as twice the
// heartbeat.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.LivenessTimeout <= 0 {
		c.LivenessTimeout = 2 * c.HeartbeatInterval
	}
	if c.Probe.InitialDelay <= 0 {
		c.Probe = def.Probe
	}
	if c.Probe.Multiplier <= 0 {
		c.Probe.Multiplier = def.Probe.Multiplier
	}
	return c
}

func (c Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat_interval must be > 0", ErrInvalidConfig)
	}
	if c.LivenessTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("%w: liveness_timeout (%s) must exceed heartbeat_interval (%s)",
			ErrInvalidConfig, c.LivenessTimeout, c.HeartbeatInterval)
	}
	if c.SyncBurst < 0 {
		return fmt.Errorf("%w: sync_burst must be >= 0", ErrInvalidConfig)
	}
	if c.Probe.MaxDelay > 0 && c.Probe.MaxDelay < c.Probe.InitialDelay {
		return fmt.Errorf("%w: probe max_delay below initial_delay", ErrInvalidConfig)
	}
	return nil
}
