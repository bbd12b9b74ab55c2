package session

import (
	"math/rand"
	"time"
)

// ProbeDelay returns how long a disconnected subordinate waits after its
// attempt-th SYNC_NOW probe (1-based) before probing again.
//
// The wait starts at InitialDelay and grows by Multiplier until MaxDelay.
// With Jitter the wait is drawn from [d/2, d]; it never exceeds MaxDelay, so
// a peer that comes up is heard from within one MaxDelay.
func ProbeDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(cfg.InitialDelay)
	ceiling := float64(cfg.MaxDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if ceiling > 0 && d >= ceiling {
			d = ceiling
			break
		}
	}
	if cfg.Jitter {
		f := 0.75
		if rng != nil {
			f = 0.5 + rng.Float64()/2
		}
		d *= f
	}
	return time.Duration(d)
}
