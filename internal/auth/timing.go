package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds the response floor applied to failed credential checks
type TimingConfig struct {
	Floor  time.Duration // minimum elapsed time for a failed attempt
	Jitter time.Duration // random extra delay in [0, Jitter)
}

// TimingDelay pads failed login responses so that "no such account",
// "wrong password" and "locked" all take about the same time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// WaitFrom sleeps until Floor+jitter has elapsed since start. Successful
// attempts return immediately. The wait ends early if ctx is cancelled.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if td == nil || success {
		return
	}

	target := td.config.Floor
	if td.config.Jitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.Jitter))); err == nil {
			target += time.Duration(n.Int64())
		}
	}

	remaining := target - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
