// Package clockskew warns when the agent's wall clock drifts from NTP time.
// Heartbeat timestamps are client wall-clock, so a drifting clock quietly
// skews the history the server records.
package clockskew

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultPool      = "pool.ntp.org"
	defaultThreshold = 500 * time.Millisecond
	queryTimeout     = 5 * time.Second
)

// Status is the result of the most recent check.
type Status struct {
	Offset    time.Duration
	Healthy   bool
	Err       string
	CheckedAt time.Time
}

// Checker queries an NTP pool and logs when the local offset exceeds the
// threshold. Stateless beyond the last status; callers decide cadence.
type Checker struct {
	pool      string
	threshold time.Duration

	mu   sync.Mutex
	last Status
}

func New(pool string) *Checker {
	if pool == "" {
		pool = defaultPool
	}
	return &Checker{pool: pool, threshold: defaultThreshold}
}

// Check queries the pool once. NTP failure is logged at debug and never
// surfaced: clock skew detection is best-effort. The ntp client has no
// context support; the query timeout bounds the call instead.
func (c *Checker) Check(_ context.Context) Status {
	resp, err := ntp.QueryWithOptions(c.pool, ntp.QueryOptions{Timeout: queryTimeout})
	now := time.Now()

	var st Status
	if err != nil {
		st = Status{Err: err.Error(), CheckedAt: now}
		slog.Debug("ntp query failed", "pool", c.pool, "err", err)
	} else if err := resp.Validate(); err != nil {
		st = Status{Err: err.Error(), CheckedAt: now}
		slog.Debug("ntp response invalid", "pool", c.pool, "err", err)
	} else {
		offset := resp.ClockOffset
		healthy := offset >= -c.threshold && offset <= c.threshold
		st = Status{Offset: offset, Healthy: healthy, CheckedAt: now}
		if !healthy {
			slog.Warn("local clock skewed, heartbeat timestamps will drift",
				"offset", offset, "threshold", c.threshold)
		}
	}

	c.mu.Lock()
	c.last = st
	c.mu.Unlock()
	return st
}

// Last returns the most recent status.
func (c *Checker) Last() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
