// Package sweeper infers offline stores from heartbeat silence. It owns the
// offline side of the liveness state machine; recovery needs direct evidence
// (a heartbeat) and is the registry's job, which is what prevents the
// spurious offline-then-recovery pair around a just-arrived heartbeat.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"storewatch/internal/alert"
	"storewatch/internal/check"
	"storewatch/internal/metrics"
	"storewatch/internal/monitor"
	"storewatch/internal/registry"
)

const (
	// DefaultInterval is the sweep cadence.
	DefaultInterval = 2 * time.Minute
	// DefaultThreshold is how long a store may be silent before it is
	// considered offline.
	DefaultThreshold = 5 * time.Minute
	// graceBuffer absorbs the race where a sweep runs between a heartbeat
	// being due and arriving.
	graceBuffer = 30 * time.Second
)

// StatusStore is the persistence the sweeper needs: mirroring offline
// transitions and hydrating the registry.
type StatusStore interface {
	UpdateStoreStatus(ctx context.Context, storeID string, status monitor.StoreStatus, at time.Time) error
	ListStores(ctx context.Context) ([]monitor.StoreRow, error)
}

type Sweeper struct {
	Registry   *registry.Registry
	Store      StatusStore
	Dispatcher *alert.Dispatcher
	Interval   time.Duration
	Threshold  time.Duration
	Clock      monitor.Clock
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Sweeper) staleAfter() time.Duration {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return threshold + graceBuffer
}

func (s *Sweeper) clock() monitor.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return monitor.RealClock{}
}

// Run hydrates the registry once, then sweeps on a ticker until ctx is
// canceled. A missed or slow tick is harmless; sweeps are idempotent.
func (s *Sweeper) Run(ctx context.Context) error {
	check.Assert(s.Registry != nil, "sweeper.Run: Registry must not be nil")
	check.Assert(s.Dispatcher != nil, "sweeper.Run: Dispatcher must not be nil")

	if _, err := s.Hydrate(ctx); err != nil {
		slog.Warn("hydrate registry at startup", "err", err)
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one sweep: stale stores transition to offline, transitions
// go to the dispatcher, and fresh offline transitions are mirrored to the
// stores table. Returns the number of transitions produced.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.clock().Now()
	started := time.Now()

	transitions := s.Registry.Sweep(now, s.staleAfter())
	for _, t := range transitions {
		if !t.Repeat && s.Store != nil {
			if err := s.Store.UpdateStoreStatus(ctx, t.Store.StoreID, t.To, now); err != nil {
				slog.Error("mirror offline status", "store", t.Store.StoreID, "err", err)
			}
		}
		s.Dispatcher.Dispatch(ctx, t)
	}

	online, offline, unknown := s.Registry.Counts()
	metrics.StoresByStatus.WithLabelValues("online").Set(float64(online))
	metrics.StoresByStatus.WithLabelValues("offline").Set(float64(offline))
	metrics.StoresByStatus.WithLabelValues("unknown").Set(float64(unknown))
	metrics.SweepDuration.Observe(time.Since(started).Seconds())

	if len(transitions) > 0 {
		slog.Info("health sweep", "transitions", len(transitions),
			"online", online, "offline", offline, "unknown", unknown)
	}
	return len(transitions)
}

// Hydrate loads persisted stores the registry does not know yet. Runs at
// startup and on the admin trigger endpoint, not on every sweep, to bound
// database load.
func (s *Sweeper) Hydrate(ctx context.Context) (int, error) {
	if s.Store == nil {
		return 0, nil
	}
	rows, err := s.Store.ListStores(ctx)
	if err != nil {
		return 0, err
	}
	added := s.Registry.Hydrate(rows)
	if added > 0 {
		slog.Info("hydrated stores from persistence", "added", added)
	}
	return added, nil
}
