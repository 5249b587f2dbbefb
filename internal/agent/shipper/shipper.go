// Package shipper drives the agent: collect on a fixed cadence, deliver
// live, buffer on failure, and drain the buffer after a successful send.
package shipper

import (
	"context"
	"log/slog"
	"time"

	"storewatch/internal/agent/buffer"
	"storewatch/internal/agent/clockskew"
	"storewatch/internal/agent/collector"
	"storewatch/internal/check"
	"storewatch/internal/monitor"
)

const (
	// DefaultInterval between heartbeats.
	DefaultInterval = 60 * time.Second
	// maintenanceInterval drives buffer GC, speed re-measurement, and the
	// clock-skew check.
	maintenanceInterval = 30 * time.Minute
	// drainBatchSize caps how many buffered heartbeats one drain replays.
	drainBatchSize = 10
)

// Shipper owns the agent's timers. One Run loop; the collector's counters
// are updated concurrently by the host application.
type Shipper struct {
	Collector *collector.Collector
	Buffer    buffer.Buffer
	Client    *Client
	Interval  time.Duration
	Skew      *clockskew.Checker
	Clock     monitor.Clock

	// startupPending is true until one live delivery succeeds; every
	// heartbeat until then carries is_startup=true.
	startupPending bool
}

func (s *Shipper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Shipper) clock() monitor.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return monitor.RealClock{}
}

// Run emits one startup heartbeat immediately, then ticks until ctx is
// canceled. On shutdown it attempts one final drain before returning.
func (s *Shipper) Run(ctx context.Context) error {
	check.Assert(s.Collector != nil, "shipper.Run: Collector must not be nil")
	check.Assert(s.Buffer != nil, "shipper.Run: Buffer must not be nil")
	check.Assert(s.Client != nil, "shipper.Run: Client must not be nil")

	s.startupPending = true
	if s.Skew != nil {
		s.Skew.Check(ctx)
	}
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	maintenance := time.NewTicker(maintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finalDrain()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		case <-maintenance.C:
			s.maintain(ctx)
		}
	}
}

// Tick runs one collect-and-deliver cycle.
func (s *Shipper) Tick(ctx context.Context) {
	if sp := s.speedProber(); sp != nil {
		sp.MeasureIfDue(ctx)
	}

	hb := s.Collector.Collect(ctx, s.startupPending)
	ack, err := s.Client.SendLive(ctx, hb)
	now := s.clock().Now()
	if err != nil {
		s.Collector.RecordDeliveryResult(false, now)
		slog.Warn("heartbeat delivery failed, buffering",
			"consecutive_failures", s.Collector.ConsecutiveFailures(), "err", err)
		if _, bufErr := s.Buffer.Enqueue(ctx, hb); bufErr != nil {
			// Swallowed: the next tick still attempts direct delivery.
			slog.Error("buffer heartbeat", "err", bufErr)
		}
		return
	}

	s.Collector.RecordDeliveryResult(true, now)
	if s.startupPending {
		s.startupPending = false
		slog.Info("startup heartbeat delivered", "stores_monitored", ack.TotalStoresMonitored)
	}
	s.drain(ctx)
}

// drain replays the oldest buffered heartbeats after a successful live send.
// The first network-class failure aborts the drain; server rejections skip
// the entry and continue.
func (s *Shipper) drain(ctx context.Context) {
	entries, err := s.Buffer.Peek(ctx, drainBatchSize)
	if err != nil {
		slog.Error("peek buffer", "err", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	sent := 0
	for _, e := range entries {
		if _, err := s.Client.SendBuffered(ctx, e.Heartbeat); err != nil {
			if IsNetworkError(err) {
				slog.Warn("buffer drain aborted", "sent", sent, "remaining", len(entries)-sent, "err", err)
				return
			}
			slog.Warn("buffered heartbeat rejected, skipping", "seq", e.Seq, "err", err)
			if err := s.Buffer.MarkSent(ctx, e.Seq); err != nil {
				slog.Error("mark rejected heartbeat", "seq", e.Seq, "err", err)
			}
			continue
		}
		if err := s.Buffer.MarkSent(ctx, e.Seq); err != nil {
			// Entry will be re-sent after restart; at-least-once holds.
			slog.Error("mark buffered heartbeat sent", "seq", e.Seq, "err", err)
		}
		sent++
	}
	if sent > 0 {
		slog.Info("buffer drained", "sent", sent)
	}
}

func (s *Shipper) maintain(ctx context.Context) {
	if removed, err := s.Buffer.GC(ctx, buffer.DefaultRetention); err != nil {
		slog.Error("buffer gc", "err", err)
	} else if removed > 0 {
		slog.Debug("buffer gc", "removed", removed)
	}
	if sp := s.speedProber(); sp != nil {
		sp.MeasureIfDue(ctx)
	}
	if s.Skew != nil {
		s.Skew.Check(ctx)
	}
}

func (s *Shipper) finalDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout*drainBatchSize)
	defer cancel()
	s.drain(ctx)
	if err := s.Buffer.Close(); err != nil {
		slog.Warn("close buffer", "err", err)
	}
}

func (s *Shipper) speedProber() *collector.SpeedProber {
	return s.Collector.Speed()
}
