package buffer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storewatch/internal/monitor"
)

const (
	// memoryCap is the hard size of the in-memory ring.
	memoryCap = 100
	// memoryTrimTo is what the ring is cut back to on overflow, oldest
	// entries first. This is the documented data-loss mode.
	memoryTrimTo = 50
)

// Memory is the fallback buffer used when durable storage is unavailable.
type Memory struct {
	clock monitor.Clock

	mu      sync.Mutex
	entries []Entry
	nextSeq int64

	createdAt map[int64]time.Time
}

func NewMemory(clock monitor.Clock) *Memory {
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &Memory{clock: clock, nextSeq: 1, createdAt: make(map[int64]time.Time)}
}

func (b *Memory) Enqueue(_ context.Context, hb monitor.Heartbeat) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.nextSeq
	b.nextSeq++
	b.entries = append(b.entries, Entry{Seq: seq, Timestamp: hb.Timestamp, Heartbeat: hb})
	b.createdAt[seq] = b.clock.Now()

	if len(b.entries) > memoryCap {
		dropped := len(b.entries) - memoryTrimTo
		for _, e := range b.entries[:dropped] {
			delete(b.createdAt, e.Seq)
		}
		b.entries = append([]Entry(nil), b.entries[dropped:]...)
		slog.Warn("memory buffer overflow, oldest heartbeats dropped", "dropped", dropped)
	}
	return seq, nil
}

func (b *Memory) Peek(_ context.Context, n int) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	for _, e := range b.entries {
		if e.Sent {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (b *Memory) MarkSent(_ context.Context, seq int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.entries {
		if b.entries[i].Seq == seq {
			b.entries[i].Sent = true
			break
		}
	}
	return nil
}

func (b *Memory) GC(_ context.Context, retention time.Duration) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock.Now().Add(-retention)
	kept := b.entries[:0]
	removed := 0
	for _, e := range b.entries {
		created, ok := b.createdAt[e.Seq]
		if ok && created.Before(cutoff) {
			delete(b.createdAt, e.Seq)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return removed, nil
}

func (b *Memory) Close() error { return nil }
