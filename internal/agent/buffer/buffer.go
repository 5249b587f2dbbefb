// Package buffer is the agent's durable heartbeat queue: heartbeats that
// could not be delivered are appended here and replayed in order after the
// server becomes reachable again. Delivery is at-least-once; an entry whose
// sent mark is lost is harmlessly re-sent after a restart.
package buffer

import (
	"context"
	"time"

	"storewatch/internal/monitor"
)

// DefaultRetention is how long entries are kept before garbage collection.
const DefaultRetention = 24 * time.Hour

// Entry is one buffered heartbeat.
type Entry struct {
	Seq       int64
	Timestamp time.Time
	Heartbeat monitor.Heartbeat
	Sent      bool
}

// Buffer is the durable queue contract. Implementations: SQLite (durable)
// and Memory (bounded ring, documented data-loss fallback).
type Buffer interface {
	// Enqueue appends a heartbeat and returns its sequence number. Never
	// blocks on the network.
	Enqueue(ctx context.Context, hb monitor.Heartbeat) (int64, error)
	// Peek returns up to n unsent entries in ascending sequence order.
	Peek(ctx context.Context, n int) ([]Entry, error)
	// MarkSent is idempotent. A failed mark is logged by the caller and the
	// entry re-sent after restart.
	MarkSent(ctx context.Context, seq int64) error
	// GC deletes entries older than retention.
	GC(ctx context.Context, retention time.Duration) (int, error)
	Close() error
}
