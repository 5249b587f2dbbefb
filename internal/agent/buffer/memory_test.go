package buffer

import (
	"context"
	"testing"
	"time"

	"storewatch/internal/adapter/fake"
)

func TestMemoryEnqueuePeekMarkSent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewMemory(fake.NewClock(base))

	seq1, _ := b.Enqueue(ctx, bufHeartbeat("s1", base))
	seq2, _ := b.Enqueue(ctx, bufHeartbeat("s1", base.Add(time.Minute)))

	entries, _ := b.Peek(ctx, 10)
	if len(entries) != 2 || entries[0].Seq != seq1 {
		t.Fatalf("entries = %+v", entries)
	}

	if err := b.MarkSent(ctx, seq1); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	entries, _ = b.Peek(ctx, 10)
	if len(entries) != 1 || entries[0].Seq != seq2 {
		t.Fatalf("entries after mark = %+v", entries)
	}
}

func TestMemoryOverflowTrimsOldest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewMemory(fake.NewClock(base))

	for i := 0; i < memoryCap+1; i++ {
		b.Enqueue(ctx, bufHeartbeat("s1", base.Add(time.Duration(i)*time.Second)))
	}

	entries, _ := b.Peek(ctx, memoryCap+10)
	if len(entries) != memoryTrimTo {
		t.Fatalf("entries after overflow = %d, want %d", len(entries), memoryTrimTo)
	}
	// The survivors are the newest entries.
	if entries[0].Seq != int64(memoryCap+1-memoryTrimTo+1) {
		t.Fatalf("oldest surviving seq = %d", entries[0].Seq)
	}
	if entries[len(entries)-1].Seq != int64(memoryCap+1) {
		t.Fatalf("newest surviving seq = %d", entries[len(entries)-1].Seq)
	}
}

func TestMemoryGC(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := fake.NewClock(base)
	b := NewMemory(clock)

	b.Enqueue(ctx, bufHeartbeat("s1", base))
	clock.Advance(25 * time.Hour)
	b.Enqueue(ctx, bufHeartbeat("s1", base.Add(25*time.Hour)))

	removed, err := b.GC(ctx, DefaultRetention)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	entries, _ := b.Peek(ctx, 10)
	if len(entries) != 1 {
		t.Fatalf("entries after gc = %d", len(entries))
	}
}
