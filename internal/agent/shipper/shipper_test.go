package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storewatch/internal/adapter/fake"
	"storewatch/internal/agent/buffer"
	"storewatch/internal/agent/collector"
	"storewatch/internal/monitor"
)

// fakeServer is a scriptable ingestion endpoint. Each received heartbeat is
// recorded with the path it arrived on.
type fakeServer struct {
	mu       sync.Mutex
	received []receivedHeartbeat
	failLive bool
	reject   bool

	srv *httptest.Server
}

type receivedHeartbeat struct {
	Path      string
	Heartbeat monitor.Heartbeat
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.failLive && r.URL.Path == "/heartbeat" {
			// Simulate an unreachable server by hijacking and dropping the
			// connection, which surfaces as a transport error client-side.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer cannot hijack")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		if f.reject {
			http.Error(w, "malformed heartbeat", http.StatusBadRequest)
			return
		}

		var hb monitor.Heartbeat
		if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.received = append(f.received, receivedHeartbeat{Path: r.URL.Path, Heartbeat: hb})
		json.NewEncoder(w).Encode(Ack{Status: "ok", TotalStoresMonitored: 1})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) setFailLive(v bool) {
	f.mu.Lock()
	f.failLive = v
	f.mu.Unlock()
}

func (f *fakeServer) setReject(v bool) {
	f.mu.Lock()
	f.reject = v
	f.mu.Unlock()
}

func (f *fakeServer) all() []receivedHeartbeat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]receivedHeartbeat(nil), f.received...)
}

func newTestShipper(t *testing.T, srv *fakeServer) (*Shipper, *buffer.Memory) {
	t.Helper()
	clock := fake.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	buf := buffer.NewMemory(clock)
	coll := collector.New(collector.Config{StoreID: "s1", StoreName: "Store 1", Clock: clock})
	return &Shipper{
		Collector: coll,
		Buffer:    buf,
		Client:    NewClient(srv.srv.URL),
		Clock:     clock,
	}, buf
}

func TestTickDeliversStartupThenSteady(t *testing.T) {
	srv := newFakeServer(t)
	s, _ := newTestShipper(t, srv)
	s.startupPending = true

	s.Tick(context.Background())
	s.Tick(context.Background())

	got := srv.all()
	if len(got) != 2 {
		t.Fatalf("received = %d", len(got))
	}
	if !got[0].Heartbeat.IsStartup {
		t.Fatal("first heartbeat must carry is_startup")
	}
	if got[1].Heartbeat.IsStartup {
		t.Fatal("is_startup must clear after a successful delivery")
	}
}

func TestTickBuffersOnFailure(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)
	s.startupPending = true
	srv.setFailLive(true)

	s.Tick(context.Background())
	s.Tick(context.Background())

	entries, _ := buf.Peek(context.Background(), 10)
	if len(entries) != 2 {
		t.Fatalf("buffered = %d, want 2", len(entries))
	}
	// Both failed deliveries kept the startup flag set.
	for _, e := range entries {
		if !e.Heartbeat.IsStartup {
			t.Fatal("is_startup must persist until a delivery succeeds")
		}
	}
	if s.Collector.ConsecutiveFailures() != 2 {
		t.Fatalf("consecutive failures = %d", s.Collector.ConsecutiveFailures())
	}
}

func TestSuccessfulTickDrainsBuffer(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)
	s.startupPending = true

	srv.setFailLive(true)
	s.Tick(context.Background())
	s.Tick(context.Background())

	srv.setFailLive(false)
	s.Tick(context.Background())

	var live, replayed int
	for _, r := range srv.all() {
		switch r.Path {
		case "/heartbeat":
			live++
		case "/heartbeat/buffered":
			replayed++
		}
	}
	if live != 1 || replayed != 2 {
		t.Fatalf("live = %d, replayed = %d", live, replayed)
	}

	entries, _ := buf.Peek(context.Background(), 10)
	if len(entries) != 0 {
		t.Fatalf("buffer not drained: %d entries left", len(entries))
	}
}

func TestDrainReplaysOldestFirst(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		buf.Enqueue(context.Background(), monitor.Heartbeat{
			StoreID: "s1", Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	s.drain(context.Background())

	got := srv.all()
	if len(got) != 3 {
		t.Fatalf("replayed = %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Heartbeat.Timestamp.Before(got[i-1].Heartbeat.Timestamp) {
			t.Fatal("replay out of order")
		}
	}
}

func TestDrainSkipsRejectedEntries(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)

	buf.Enqueue(context.Background(), monitor.Heartbeat{StoreID: "s1", Timestamp: time.Now()})
	srv.setReject(true)

	s.drain(context.Background())

	entries, _ := buf.Peek(context.Background(), 10)
	if len(entries) != 0 {
		t.Fatal("rejected entry must be marked sent, not replayed forever")
	}
}

func TestDrainAbortsOnNetworkError(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)

	for i := 0; i < 3; i++ {
		buf.Enqueue(context.Background(), monitor.Heartbeat{StoreID: "s1", Timestamp: time.Now()})
	}
	srv.srv.Close()

	s.drain(context.Background())

	entries, _ := buf.Peek(context.Background(), 10)
	if len(entries) != 3 {
		t.Fatalf("network failure must leave the buffer intact, %d entries left", len(entries))
	}
}

func TestDrainBatchLimit(t *testing.T) {
	srv := newFakeServer(t)
	s, buf := newTestShipper(t, srv)

	for i := 0; i < drainBatchSize+5; i++ {
		buf.Enqueue(context.Background(), monitor.Heartbeat{StoreID: "s1", Timestamp: time.Now()})
	}

	s.drain(context.Background())

	if got := len(srv.all()); got != drainBatchSize {
		t.Fatalf("one drain replayed %d, want %d", got, drainBatchSize)
	}
	entries, _ := buf.Peek(context.Background(), 100)
	if len(entries) != 5 {
		t.Fatalf("remaining = %d, want 5", len(entries))
	}
}

func TestIsNetworkError(t *testing.T) {
	if IsNetworkError(nil) {
		t.Fatal("nil is not a network error")
	}
	if IsNetworkError(&StatusError{Code: 400}) {
		t.Fatal("server rejection is not a network error")
	}
	if !IsNetworkError(context.DeadlineExceeded) {
		t.Fatal("timeout is a network error")
	}
}

func TestClientStatusError(t *testing.T) {
	srv := newFakeServer(t)
	srv.setReject(true)
	c := NewClient(srv.srv.URL)

	_, err := c.SendLive(context.Background(), monitor.Heartbeat{StoreID: "s1"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", se.Code)
	}
}
