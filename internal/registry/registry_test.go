package registry

import (
	"testing"
	"time"

	"storewatch/internal/monitor"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func hb(id string, startup bool) monitor.Heartbeat {
	return monitor.Heartbeat{StoreID: id, StoreName: "Store " + id, Timestamp: base, IsStartup: startup}
}

func TestObserve(t *testing.T) {
	t.Run("first heartbeat creates online record with startup transition", func(t *testing.T) {
		r := New()
		tr, ok := r.Observe(hb("a", true), base)
		if !ok {
			t.Fatal("Observe() ok = false, want transition")
		}
		if tr.Kind != monitor.AlertStartup {
			t.Fatalf("kind = %s, want startup", tr.Kind)
		}
		if tr.To != monitor.StatusOnline {
			t.Fatalf("to = %s, want online", tr.To)
		}
		snap, found := r.Get("a")
		if !found {
			t.Fatal("store a not found after Observe")
		}
		if snap.Status != monitor.StatusOnline {
			t.Fatalf("status = %s, want online", snap.Status)
		}
		if !snap.FirstSeen.Equal(base) {
			t.Fatalf("firstSeen = %v, want %v", snap.FirstSeen, base)
		}
	})

	t.Run("steady state heartbeats produce no transition", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		for i := 1; i <= 3; i++ {
			at := base.Add(time.Duration(i) * time.Minute)
			if _, ok := r.Observe(hb("a", false), at); ok {
				t.Fatalf("heartbeat %d produced a transition, want none", i)
			}
		}
		snap, _ := r.Get("a")
		if want := base.Add(3 * time.Minute); !snap.LastHeartbeat.Equal(want) {
			t.Fatalf("lastHeartbeat = %v, want %v", snap.LastHeartbeat, want)
		}
	})

	t.Run("offline store recovering emits recovery", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		r.Sweep(base.Add(10*time.Minute), 5*time.Minute+30*time.Second)

		tr, ok := r.Observe(hb("a", false), base.Add(17*time.Minute))
		if !ok || tr.Kind != monitor.AlertRecovery {
			t.Fatalf("got (%v, %v), want recovery transition", tr.Kind, ok)
		}
		if tr.From != monitor.StatusOffline || tr.To != monitor.StatusOnline {
			t.Fatalf("transition %s -> %s, want offline -> online", tr.From, tr.To)
		}
	})

	t.Run("startup flag on offline store is startup not recovery", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		r.Sweep(base.Add(10*time.Minute), 5*time.Minute+30*time.Second)

		tr, ok := r.Observe(hb("a", true), base.Add(17*time.Minute))
		if !ok || tr.Kind != monitor.AlertStartup {
			t.Fatalf("got (%v, %v), want startup transition", tr.Kind, ok)
		}
	})

	t.Run("startup flag on online store is a client restart", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		tr, ok := r.Observe(hb("a", true), base.Add(time.Minute))
		if !ok || tr.Kind != monitor.AlertStartup {
			t.Fatalf("got (%v, %v), want startup transition", tr.Kind, ok)
		}
	})

	t.Run("hydrated unknown store goes online with startup", func(t *testing.T) {
		r := New()
		r.Hydrate([]monitor.StoreRow{{StoreID: "b", StoreName: "Store b", LastHeartbeat: base.Add(-time.Hour)}})

		tr, ok := r.Observe(hb("b", false), base)
		if !ok || tr.Kind != monitor.AlertStartup {
			t.Fatalf("got (%v, %v), want startup (previous status unknown, not offline)", tr.Kind, ok)
		}
	})

	t.Run("late receipt never rewinds lastHeartbeat", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		r.Observe(hb("a", false), base.Add(2*time.Minute))
		r.Observe(hb("a", false), base.Add(time.Minute)) // delayed replay

		snap, _ := r.Get("a")
		if want := base.Add(2 * time.Minute); !snap.LastHeartbeat.Equal(want) {
			t.Fatalf("lastHeartbeat = %v, want %v", snap.LastHeartbeat, want)
		}
		if snap.Status != monitor.StatusOnline {
			t.Fatalf("status = %s, want online", snap.Status)
		}
	})
}

func TestSweep(t *testing.T) {
	const stale = 5*time.Minute + 30*time.Second

	t.Run("fresh store untouched", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		if got := r.Sweep(base.Add(3*time.Minute), stale); len(got) != 0 {
			t.Fatalf("Sweep() = %d transitions, want 0", len(got))
		}
	})

	t.Run("boundary delta equal to threshold does not fire", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		if got := r.Sweep(base.Add(stale), stale); len(got) != 0 {
			t.Fatalf("Sweep() at exact threshold = %d transitions, want 0", len(got))
		}
	})

	t.Run("stale store transitions offline once then repeats", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)

		got := r.Sweep(base.Add(10*time.Minute), stale)
		if len(got) != 1 {
			t.Fatalf("Sweep() = %d transitions, want 1", len(got))
		}
		if got[0].Kind != monitor.AlertOffline || got[0].Repeat {
			t.Fatalf("got kind=%s repeat=%v, want fresh offline", got[0].Kind, got[0].Repeat)
		}

		got = r.Sweep(base.Add(12*time.Minute), stale)
		if len(got) != 1 || !got[0].Repeat {
			t.Fatalf("second sweep = %+v, want one repeat offline", got)
		}
	})

	t.Run("never-heartbeated hydrated store is skipped", func(t *testing.T) {
		r := New()
		r.Hydrate([]monitor.StoreRow{{StoreID: "c", StoreName: "Store c"}})
		if got := r.Sweep(base.Add(time.Hour), stale); len(got) != 0 {
			t.Fatalf("Sweep() = %d transitions, want 0 for store with no heartbeat", len(got))
		}
	})

	t.Run("hydrated store with stale persisted heartbeat goes offline", func(t *testing.T) {
		r := New()
		r.Hydrate([]monitor.StoreRow{{StoreID: "c", LastHeartbeat: base.Add(-time.Hour)}})
		got := r.Sweep(base, stale)
		if len(got) != 1 || got[0].From != monitor.StatusUnknown || got[0].To != monitor.StatusOffline {
			t.Fatalf("sweep of stale hydrated store = %+v, want unknown -> offline", got)
		}
	})

	t.Run("sweep never produces online", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		r.Sweep(base.Add(10*time.Minute), stale)
		for _, tr := range r.Sweep(base.Add(20*time.Minute), stale) {
			if tr.To == monitor.StatusOnline {
				t.Fatalf("sweep produced transition to online: %+v", tr)
			}
		}
	})
}

func TestHydrate(t *testing.T) {
	t.Run("does not overwrite live records", func(t *testing.T) {
		r := New()
		r.Observe(hb("a", true), base)
		added := r.Hydrate([]monitor.StoreRow{
			{StoreID: "a", Status: monitor.StatusOffline, LastHeartbeat: base.Add(-time.Hour)},
			{StoreID: "b"},
		})
		if added != 1 {
			t.Fatalf("Hydrate() added = %d, want 1", added)
		}
		snap, _ := r.Get("a")
		if snap.Status != monitor.StatusOnline || !snap.LastHeartbeat.Equal(base) {
			t.Fatalf("live record was overwritten: %+v", snap)
		}
		if b, _ := r.Get("b"); b.Status != monitor.StatusUnknown {
			t.Fatalf("hydrated status = %s, want unknown", b.Status)
		}
	})

	t.Run("firstSeen is stable across re-hydration", func(t *testing.T) {
		r := New()
		created := base.Add(-24 * time.Hour)
		r.Hydrate([]monitor.StoreRow{{StoreID: "a", CreatedAt: created}})
		r.Observe(hb("a", false), base)
		r.Hydrate([]monitor.StoreRow{{StoreID: "a", CreatedAt: base}})

		snap, _ := r.Get("a")
		if !snap.FirstSeen.Equal(created) {
			t.Fatalf("firstSeen = %v, want %v", snap.FirstSeen, created)
		}
	})
}

func TestCounts(t *testing.T) {
	r := New()
	r.Observe(hb("a", true), base)
	r.Observe(hb("b", true), base)
	r.Hydrate([]monitor.StoreRow{{StoreID: "c"}})
	r.Observe(hb("b", false), base.Add(time.Minute))
	r.Sweep(base.Add(20*time.Minute), 5*time.Minute+30*time.Second)
	r.Observe(hb("a", false), base.Add(21*time.Minute))

	online, offline, unknown := r.Counts()
	if online != 1 || offline != 1 || unknown != 1 {
		t.Fatalf("Counts() = (%d, %d, %d), want (1, 1, 1)", online, offline, unknown)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}
