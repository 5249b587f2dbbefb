// Package registry tracks per-store liveness in memory. It is the single
// writer of store status: heartbeats move stores online, sweeps move them
// offline. The registry only mutates state and reports transitions; alert
// policy (cooldowns, recipients, delivery) lives in the alert dispatcher.
package registry

import (
	"sync"
	"time"

	"storewatch/internal/check"
	"storewatch/internal/monitor"
)

type record struct {
	id            string
	name          string
	status        monitor.StoreStatus
	lastHeartbeat time.Time // zero when the store has never heartbeated
	firstSeen     time.Time
	latest        *monitor.Heartbeat
}

// Registry is safe for concurrent use. One mutex serializes all status
// transitions; heartbeat rates are low enough that per-key sharding is not
// worth the complexity.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*record
}

func New() *Registry {
	return &Registry{stores: make(map[string]*record)}
}

// Observe applies an incoming heartbeat and returns the resulting transition.
// ok is false when the heartbeat refreshed an already-online store without a
// startup flag, which is the steady-state no-alert path.
//
// Receipt itself is proof of life: the store always ends up online, even if
// the heartbeat's own timestamp is older than what we have. An older
// timestamp never rewinds lastHeartbeat.
func (r *Registry) Observe(hb monitor.Heartbeat, receivedAt time.Time) (monitor.Transition, bool) {
	check.Assert(hb.StoreID != "", "registry.Observe: store id must not be empty")

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.stores[hb.StoreID]
	if !exists {
		rec = &record{
			id:            hb.StoreID,
			name:          hb.StoreName,
			status:        monitor.StatusOnline,
			lastHeartbeat: receivedAt,
			firstSeen:     receivedAt,
			latest:        &hb,
		}
		r.stores[hb.StoreID] = rec
		return r.transitionLocked(rec, monitor.AlertStartup, monitor.StatusUnknown, receivedAt), true
	}

	prev := rec.status
	if hb.StoreName != "" {
		rec.name = hb.StoreName
	}
	if receivedAt.After(rec.lastHeartbeat) {
		rec.lastHeartbeat = receivedAt
	}
	rec.latest = &hb
	if prev != monitor.StatusOnline {
		rec.status = prev.Transition(monitor.StatusOnline)
	}

	switch {
	case prev == monitor.StatusOffline && !hb.IsStartup:
		return r.transitionLocked(rec, monitor.AlertRecovery, prev, receivedAt), true
	case prev == monitor.StatusOffline && hb.IsStartup:
		// The client restarted while we considered the store offline. A
		// process restart is not an outage recovery.
		return r.transitionLocked(rec, monitor.AlertStartup, prev, receivedAt), true
	case prev == monitor.StatusUnknown:
		return r.transitionLocked(rec, monitor.AlertStartup, prev, receivedAt), true
	case hb.IsStartup:
		return r.transitionLocked(rec, monitor.AlertStartup, prev, receivedAt), true
	default:
		return monitor.Transition{}, false
	}
}

// Sweep marks stores with no heartbeat within staleAfter as offline and
// returns one transition per stale store. Fresh transitions have
// Repeat=false; stores that were already offline come back with Repeat=true
// so the dispatcher can apply the offline cooldown. Stores that have never
// heartbeated are skipped. Sweep never moves a store online.
func (r *Registry) Sweep(now time.Time, staleAfter time.Duration) []monitor.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []monitor.Transition
	for _, rec := range r.stores {
		if rec.lastHeartbeat.IsZero() {
			continue
		}
		if now.Sub(rec.lastHeartbeat) <= staleAfter {
			continue
		}
		prev := rec.status
		if prev == monitor.StatusOffline {
			t := r.transitionLocked(rec, monitor.AlertOffline, prev, now)
			t.Repeat = true
			out = append(out, t)
			continue
		}
		rec.status = prev.Transition(monitor.StatusOffline)
		out = append(out, r.transitionLocked(rec, monitor.AlertOffline, prev, now))
	}
	return out
}

// Hydrate inserts persisted store rows that the registry does not know yet.
// Hydrated records enter as unknown regardless of their persisted status, so
// no alert fires until direct evidence (a heartbeat or a stale sweep)
// arrives. Live records are never overwritten. Returns the number of rows
// added.
func (r *Registry) Hydrate(rows []monitor.StoreRow) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, row := range rows {
		if row.StoreID == "" {
			continue
		}
		if _, exists := r.stores[row.StoreID]; exists {
			continue
		}
		firstSeen := row.CreatedAt
		if firstSeen.IsZero() {
			firstSeen = row.LastHeartbeat
		}
		r.stores[row.StoreID] = &record{
			id:            row.StoreID,
			name:          row.StoreName,
			status:        monitor.StatusUnknown,
			lastHeartbeat: row.LastHeartbeat,
			firstSeen:     firstSeen,
		}
		added++
	}
	return added
}

// Get returns a snapshot of one store.
func (r *Registry) Get(storeID string) (monitor.StoreSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.stores[storeID]
	if !ok {
		return monitor.StoreSnapshot{}, false
	}
	return rec.snapshot(), true
}

// Snapshot returns a copy of every store record.
func (r *Registry) Snapshot() []monitor.StoreSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]monitor.StoreSnapshot, 0, len(r.stores))
	for _, rec := range r.stores {
		out = append(out, rec.snapshot())
	}
	return out
}

// Len reports the number of known stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Counts reports how many stores are in each status.
func (r *Registry) Counts() (online, offline, unknown int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.stores {
		switch rec.status {
		case monitor.StatusOnline:
			online++
		case monitor.StatusOffline:
			offline++
		default:
			unknown++
		}
	}
	return online, offline, unknown
}

func (r *Registry) transitionLocked(rec *record, kind monitor.AlertKind, from monitor.StoreStatus, at time.Time) monitor.Transition {
	return monitor.Transition{
		Kind:  kind,
		Store: rec.snapshot(),
		From:  from,
		To:    rec.status,
		At:    at,
	}
}

func (rec *record) snapshot() monitor.StoreSnapshot {
	snap := monitor.StoreSnapshot{
		StoreID:       rec.id,
		StoreName:     rec.name,
		Status:        rec.status,
		StatusText:    rec.status.String(),
		LastHeartbeat: rec.lastHeartbeat,
		FirstSeen:     rec.firstSeen,
	}
	if rec.latest != nil {
		hb := *rec.latest
		snap.Latest = &hb
	}
	return snap
}
