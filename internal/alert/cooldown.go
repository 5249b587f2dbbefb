package alert

import (
	"sync"
	"time"

	"storewatch/internal/monitor"
)

// Default minimum spacing between two notifications of the same kind for the
// same store.
const (
	DefaultOfflineCooldown  = 5 * time.Minute
	DefaultRecoveryCooldown = 5 * time.Minute
	DefaultStartupCooldown  = 10 * time.Minute
)

type cooldownKey struct {
	storeID string
	kind    monitor.AlertKind
}

// Cooldowns is the per-store, per-kind spam suppression table. Entries live
// for the daemon process lifetime and are deliberately not persisted: after a
// restart the worst case is one early re-notification.
type Cooldowns struct {
	mu        sync.Mutex
	intervals map[monitor.AlertKind]time.Duration
	last      map[cooldownKey]time.Time
}

// NewCooldowns builds a table with the given offline interval and default
// recovery/startup intervals.
func NewCooldowns(offline time.Duration) *Cooldowns {
	if offline <= 0 {
		offline = DefaultOfflineCooldown
	}
	return &Cooldowns{
		intervals: map[monitor.AlertKind]time.Duration{
			monitor.AlertOffline:  offline,
			monitor.AlertRecovery: DefaultRecoveryCooldown,
			monitor.AlertStartup:  DefaultStartupCooldown,
		},
		last: make(map[cooldownKey]time.Time),
	}
}

// Allow reports whether a notification of kind may be sent for storeID at
// now, and records the send if so. Check and set happen under one lock so
// concurrent dispatches cannot both pass.
func (c *Cooldowns) Allow(storeID string, kind monitor.AlertKind, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	interval, governed := c.intervals[kind]
	if !governed {
		return true
	}
	key := cooldownKey{storeID: storeID, kind: kind}
	if last, ok := c.last[key]; ok && now.Sub(last) < interval {
		return false
	}
	c.last[key] = now
	return true
}

// Record stamps a send without consulting the table. Used for the first
// offline transition, which is always delivered but still starts the repeat
// cooldown window.
func (c *Cooldowns) Record(storeID string, kind monitor.AlertKind, now time.Time) {
	c.mu.Lock()
	c.last[cooldownKey{storeID: storeID, kind: kind}] = now
	c.mu.Unlock()
}
