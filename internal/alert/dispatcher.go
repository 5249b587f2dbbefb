// Package alert turns liveness transitions into persisted alert rows and
// notifications. Policy lives here: severity mapping, cooldown suppression,
// recipient resolution, and the asynchronous delivery queue that keeps SMTP
// latency out of the ingestion and sweeper paths.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storewatch/internal/check"
	"storewatch/internal/metrics"
	"storewatch/internal/monitor"
	"storewatch/internal/notify"
)

const (
	// deliveryQueueCap bounds the async queue; at typical fleet sizes the
	// queue never fills unless SMTP is down, in which case dropping is the
	// documented behavior (the next cooldown tick resends).
	deliveryQueueCap = 64
	// deliveryTimeout caps one notification send.
	deliveryTimeout = 30 * time.Second
)

type delivery struct {
	msg notify.Message
}

// Dispatcher persists and delivers alerts. Dispatch is safe for concurrent
// use from the ingestion handlers and the sweeper.
type Dispatcher struct {
	store      Store
	recipients RecipientSource
	notifier   Notifier
	cooldowns  *Cooldowns
	clock      monitor.Clock

	queue chan delivery
	wg    sync.WaitGroup
	once  sync.Once
}

// Config carries the dispatcher's collaborators. Notifier may be nil, in
// which case alerts are persisted but never delivered.
type Config struct {
	Store      Store
	Recipients RecipientSource
	Notifier   Notifier
	Cooldowns  *Cooldowns
	Clock      monitor.Clock
}

func NewDispatcher(cfg Config) *Dispatcher {
	check.Assert(cfg.Store != nil, "alert.NewDispatcher: Store must not be nil")
	cooldowns := cfg.Cooldowns
	if cooldowns == nil {
		cooldowns = NewCooldowns(DefaultOfflineCooldown)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &Dispatcher{
		store:      cfg.Store,
		recipients: cfg.Recipients,
		notifier:   cfg.Notifier,
		cooldowns:  cooldowns,
		clock:      clock,
		queue:      make(chan delivery, deliveryQueueCap),
	}
}

// Start launches the delivery worker. It returns immediately; the worker
// drains the queue until ctx is canceled, then finishes in-flight sends.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
	})
}

// Wait blocks until the delivery worker has exited. Call after canceling the
// context passed to Start.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch applies cooldown policy to a transition, persists the alert row,
// and queues the notification. The alert row is written even when no
// recipients are configured or the notifier is absent.
//
// Suppressed transitions (repeat offline inside the cooldown window, startup
// or recovery re-fired too soon) produce neither a row nor a notification.
func (d *Dispatcher) Dispatch(ctx context.Context, t monitor.Transition) {
	now := d.clock.Now()

	if t.Kind == monitor.AlertOffline && !t.Repeat {
		// First offline transition is always delivered but still opens the
		// repeat cooldown window.
		d.cooldowns.Record(t.Store.StoreID, t.Kind, now)
	} else if !d.cooldowns.Allow(t.Store.StoreID, t.Kind, now) {
		metrics.AlertsSuppressed.WithLabelValues(string(t.Kind)).Inc()
		slog.Debug("alert suppressed by cooldown", "store", t.Store.StoreID, "kind", t.Kind)
		return
	}

	a := monitor.Alert{
		StoreID:   t.Store.StoreID,
		Kind:      t.Kind,
		Message:   buildLogMessage(t),
		Severity:  monitor.SeverityFor(t.Kind),
		Timestamp: now,
	}
	if _, err := d.store.InsertAlert(ctx, a); err != nil {
		slog.Error("persist alert", "store", t.Store.StoreID, "kind", t.Kind, "err", err)
		// Fall through: a notification is still worth more than nothing.
	}
	metrics.AlertsTotal.WithLabelValues(string(t.Kind)).Inc()

	d.enqueue(t)
}

// DispatchTest persists and delivers a synthetic offline-style alert for one
// store. Backs the /test-email admin endpoint.
func (d *Dispatcher) DispatchTest(ctx context.Context, snap monitor.StoreSnapshot) {
	now := d.clock.Now()
	a := monitor.Alert{
		StoreID:   snap.StoreID,
		Kind:      monitor.AlertTest,
		Message:   "test alert requested by operator",
		Severity:  monitor.SeverityLow,
		Timestamp: now,
	}
	if _, err := d.store.InsertAlert(ctx, a); err != nil {
		slog.Error("persist test alert", "store", snap.StoreID, "err", err)
	}
	d.enqueue(monitor.Transition{Kind: monitor.AlertTest, Store: snap, At: now})
}

func (d *Dispatcher) enqueue(t monitor.Transition) {
	if d.notifier == nil {
		return
	}
	to := d.resolveRecipients(t.Store.StoreID)
	if len(to) == 0 {
		slog.Warn("no recipients configured, notification skipped",
			"store", t.Store.StoreID, "kind", t.Kind)
		return
	}

	msg := notify.Message{
		To:      to,
		Subject: buildSubject(t),
		Body:    buildBody(t),
	}
	select {
	case d.queue <- delivery{msg: msg}:
	default:
		metrics.NotifyFailures.Inc()
		slog.Error("notification queue full, dropping", "store", t.Store.StoreID, "kind", t.Kind)
	}
}

func (d *Dispatcher) resolveRecipients(storeID string) []string {
	if d.recipients == nil {
		return nil
	}
	return d.recipients.Resolve(storeID)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Best-effort flush of whatever is already queued.
			for {
				select {
				case dl := <-d.queue:
					d.send(dl)
				default:
					return
				}
			}
		case dl := <-d.queue:
			d.send(dl)
		}
	}
}

func (d *Dispatcher) send(dl delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := d.notifier.Send(ctx, dl.msg); err != nil {
		metrics.NotifyFailures.Inc()
		// No retry: for offline alerts the next cooldown tick resends.
		slog.Error("send notification", "subject", dl.msg.Subject, "err", err)
		return
	}
	slog.Info("notification sent", "subject", dl.msg.Subject, "recipients", len(dl.msg.To))
}
