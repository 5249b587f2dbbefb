package fake

import (
	"context"
	"sync"
	"time"

	"storewatch/internal/monitor"
)

// Store is an in-memory stand-in for the mysql adapter. It records every
// write so tests can assert on persistence behavior, and can be forced to
// fail to exercise the availability-over-durability ingestion contract.
type Store struct {
	mu sync.Mutex

	Heartbeats   []SavedHeartbeat
	Alerts       []monitor.Alert
	StatusWrites []StatusWrite
	Rows         []monitor.StoreRow

	FailSaves  bool
	FailAlerts bool

	nextAlertID int64
}

type SavedHeartbeat struct {
	Heartbeat  monitor.Heartbeat
	ReceivedAt time.Time
	Status     monitor.StoreStatus
}

type StatusWrite struct {
	StoreID string
	Status  monitor.StoreStatus
	At      time.Time
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SaveHeartbeat(_ context.Context, hb monitor.Heartbeat, receivedAt time.Time, status monitor.StoreStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return errForced
	}
	s.Heartbeats = append(s.Heartbeats, SavedHeartbeat{Heartbeat: hb, ReceivedAt: receivedAt, Status: status})
	return nil
}

func (s *Store) InsertAlert(_ context.Context, a monitor.Alert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAlerts {
		return 0, errForced
	}
	s.nextAlertID++
	a.ID = s.nextAlertID
	s.Alerts = append(s.Alerts, a)
	return a.ID, nil
}

func (s *Store) UpdateStoreStatus(_ context.Context, storeID string, status monitor.StoreStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusWrites = append(s.StatusWrites, StatusWrite{StoreID: storeID, Status: status, At: at})
	return nil
}

func (s *Store) ListStores(_ context.Context) ([]monitor.StoreRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitor.StoreRow(nil), s.Rows...), nil
}

func (s *Store) RecentAlerts(_ context.Context, limit int) ([]monitor.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAlerts(s.Alerts, limit), nil
}

func (s *Store) StoreAlerts(_ context.Context, storeID string, limit int) ([]monitor.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered []monitor.Alert
	for _, a := range s.Alerts {
		if a.StoreID == storeID {
			filtered = append(filtered, a)
		}
	}
	return s.lastAlerts(filtered, limit), nil
}

func (s *Store) lastAlerts(alerts []monitor.Alert, limit int) []monitor.Alert {
	out := append([]monitor.Alert(nil), alerts...)
	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AlertKinds returns the kinds of all persisted alerts in insertion order.
func (s *Store) AlertKinds() []monitor.AlertKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.AlertKind, len(s.Alerts))
	for i, a := range s.Alerts {
		out[i] = a.Kind
	}
	return out
}

// HeartbeatCount returns the number of saved heartbeats.
func (s *Store) HeartbeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Heartbeats)
}
