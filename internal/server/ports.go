package server

import (
	"context"
	"time"

	"storewatch/internal/monitor"
)

// Store is the persistence surface the HTTP layer needs. Implemented by the
// mysql adapter; tests use the in-memory fake.
type Store interface {
	SaveHeartbeat(ctx context.Context, hb monitor.Heartbeat, receivedAt time.Time, status monitor.StoreStatus) error
	RecentAlerts(ctx context.Context, limit int) ([]monitor.Alert, error)
	StoreAlerts(ctx context.Context, storeID string, limit int) ([]monitor.Alert, error)
}

// RecipientConfig is the reloadable recipients book surface used by the
// config endpoints.
type RecipientConfig interface {
	Snapshot() map[string][]string
	Reload() error
}
