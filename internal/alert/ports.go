package alert

import (
	"context"

	"storewatch/internal/monitor"
	"storewatch/internal/notify"
)

// Store persists alert rows. Implemented by the mysql adapter.
type Store interface {
	InsertAlert(ctx context.Context, a monitor.Alert) (int64, error)
}

// RecipientSource resolves the notification targets for a store. An empty
// slice means the alert is persisted but no notification is attempted.
type RecipientSource interface {
	Resolve(storeID string) []string
}

// Notifier delivers one message to its recipients.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}
