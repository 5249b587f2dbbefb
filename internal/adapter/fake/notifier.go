package fake

import (
	"context"
	"errors"
	"sync"

	"storewatch/internal/notify"
)

var errForced = errors.New("forced failure")

// Notifier records sent messages. Sent receives every message as it is
// delivered, so tests can wait on the async dispatcher queue.
type Notifier struct {
	mu       sync.Mutex
	Messages []notify.Message
	Fail     bool

	Sent chan notify.Message
}

func NewNotifier() *Notifier {
	return &Notifier{Sent: make(chan notify.Message, 16)}
}

func (n *Notifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail {
		return errForced
	}
	n.Messages = append(n.Messages, msg)
	select {
	case n.Sent <- msg:
	default:
	}
	return nil
}

// Count returns the number of delivered messages.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

// Recipients is a fixed store-to-address map with a default entry.
type Recipients struct {
	ByStore map[string][]string
	Default []string
}

func (r *Recipients) Resolve(storeID string) []string {
	if to, ok := r.ByStore[storeID]; ok && len(to) > 0 {
		return to
	}
	return r.Default
}
