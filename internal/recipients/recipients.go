// Package recipients maps store ids to notification addresses. The source is
// a JSON file {"store_id": ["ops@example.com"], "default": [...]}; the
// "default" entry applies to stores with no explicit entry.
package recipients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultKey is the fallback entry applied to unlisted stores.
const DefaultKey = "default"

// Book is a reloadable recipient map. Resolve is safe for concurrent use
// with Reload.
type Book struct {
	path string

	mu      sync.RWMutex
	byStore map[string][]string
}

// Load reads the recipients file. A missing file yields an empty book (every
// alert persists but nothing is notified), not an error: the daemon must
// come up without mail configuration.
func Load(path string) (*Book, error) {
	b := &Book{path: path, byStore: make(map[string][]string)}
	if path == "" {
		return b, nil
	}
	if err := b.Reload(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("recipients file not found, notifications disabled", "path", path)
			return b, nil
		}
		return nil, err
	}
	return b, nil
}

// Reload re-reads the file, replacing the map atomically. On error the
// previous map stays in effect.
func (b *Book) Reload() error {
	if b.path == "" {
		return nil
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		return err
	}
	parsed := make(map[string][]string)
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse recipients file %s: %w", b.path, err)
	}

	b.mu.Lock()
	b.byStore = parsed
	b.mu.Unlock()
	slog.Info("recipients loaded", "path", b.path, "entries", len(parsed))
	return nil
}

// Resolve returns the recipients for a store: its own entry if present,
// otherwise the default set, otherwise nil.
func (b *Book) Resolve(storeID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if to, ok := b.byStore[storeID]; ok && len(to) > 0 {
		return append([]string(nil), to...)
	}
	if to, ok := b.byStore[DefaultKey]; ok && len(to) > 0 {
		return append([]string(nil), to...)
	}
	return nil
}

// Snapshot returns a copy of the full map, for the /config/email endpoint.
func (b *Book) Snapshot() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]string, len(b.byStore))
	for k, v := range b.byStore {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Watch reloads the book whenever the file changes on disk, until ctx is
// canceled. Editors often replace rather than rewrite the file, so the watch
// is on the parent directory.
func (b *Book) Watch(ctx context.Context) error {
	if b.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create recipients watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(b.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(b.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := b.Reload(); err != nil {
				slog.Warn("reload recipients", "path", b.path, "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("recipients watcher", "err", err)
		}
	}
}
