package buffer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"storewatch/internal/monitor"
)

// SQLite is the durable buffer. The table is an append-only log with an
// advancing sent watermark; sequence order is the rowid order.
type SQLite struct {
	db    *sql.DB
	clock monitor.Clock
}

// OpenSQLite creates or opens the buffer database at path.
func OpenSQLite(path string, clock monitor.Clock) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create buffer directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open buffer db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set buffer db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set buffer db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS heartbeat_buffer (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	data TEXT NOT NULL,
	sent INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize buffer schema: %w", err)
	}
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &SQLite{db: db, clock: clock}, nil
}

func (b *SQLite) Enqueue(ctx context.Context, hb monitor.Heartbeat) (int64, error) {
	data, err := json.Marshal(hb)
	if err != nil {
		return 0, fmt.Errorf("marshal buffered heartbeat: %w", err)
	}
	now := b.clock.Now().UTC().Format(time.RFC3339Nano)
	res, err := b.db.ExecContext(ctx, `
INSERT INTO heartbeat_buffer (timestamp, data, sent, created_at) VALUES (?, ?, 0, ?)`,
		hb.Timestamp.UTC().Format(time.RFC3339Nano), string(data), now)
	if err != nil {
		return 0, fmt.Errorf("enqueue heartbeat: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("buffered heartbeat id: %w", err)
	}
	return seq, nil
}

func (b *SQLite) Peek(ctx context.Context, n int) ([]Entry, error) {
	rows, err := b.db.QueryContext(ctx, `
SELECT id, timestamp, data FROM heartbeat_buffer WHERE sent = 0 ORDER BY id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("peek buffer: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts, data string
		if err := rows.Scan(&e.Seq, &ts, &data); err != nil {
			return nil, fmt.Errorf("scan buffer row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		if err := json.Unmarshal([]byte(data), &e.Heartbeat); err != nil {
			return nil, fmt.Errorf("unmarshal buffered heartbeat %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buffer rows: %w", err)
	}
	return out, nil
}

func (b *SQLite) MarkSent(ctx context.Context, seq int64) error {
	if _, err := b.db.ExecContext(ctx, `UPDATE heartbeat_buffer SET sent = 1 WHERE id = ?`, seq); err != nil {
		return fmt.Errorf("mark buffered heartbeat %d sent: %w", seq, err)
	}
	return nil
}

func (b *SQLite) GC(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := b.clock.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	res, err := b.db.ExecContext(ctx, `DELETE FROM heartbeat_buffer WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("gc buffer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (b *SQLite) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
