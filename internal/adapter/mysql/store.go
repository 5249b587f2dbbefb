// Package mysql persists heartbeats and alerts in MariaDB/MySQL. The schema
// is created on open; all statements are short single-heartbeat transactions
// so the bounded pool never starves the ingestion path.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"storewatch/internal/monitor"
)

const (
	// maxOpenConns bounds the pool; transactions are single-heartbeat scope.
	maxOpenConns = 10
	// connectMaxElapsed is how long Open retries an unreachable database
	// before giving up.
	connectMaxElapsed = 60 * time.Second
)

// Config is the database connection configuration, read from DB_* env vars.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (c Config) dsn() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Store wraps the connection pool.
type Store struct {
	db *sql.DB
}

// Open connects with exponential backoff and initializes the schema. The
// daemon retries for up to a minute at boot before failing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ping := func() error { return db.PingContext(ctx) }
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(connectMaxElapsed),
	), ctx)
	if err := backoff.Retry(ping, bo); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database %s: %w", cfg.Name, err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stores (
	store_id VARCHAR(64) PRIMARY KEY,
	store_name VARCHAR(255) NOT NULL DEFAULT '',
	last_heartbeat DATETIME NULL,
	status ENUM('online','offline','unknown') NOT NULL DEFAULT 'unknown',
	last_alert_sent DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS heartbeat_history (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	store_id VARCHAR(64) NOT NULL,
	timestamp DATETIME NOT NULL,
	cpu_usage DOUBLE NULL,
	memory_usage DOUBLE NULL,
	disk_free_gb DOUBLE NULL,
	active_cameras INT NOT NULL DEFAULT 0,
	total_cameras INT NOT NULL DEFAULT 0,
	network_connected TINYINT(1) NOT NULL DEFAULT 0,
	payload JSON NOT NULL,
	created_at DATETIME NOT NULL,
	INDEX idx_history_store_time (store_id, timestamp)
)`,
		`CREATE TABLE IF NOT EXISTS system_stats (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	store_id VARCHAR(64) NOT NULL,
	timestamp DATETIME NOT NULL,
	cpu_usage DOUBLE NULL,
	memory_usage DOUBLE NULL,
	memory_available_gb DOUBLE NULL,
	disk_free_gb DOUBLE NULL,
	disk_usage_percent DOUBLE NULL,
	process_memory_mb DOUBLE NULL,
	uptime_hours DOUBLE NULL,
	network_connected TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	INDEX idx_stats_store_time (store_id, timestamp)
)`,
		// alert_type carries startup and recovery as first-class values
		// instead of coercing them to 'test', so the alert log keeps the
		// real kind.
		`CREATE TABLE IF NOT EXISTS alerts (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	store_id VARCHAR(64) NOT NULL,
	alert_type ENUM('startup','recovery','offline','system_warning','camera_failure','test') NOT NULL,
	message TEXT NOT NULL,
	severity ENUM('low','medium','high','critical') NOT NULL DEFAULT 'low',
	resolved TINYINT(1) NOT NULL DEFAULT 0,
	resolved_at DATETIME NULL,
	timestamp DATETIME NOT NULL,
	INDEX idx_alerts_store_time (store_id, timestamp)
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// SaveHeartbeat upserts the store row and appends one heartbeat_history and
// one system_stats row, in a single transaction.
func (s *Store) SaveHeartbeat(ctx context.Context, hb monitor.Heartbeat, receivedAt time.Time, status monitor.StoreStatus) error {
	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin heartbeat tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := receivedAt.UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO stores (store_id, store_name, last_heartbeat, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	store_name = VALUES(store_name),
	last_heartbeat = VALUES(last_heartbeat),
	status = VALUES(status),
	updated_at = VALUES(updated_at)`,
		hb.StoreID, hb.StoreName, now, status.String(), now, now); err != nil {
		return fmt.Errorf("upsert store %s: %w", hb.StoreID, err)
	}

	st := hb.SystemStats
	if _, err := tx.ExecContext(ctx, `
INSERT INTO heartbeat_history
	(store_id, timestamp, cpu_usage, memory_usage, disk_free_gb, active_cameras, total_cameras, network_connected, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hb.StoreID, hb.Timestamp.UTC(), st.CPUUsage, st.MemoryUsage, st.DiskFreeGB,
		hb.CameraStatus.ActiveCameras, hb.CameraStatus.TotalCameras,
		st.NetworkConnected, payload, now); err != nil {
		return fmt.Errorf("insert heartbeat history for %s: %w", hb.StoreID, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO system_stats
	(store_id, timestamp, cpu_usage, memory_usage, memory_available_gb, disk_free_gb, disk_usage_percent, process_memory_mb, uptime_hours, network_connected, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hb.StoreID, hb.Timestamp.UTC(), st.CPUUsage, st.MemoryUsage, st.MemoryAvailGB,
		st.DiskFreeGB, st.DiskUsagePercent, st.ProcessMemoryMB, st.UptimeHours,
		st.NetworkConnected, now); err != nil {
		return fmt.Errorf("insert system stats for %s: %w", hb.StoreID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit heartbeat tx for %s: %w", hb.StoreID, err)
	}
	return nil
}

// UpdateStoreStatus mirrors a sweeper transition to the stores row.
func (s *Store) UpdateStoreStatus(ctx context.Context, storeID string, status monitor.StoreStatus, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
UPDATE stores SET status = ?, last_alert_sent = ?, updated_at = ? WHERE store_id = ?`,
		status.String(), at.UTC(), at.UTC(), storeID); err != nil {
		return fmt.Errorf("update store %s status: %w", storeID, err)
	}
	return nil
}

// ListStores returns every persisted store row, for registry hydration.
func (s *Store) ListStores(ctx context.Context) ([]monitor.StoreRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT store_id, store_name, last_heartbeat, status, created_at FROM stores ORDER BY store_id`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var out []monitor.StoreRow
	for rows.Next() {
		var r monitor.StoreRow
		var last sql.NullTime
		var status string
		if err := rows.Scan(&r.StoreID, &r.StoreName, &last, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		if last.Valid {
			r.LastHeartbeat = last.Time
		}
		r.Status = monitor.ParseStoreStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store rows: %w", err)
	}
	return out, nil
}

// InsertAlert appends an alert row and returns its id.
func (s *Store) InsertAlert(ctx context.Context, a monitor.Alert) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO alerts (store_id, alert_type, message, severity, resolved, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`,
		a.StoreID, string(a.Kind), a.Message, string(a.Severity), a.Resolved, a.Timestamp.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert alert for %s: %w", a.StoreID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("alert insert id: %w", err)
	}
	return id, nil
}

// RecentAlerts returns the newest alerts across all stores, joined with the
// store display name.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]monitor.Alert, error) {
	return s.queryAlerts(ctx, `
SELECT a.id, a.store_id, COALESCE(s.store_name, ''), a.alert_type, a.message, a.severity, a.resolved, a.resolved_at, a.timestamp
FROM alerts a LEFT JOIN stores s ON s.store_id = a.store_id
ORDER BY a.timestamp DESC LIMIT ?`, clampLimit(limit))
}

// StoreAlerts returns the newest alerts for one store.
func (s *Store) StoreAlerts(ctx context.Context, storeID string, limit int) ([]monitor.Alert, error) {
	return s.queryAlerts(ctx, `
SELECT a.id, a.store_id, COALESCE(s.store_name, ''), a.alert_type, a.message, a.severity, a.resolved, a.resolved_at, a.timestamp
FROM alerts a LEFT JOIN stores s ON s.store_id = a.store_id
WHERE a.store_id = ?
ORDER BY a.timestamp DESC LIMIT ?`, storeID, clampLimit(limit))
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]monitor.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []monitor.Alert
	for rows.Next() {
		var a monitor.Alert
		var kind, severity string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.StoreID, &a.StoreName, &kind, &a.Message, &severity, &a.Resolved, &resolvedAt, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.Kind = monitor.AlertKind(kind)
		a.Severity = monitor.Severity(severity)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
