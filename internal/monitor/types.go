// Package monitor holds the shared types of the store monitoring domain:
// the heartbeat wire record, store liveness status, alert kinds, and the
// transition events produced by the liveness registry.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"storewatch/internal/check"
)

// StoreStatus is the liveness phase of a store as tracked by the registry.
type StoreStatus uint8

const (
	StatusUnknown StoreStatus = iota + 1
	StatusOnline
	StatusOffline
)

func (s StoreStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown_status"
	}
}

// ParseStoreStatus maps a persisted status string back to a StoreStatus.
// Unrecognized values come back as StatusUnknown.
func ParseStoreStatus(s string) StoreStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online":
		return StatusOnline
	case "offline":
		return StatusOffline
	default:
		return StatusUnknown
	}
}

// Transition validates and applies a status change. Recovery (offline to
// online) requires a heartbeat, so the sweeper must never request it; the
// registry is the only caller that may.
func (s StoreStatus) Transition(to StoreStatus) StoreStatus {
	ok := false
	switch s {
	case StatusUnknown:
		ok = to == StatusOnline || to == StatusOffline
	case StatusOnline:
		ok = to == StatusOffline
	case StatusOffline:
		ok = to == StatusOnline
	}
	check.Assertf(ok, "store status transition: %s -> %s", s, to)
	if !ok {
		return s
	}
	return to
}

// AlertKind classifies an alert, both in memory and in the alerts table.
type AlertKind string

const (
	AlertStartup       AlertKind = "startup"
	AlertRecovery      AlertKind = "recovery"
	AlertOffline       AlertKind = "offline"
	AlertSystemWarning AlertKind = "system_warning"
	AlertCameraFailure AlertKind = "camera_failure"
	AlertTest          AlertKind = "test"
)

// Severity grades an alert for recipients and for the alert log.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFor returns the severity used for liveness alerts of the given kind.
func SeverityFor(kind AlertKind) Severity {
	switch kind {
	case AlertOffline:
		return SeverityCritical
	case AlertRecovery:
		return SeverityMedium
	case AlertCameraFailure:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// Heartbeat is the wire record emitted by a store agent. Nullable metrics are
// pointers: a nil field means the collector could not read it.
type Heartbeat struct {
	StoreID    string    `json:"store_id"`
	StoreName  string    `json:"store_name"`
	Timestamp  time.Time `json:"timestamp"`
	IsStartup  bool      `json:"is_startup"`

	SystemStats      SystemStats      `json:"system_stats"`
	CameraStatus     CameraStatus     `json:"camera_status"`
	ApplicationStats ApplicationStats `json:"application_stats"`
	LocationInfo     LocationInfo     `json:"location_info"`
	NetworkInfo      NetworkInfo      `json:"network_info"`
}

// Validate rejects heartbeats the ingestion endpoint must not accept.
func (h Heartbeat) Validate() error {
	if strings.TrimSpace(h.StoreID) == "" {
		return fmt.Errorf("heartbeat missing store_id")
	}
	if h.CameraStatus.ActiveCameras < 0 || h.CameraStatus.ActiveCameras > h.CameraStatus.TotalCameras {
		return fmt.Errorf("heartbeat camera counts invalid: %d active of %d total",
			h.CameraStatus.ActiveCameras, h.CameraStatus.TotalCameras)
	}
	return nil
}

// SystemStats carries OS-level health sampled by the agent collector.
type SystemStats struct {
	CPUUsage         *float64 `json:"cpu_usage"`
	MemoryUsage      *float64 `json:"memory_usage"`
	MemoryAvailGB    *float64 `json:"memory_available_gb"`
	DiskFreeGB       *float64 `json:"disk_free_gb"`
	DiskUsagePercent *float64 `json:"disk_usage_percent"`
	ProcessMemoryMB  *float64 `json:"process_memory_mb"`
	UptimeHours      *float64 `json:"uptime_hours"`
	NetworkConnected bool     `json:"network_connected"`
	NetworkSpeedMbps *float64 `json:"network_speed_mbps"`
}

// CameraInfo is the per-camera slice of CameraStatus.
type CameraInfo struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

type CameraStatus struct {
	TotalCameras  int          `json:"total_cameras"`
	ActiveCameras int          `json:"active_cameras"`
	Cameras       []CameraInfo `json:"cameras,omitempty"`
}

type ApplicationStats struct {
	LastDetectionTime        *time.Time `json:"last_detection_time"`
	TotalDetectionsToday     int        `json:"total_detections_today"`
	AppVersion               string     `json:"app_version"`
	RuntimeVersion           string     `json:"runtime_version"`
	ConsecutiveFailures      int        `json:"consecutive_failures"`
	LastSuccessfulConnection *time.Time `json:"last_successful_connection"`
}

type LocationInfo struct {
	Timezone  string `json:"timezone"`
	LocalTime string `json:"local_time"`
}

// SpeedSample is one network throughput measurement.
type SpeedSample struct {
	Timestamp time.Time `json:"timestamp"`
	Mbps      float64   `json:"mbps"`
}

// NetworkInfo reports the agent's measured link speed. History holds at most
// the five most recent successful samples.
type NetworkInfo struct {
	CurrentSpeedMbps *float64      `json:"current_speed_mbps"`
	SpeedHistory     []SpeedSample `json:"speed_history,omitempty"`
}

// Alert is the persisted alert record.
type Alert struct {
	ID         int64      `json:"id"`
	StoreID    string     `json:"store_id"`
	StoreName  string     `json:"store_name,omitempty"`
	Kind       AlertKind  `json:"alert_type"`
	Message    string     `json:"message"`
	Severity   Severity   `json:"severity"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// StoreSnapshot is a point-in-time copy of one registry record.
type StoreSnapshot struct {
	StoreID       string      `json:"store_id"`
	StoreName     string      `json:"store_name"`
	Status        StoreStatus `json:"-"`
	StatusText    string      `json:"status"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	FirstSeen     time.Time   `json:"first_seen"`
	Latest        *Heartbeat  `json:"latest_metrics,omitempty"`
}

// StoreRow is a persisted stores-table row, used to hydrate the registry
// after a daemon restart. Hydrated records always enter as unknown.
type StoreRow struct {
	StoreID       string
	StoreName     string
	Status        StoreStatus
	LastHeartbeat time.Time
	CreatedAt     time.Time
}

// Transition is the event value the registry and sweeper hand to the alert
// dispatcher. It carries everything policy needs so the dispatcher never
// reaches back into registry state.
type Transition struct {
	Kind  AlertKind
	Store StoreSnapshot
	From  StoreStatus
	To    StoreStatus
	// Repeat marks an offline re-notification for a store that was already
	// offline. Repeats are subject to the offline cooldown; the first
	// offline transition is not.
	Repeat bool
	At     time.Time
}
