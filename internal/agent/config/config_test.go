package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvRequired(t *testing.T) {
	t.Setenv("STORE_ID", "")
	t.Setenv("MONITORING_SERVER_URL", "")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without STORE_ID")
	}

	t.Setenv("STORE_ID", "s1")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without MONITORING_SERVER_URL")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_ID", "s1")
	t.Setenv("MONITORING_SERVER_URL", "http://monitor.internal:8080")
	t.Setenv("STORE_NAME", "")
	t.Setenv("HEARTBEAT_INTERVAL", "")
	t.Setenv("HEARTBEAT_BUFFER_PATH", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.StoreName != "s1" {
		t.Fatalf("StoreName = %q, want store id fallback", cfg.StoreName)
	}
	if cfg.Interval != 60*time.Second {
		t.Fatalf("Interval = %v", cfg.Interval)
	}
	if !strings.Contains(cfg.BufferPath, "storewatch") || !strings.Contains(cfg.BufferPath, "s1") {
		t.Fatalf("BufferPath = %q", cfg.BufferPath)
	}
}

func TestFromEnvIntervalMilliseconds(t *testing.T) {
	t.Setenv("STORE_ID", "s1")
	t.Setenv("MONITORING_SERVER_URL", "http://monitor.internal:8080")
	t.Setenv("HEARTBEAT_INTERVAL", "30000")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("Interval = %v", cfg.Interval)
	}
}

func TestFromEnvBadIntervalFallsBack(t *testing.T) {
	t.Setenv("STORE_ID", "s1")
	t.Setenv("MONITORING_SERVER_URL", "http://monitor.internal:8080")
	t.Setenv("HEARTBEAT_INTERVAL", "-5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Interval != 60*time.Second {
		t.Fatalf("Interval = %v", cfg.Interval)
	}
}
