// Package config reads the agent's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Agent is the in-store client configuration.
type Agent struct {
	StoreID   string
	StoreName string
	ServerURL string

	// Interval between heartbeats. HEARTBEAT_INTERVAL is milliseconds for
	// compatibility with existing deployments.
	Interval time.Duration

	// BufferPath is the durable queue location. Empty selects the default
	// under the user cache directory.
	BufferPath string

	AppVersion string
	LogLevel   string
}

// FromEnv builds the agent configuration. STORE_ID and
// MONITORING_SERVER_URL are required.
func FromEnv() (Agent, error) {
	cfg := Agent{
		StoreID:    os.Getenv("STORE_ID"),
		StoreName:  os.Getenv("STORE_NAME"),
		ServerURL:  os.Getenv("MONITORING_SERVER_URL"),
		Interval:   envMillis("HEARTBEAT_INTERVAL", 60000),
		BufferPath: os.Getenv("HEARTBEAT_BUFFER_PATH"),
		AppVersion: os.Getenv("APP_VERSION"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
	}
	if cfg.StoreID == "" {
		return Agent{}, fmt.Errorf("STORE_ID is required")
	}
	if cfg.ServerURL == "" {
		return Agent{}, fmt.Errorf("MONITORING_SERVER_URL is required")
	}
	if cfg.StoreName == "" {
		cfg.StoreName = cfg.StoreID
	}
	if cfg.BufferPath == "" {
		cfg.BufferPath = defaultBufferPath(cfg.StoreID)
	}
	return cfg, nil
}

func defaultBufferPath(storeID string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "storewatch", storeID, "heartbeat_buffer.db")
}

func envMillis(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}
