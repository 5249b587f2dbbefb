// Package config reads the daemon's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"storewatch/internal/adapter/mysql"
	"storewatch/internal/notify"
)

// Server is the daemon configuration.
type Server struct {
	ListenAddr string
	DB         mysql.Config
	SMTP       notify.SMTPConfig

	// AlertThreshold is T: silence longer than T (plus the sweeper's grace
	// buffer) marks a store offline.
	AlertThreshold  time.Duration
	OfflineCooldown time.Duration
	SweepInterval   time.Duration

	EmailConfigPath string
	FrontendURL     string
	LogLevel        string
}

// FromEnv builds the server configuration. Every value has a default except
// the database name, which is required.
func FromEnv() (Server, error) {
	cfg := Server{
		ListenAddr: envStr("LISTEN_ADDR", ":8080"),
		DB: mysql.Config{
			Host:     envStr("DB_HOST", "127.0.0.1"),
			Port:     envInt("DB_PORT", 3306),
			User:     envStr("DB_USER", "storewatch"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		AlertThreshold:  envMinutes("ALERT_THRESHOLD_MINUTES", 5),
		OfflineCooldown: envMinutes("OFFLINE_ALERT_COOLDOWN_MINUTES", 5),
		SweepInterval:   envMinutes("HEALTH_CHECK_INTERVAL", 2),
		EmailConfigPath: os.Getenv("EMAIL_CONFIG_PATH"),
		FrontendURL:     os.Getenv("FRONTEND_URL"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}
	if cfg.DB.Name == "" {
		return Server{}, fmt.Errorf("DB_NAME is required")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}
