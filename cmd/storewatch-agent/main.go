package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storewatch/internal/agent/buffer"
	"storewatch/internal/agent/clockskew"
	agentconfig "storewatch/internal/agent/config"
	"storewatch/internal/agent/collector"
	"storewatch/internal/agent/shipper"
	"storewatch/internal/logging"
	"storewatch/internal/monitor"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "storewatch-agent",
		Short: "In-store heartbeat agent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := agentconfig.FromEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func run(ctx context.Context, cfg agentconfig.Agent) error {
	clock := monitor.RealClock{}

	buf := openBuffer(cfg.BufferPath, clock)
	speed := collector.NewSpeedProber(nil, clock)
	coll := collector.New(collector.Config{
		StoreID:    cfg.StoreID,
		StoreName:  cfg.StoreName,
		AppVersion: cfg.AppVersion,
		Counters:   &collector.AppCounters{},
		Speed:      speed,
		Clock:      clock,
	})

	sh := &shipper.Shipper{
		Collector: coll,
		Buffer:    buf,
		Client:    shipper.NewClient(cfg.ServerURL),
		Interval:  cfg.Interval,
		Skew:      clockskew.New(""),
		Clock:     clock,
	}

	slog.Info("agent starting", "store", cfg.StoreID, "server", cfg.ServerURL, "interval", cfg.Interval)
	return sh.Run(ctx)
}

// openBuffer prefers the durable sqlite queue and falls back to the bounded
// in-memory ring when the database cannot be opened.
func openBuffer(path string, clock monitor.Clock) buffer.Buffer {
	b, err := buffer.OpenSQLite(path, clock)
	if err != nil {
		slog.Warn("durable buffer unavailable, using in-memory fallback (heartbeats may be lost)",
			"path", path, "err", err)
		return buffer.NewMemory(clock)
	}
	return b
}
