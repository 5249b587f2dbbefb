// Package daemon wires the monitoring server: persistence, registry,
// dispatcher, sweeper, recipients, and the HTTP boundary.
package daemon

import (
	"context"
	"log/slog"

	"storewatch/internal/adapter/mysql"
	"storewatch/internal/alert"
	"storewatch/internal/config"
	"storewatch/internal/monitor"
	"storewatch/internal/notify"
	"storewatch/internal/recipients"
	"storewatch/internal/registry"
	"storewatch/internal/server"
	"storewatch/internal/sweeper"
)

// Run starts the daemon and blocks until ctx is canceled. Shutdown order:
// HTTP server drains, the sweeper stops, the dispatcher flushes its queue,
// the pool closes.
func Run(ctx context.Context, cfg config.Server) error {
	store, err := mysql.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	book, err := recipients.Load(cfg.EmailConfigPath)
	if err != nil {
		return err
	}

	var notifier alert.Notifier
	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		notifier = mailer
	} else {
		slog.Warn("SMTP not configured, alerts will be persisted but not delivered")
	}

	reg := registry.New()
	clock := monitor.RealClock{}

	dispatcher := alert.NewDispatcher(alert.Config{
		Store:      store,
		Recipients: book,
		Notifier:   notifier,
		Cooldowns:  alert.NewCooldowns(cfg.OfflineCooldown),
		Clock:      clock,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Wait()

	sw := &sweeper.Sweeper{
		Registry:   reg,
		Store:      store,
		Dispatcher: dispatcher,
		Interval:   cfg.SweepInterval,
		Threshold:  cfg.AlertThreshold,
		Clock:      clock,
	}
	go func() {
		if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sweeper stopped", "err", err)
		}
	}()

	if cfg.EmailConfigPath != "" {
		go func() {
			if err := book.Watch(ctx); err != nil {
				slog.Warn("recipients watcher stopped", "err", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Registry:   reg,
		Store:      store,
		Dispatcher: dispatcher,
		Sweeper:    sw,
		Recipients: book,
		Clock:      clock,
		CORSOrigin: cfg.FrontendURL,
	})
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
