// Package relay assembles the components into the running application.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvoronov/chanrelay/internal/admin"
	"github.com/nvoronov/chanrelay/internal/config"
	"github.com/nvoronov/chanrelay/internal/dedupe"
	"github.com/nvoronov/chanrelay/internal/dispatch"
	"github.com/nvoronov/chanrelay/internal/history"
	"github.com/nvoronov/chanrelay/internal/models"
	"github.com/nvoronov/chanrelay/internal/store"
	"github.com/nvoronov/chanrelay/internal/telegram"
	"github.com/nvoronov/chanrelay/internal/watch"
)

type App struct {
	cfg        *config.Config
	settings   *store.Store
	history    *history.Log
	client     *telegram.Client
	registry   *watch.Registry
	dispatcher *dispatch.Dispatcher
	seen       *dedupe.Cache
}

// New builds the full component graph. Transport or credential failures here
// are the only fatal failure class.
func New(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	settings, err := store.Open(filepath.Join(cfg.DataDir, "settings.json"))
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, err
	}
	client, err := telegram.New(cfg.Token, cfg.PollTimeout)
	if err != nil {
		hist.Close()
		return nil, err
	}

	registry := watch.New(client)
	dispatcher := dispatch.New(client, settings)
	manager := admin.New(settings, hist, registry, client, client, cfg.AdminIDs)
	seen := dedupe.New(24 * time.Hour)

	app := &App{
		cfg:        cfg,
		settings:   settings,
		history:    hist,
		client:     client,
		registry:   registry,
		dispatcher: dispatcher,
		seen:       seen,
	}
	client.Bind(manager, app.onPost)
	return app, nil
}

// onPost sits between the subscription filter and the dispatcher to drop
// redelivered updates.
func (a *App) onPost(ctx context.Context, post models.Post) {
	if a.seen.Seen(post.SourceID, post.MessageID) {
		slog.Debug("duplicate post dropped", "source", post.SourceTitle, "message_id", post.MessageID)
		return
	}
	a.dispatcher.OnPost(ctx, post)
}

// Run resumes watching the persisted watch list, announces readiness to the
// admins and serves updates until ctx is cancelled, then drains.
func (a *App) Run(ctx context.Context) error {
	if channels := a.settings.Snapshot().Channels; len(channels) > 0 {
		if err := a.registry.Resynchronize(channels); err != nil {
			slog.Warn("initial resynchronization failed", "err", err)
		} else {
			slog.Info("watching channels", "count", len(channels))
		}
	}

	for _, adminID := range a.cfg.AdminIDs {
		if err := a.client.Reply(ctx, adminID, "Bot started and ready."); err != nil {
			slog.Warn("startup notice failed", "admin", adminID, "err", err)
		}
	}

	slog.Info("relay running", "bot", a.client.Username())
	a.client.Run(ctx)

	// in-flight deliveries have completed by the time Run returns; release
	// the remaining handles
	a.registry.Close()
	a.seen.Close()
	if err := a.history.Close(); err != nil {
		slog.Warn("history close failed", "err", err)
	}
	slog.Info("relay stopped")
	return nil
}
