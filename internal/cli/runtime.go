package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/pmguard/internal/alert"
	"github.com/ppiankov/pmguard/internal/audit"
	"github.com/ppiankov/pmguard/internal/config"
	"github.com/ppiankov/pmguard/internal/cycle"
	"github.com/ppiankov/pmguard/internal/store"
)

// runtime holds the resources a state-changing command needs.
type runtime struct {
	cfg     *config.Config
	hash    string
	store   store.Store
	journal *audit.Log
	alerts  *alert.Dispatcher
}

func openRuntime(cfg *config.Config, hash string) (*runtime, error) {
	s, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	journal, err := audit.Open(cfg.AuditLog)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		hash:    hash,
		store:   s,
		journal: journal,
		alerts:  alert.NewDispatcher(cfg.Alerts, alert.NewSender(), slog.Default()),
	}, nil
}

func (r *runtime) startCycle(ctx context.Context) (*cycle.Cycle, error) {
	return cycle.Start(ctx, cycle.Options{
		Scope:            r.cfg.AgentScope,
		Limits:           r.cfg.Budget,
		Retry:            r.cfg.Retry,
		Thresholds:       r.cfg.Confidence,
		HoldQueueMinutes: r.cfg.HoldQueueMinutes,
		ConfigHash:       r.hash,
		Store:            r.store,
		Journal:          r.journal,
		Alerts:           r.alerts,
		Logger:           slog.Default(),
	})
}

// Close flushes pending alerts and releases the store and journal.
func (r *runtime) Close(ctx context.Context) error {
	var firstErr error
	if err := r.alerts.Wait(ctx); err != nil {
		slog.Warn("alert deliveries still pending at exit", "error", err)
	}
	if err := r.journal.Close(); err != nil {
		firstErr = fmt.Errorf("close audit log: %w", err)
	}
	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	return firstErr
}
