package alert

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Dispatcher fans out alert events to matching webhook configurations.
// A nil *Dispatcher is valid and drops everything.
type Dispatcher struct {
	configs []AlertConfig
	sender  *Sender
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty.
func NewDispatcher(configs []AlertConfig, sender *Sender, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if sender == nil {
		sender = NewSender()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{configs: configs, sender: sender, logger: logger}
}

// Dispatch sends the event to every webhook subscribed to event.Type.
// Delivery runs in the background; use Wait to flush before exit.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	if d == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	for _, cfg := range d.configs {
		if !slices.Contains(cfg.Events, event.Type) {
			continue
		}
		d.wg.Add(1)
		go func(cfg AlertConfig) {
			defer d.wg.Done()
			if err := d.sender.Send(context.Background(), cfg, event); err != nil {
				d.logger.Warn("alert delivery failed", "url", cfg.URL, "type", event.Type, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
