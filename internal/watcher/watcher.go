package watcher

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the reconciliation period used when none is set.
const DefaultInterval = 5 * time.Minute

// Reconciler refreshes the signed-in state from the account backend.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Watcher periodically reconciles the session with the account backend.
type Watcher struct {
	gate Reconciler
	log  *slog.Logger
	tick time.Duration
}

// New creates a Watcher with the default interval.
func New(gate Reconciler, log *slog.Logger) *Watcher {
	return &Watcher{
		gate: gate,
		log:  log,
		tick: DefaultInterval,
	}
}

// SetTickInterval overrides the default check interval. Non-positive
// values are ignored.
func (w *Watcher) SetTickInterval(d time.Duration) {
	if d > 0 {
		w.tick = d
	}
}

// Run starts the watcher loop, blocking until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.check(ctx)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	start := time.Now()
	if err := w.gate.Reconcile(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Error("reconcile session", "error", err)
		return
	}
	w.log.Debug("session reconciled", "took", time.Since(start))
}
