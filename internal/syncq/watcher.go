package syncq

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pinger probes server reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls connectivity and triggers a replay pass on every
// offline-to-online transition, plus once at startup when already online.
// Replays retry no sooner than the next transition; there is no extra
// backoff on top of the per-action retry budget.
type Watcher struct {
	pinger   Pinger
	queue    *Queue
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a connectivity watcher polling at interval
func NewWatcher(pinger Pinger, queue *Queue, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		pinger:   pinger,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	online := w.check(ctx)
	if online {
		w.process(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := w.check(ctx)
			if now && !online {
				w.logger.Info("connectivity restored, replaying pending actions")
				w.process(ctx)
			}
			online = now
		}
	}
}

func (w *Watcher) check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return w.pinger.Ping(pctx) == nil
}

func (w *Watcher) process(ctx context.Context) {
	if err := w.queue.ProcessPendingActions(ctx); err != nil {
		w.logger.Warn("pending action replay failed", zap.Error(err))
	}
}
