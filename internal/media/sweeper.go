package media

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired artifacts. It is the eager half
// of expiry; Store.Stat is the lazy half. Both derive age from the same
// TTL, so an unswept artifact is still reported gone once stale.
type Sweeper struct {
	store    *Store
	interval time.Duration
}

// NewSweeper creates a sweeper over the store.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	slog.Info("expiry sweeper started", "interval", w.interval, "ttl", w.store.TTL())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep removes expired artifacts once and returns how many went.
func (w *Sweeper) Sweep() int {
	removed, err := w.store.RemoveExpired()
	if err != nil {
		slog.Error("sweep failed", "err", err)
		return 0
	}
	if removed > 0 {
		slog.Info("removed expired media", "count", removed)
	}
	return removed
}
