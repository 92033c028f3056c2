package bot

import (
	"context"
	"time"
)

// RunSweeper expires stale candidates and evicts finalized ones every
// interval until ctx is cancelled.
func (b *Bot) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Bot) sweep() {
	now := b.now()

	expired := b.tracker.SweepExpired(now)
	for _, c := range expired {
		if err := b.refreshPrompt(c); err != nil {
			b.logger.Warn("failed to update expired prompt", "candidate_id", c.ID, "error", err)
		}
	}

	evicted := b.tracker.Evict(now)
	if len(expired) > 0 || evicted > 0 {
		b.logger.Info("sweep finished",
			"expired", len(expired),
			"evicted", evicted,
			"tracked", b.tracker.Len(),
		)
	}
}
