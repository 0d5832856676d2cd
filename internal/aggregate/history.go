package aggregate

import (
	"context"
	"log/slog"

	"rookie/internal/store"
)

// RecordHistory appends the prices of every published snapshot to h until
// ctx is done. Write failures are logged and do not stop recording.
func RecordHistory(ctx context.Context, o *Orchestrator, h store.PriceHistory, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "history")

	id, ch := o.Subscribe(4)
	defer o.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			assets := snap.Merged()
			if err := h.AppendPrices(ctx, snap.UpdatedAt, assets); err != nil {
				log.Warn("recording price history failed", "cycle", snap.Cycle, "error", err)
				continue
			}
			log.Debug("price history recorded", "cycle", snap.Cycle, "assets", len(assets))
		}
	}
}
