package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultTotalsBatchSize = 50

// RefreshTotalsTask fills episode or chapter totals that were unknown when an
// item was added, typically for series still airing at the time. Every lookup
// is recorded on the item so that later runs move on to other items.
type RefreshTotalsTask struct {
	Task
	batchSize int
	fetcher   TotalsFetcher
	store     TotalsStore
}

func NewRefreshTotalsTask(fetcher TotalsFetcher, store TotalsStore, batchSize int) *RefreshTotalsTask {
	if batchSize <= 0 {
		batchSize = DefaultTotalsBatchSize
	}
	return &RefreshTotalsTask{
		Task:      NewTask(TaskTypeRefreshTotals, "watchlist_items"),
		batchSize: batchSize,
		fetcher:   fetcher,
		store:     store,
	}
}

func (t *RefreshTotalsTask) Execute(ctx context.Context) error {
	items, err := t.store.GetItemsMissingTotals(ctx, t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list items missing totals: %w", err)
	}
	if len(items) == 0 {
		slog.Debug("No items missing totals")
		return nil
	}

	updated, failed := 0, 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		totals, err := t.fetcher.FetchTotals(ctx, item.ID, item.Type)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if markErr := t.store.MarkTotalsChecked(ctx, item.ID, time.Now()); markErr != nil {
			slog.Warn("Failed to mark totals checked", "id", item.ID, "error", markErr)
		}
		if err != nil {
			slog.Warn("Failed to fetch totals", "id", item.ID, "error", err)
			failed++
			continue
		}
		if totals.TotalEpisodes == nil && totals.TotalChapters == nil {
			continue
		}

		changed, err := t.store.FillMissingTotals(ctx, item.ID, totals.TotalEpisodes, totals.TotalChapters)
		if err != nil {
			slog.Warn("Failed to store totals", "id", item.ID, "error", err)
			failed++
			continue
		}
		if changed {
			updated++
		}
	}

	slog.Info("Totals refresh completed", "checked", len(items), "updated", updated, "failed", failed, "duration", t.GetDuration().String())

	if failed > 0 {
		return fmt.Errorf("%d of %d totals lookups failed", failed, len(items))
	}
	return nil
}
