package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/watchlist/app/catalog"
	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/ratelimit"
	"github.com/lysyi3m/watchlist/app/watchlist"
)

// TaskSchedulerInterface is what main needs from the scheduler.
//
//	scheduler := NewScheduler(deps, opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewImportMediaTask(id, importer))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// MediaImporter adds catalog media without the per-client cooldown.
type MediaImporter interface {
	Import(ctx context.Context, id int64) (*media.Record, error)
}

type TotalsFetcher interface {
	FetchTotals(ctx context.Context, id int64, hint media.MediaType) (media.Totals, error)
}

type TotalsStore interface {
	GetItemsMissingTotals(ctx context.Context, limit int) ([]media.Record, error)
	FillMissingTotals(ctx context.Context, id int64, totalEpisodes, totalChapters *int) (bool, error)
	MarkTotalsChecked(ctx context.Context, id int64, at time.Time) error
}

type RateLimitPruner interface {
	Prune(ctx context.Context) (int64, error)
}

var (
	_ MediaImporter   = (*watchlist.Service)(nil)
	_ TotalsFetcher   = (*catalog.Client)(nil)
	_ TotalsStore     = (database.ItemRepository)(nil)
	_ RateLimitPruner = (*ratelimit.Limiter)(nil)
)
