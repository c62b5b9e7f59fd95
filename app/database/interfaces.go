package database

import (
	"context"
	"time"

	"github.com/lysyi3m/watchlist/app/media"
)

type ItemRepository interface {
	GetItem(ctx context.Context, id int64) (*media.Record, error)
	ListItems(ctx context.Context, filter ListFilter, sort SortKey) ([]media.Record, error)
	ListItemIDs(ctx context.Context, filter ListFilter) ([]int64, error)
	GetItemsMissingTotals(ctx context.Context, limit int) ([]media.Record, error)
	GetItemCount(ctx context.Context) (int, error)

	UpsertItem(ctx context.Context, record media.Record) error
	UpdateProgress(ctx context.Context, id int64, progress int) error
	UpdateUserRating(ctx context.Context, id int64, rating *int) error
	FillMissingTotals(ctx context.Context, id int64, totalEpisodes, totalChapters *int) (bool, error)
	MarkTotalsChecked(ctx context.Context, id int64, at time.Time) error
	DeleteItem(ctx context.Context, id int64) (bool, error)
}

type RateLimitRepository interface {
	GetLastAdded(ctx context.Context, identifier string) (*time.Time, error)
	SetLastAdded(ctx context.Context, identifier string, at time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChangeNotifier receives an event after every successful item mutation.
type ChangeNotifier interface {
	Notify(change Change)
}
