package watchlist

import (
	"context"

	"github.com/lysyi3m/watchlist/app/catalog"
	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/ratelimit"
)

type CatalogClient interface {
	Search(ctx context.Context, search string, mediaType media.MediaType) ([]media.SearchResult, error)
	FetchDetails(ctx context.Context, id int64) (*catalog.Media, error)
	FetchTotals(ctx context.Context, id int64, hint media.MediaType) (media.Totals, error)
}

type RateLimiter interface {
	Check(ctx context.Context, identifier string) (ratelimit.Decision, error)
	Record(ctx context.Context, identifier string)
}

var (
	_ CatalogClient = (*catalog.Client)(nil)
	_ RateLimiter   = (*ratelimit.Limiter)(nil)
)

// ItemStore is the persistence the service needs.
type ItemStore = database.ItemRepository
