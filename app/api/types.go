package api

import (
	"context"
	"net/http"

	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/watchlist"
)

type WatchlistService interface {
	Add(ctx context.Context, id int64, identifier string) (*media.Record, error)
	Search(ctx context.Context, search, mediaType string) ([]media.SearchResult, error)
	Totals(ctx context.Context, id int64, mediaType string) (media.MediaType, media.Totals, error)
	List(ctx context.Context, mediaType, genre, sort string) ([]media.Record, error)
	Delete(ctx context.Context, id int64) error
	UpdateProgress(ctx context.Context, id int64, progress int) (watchlist.ProgressResult, error)
	UpdateRating(ctx context.Context, id int64, rating *int) error
	RandomPick(ctx context.Context, mediaType string) (*media.Record, error)
}

type ItemCounter interface {
	GetItemCount(ctx context.Context) (int, error)
}

var (
	_ WatchlistService = (*watchlist.Service)(nil)
	_ ItemCounter      = (database.ItemRepository)(nil)
)

type Handler struct {
	service WatchlistService
	items   ItemCounter
	events  http.Handler
	version string
}

type addRequest struct {
	ID int64 `json:"id" binding:"required,gt=0"`
}

type searchRequest struct {
	Search string `json:"search" binding:"required"`
	Type   string `json:"type" binding:"required,oneof=ANIME MANGA"`
}

type totalsRequest struct {
	ID   int64  `json:"id" binding:"required,gt=0"`
	Type string `json:"type"`
}

type deleteRequest struct {
	ID int64 `json:"id" binding:"required,gt=0"`
}

type progressRequest struct {
	ID       int64 `json:"id" binding:"required,gt=0"`
	Progress *int  `json:"progress" binding:"required,min=0"`
}

type ratingRequest struct {
	ID         int64 `json:"id" binding:"required,gt=0"`
	UserRating *int  `json:"user_rating" binding:"omitempty,min=0,max=100"`
}
