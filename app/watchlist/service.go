package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lysyi3m/watchlist/app/catalog"
	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/media"
)

const (
	AllFilter         = "ALL"
	UnknownIdentifier = "unknown"
)

// Service implements the watchlist operations on top of the catalog, the
// store and the add cooldown. It holds no per-request state.
type Service struct {
	catalog CatalogClient
	store   ItemStore
	limiter RateLimiter
	now     func() time.Time
	intn    func(n int) int
}

func NewService(catalogClient CatalogClient, store ItemStore, limiter RateLimiter) *Service {
	return &Service{
		catalog: catalogClient,
		store:   store,
		limiter: limiter,
		now:     time.Now,
		intn:    rand.IntN,
	}
}

// ProgressResult carries the updated record, or only the stored progress when
// the record could not be read back.
type ProgressResult struct {
	Item     *media.Record
	Progress int
}

// Add fetches the media from the catalog and stores it, subject to the
// identifier's add cooldown.
func (s *Service) Add(ctx context.Context, id int64, identifier string) (*media.Record, error) {
	if id <= 0 {
		return nil, badRequest("Missing or invalid id")
	}
	if identifier == "" {
		identifier = UnknownIdentifier
	}

	decision, err := s.limiter.Check(ctx, identifier)
	if err != nil {
		return nil, storeFailure(err)
	}
	if !decision.Allowed {
		slog.Info("Add rejected by cooldown", "identifier", identifier, "retry_after", decision.RetryAfter)
		return nil, rateLimited(decision.RetryAfter)
	}

	record, err := s.addFromCatalog(ctx, id)
	if err != nil {
		return nil, err
	}

	s.limiter.Record(ctx, identifier)
	return record, nil
}

// Import adds media without consulting the cooldown. It is used for trusted
// bulk loads.
func (s *Service) Import(ctx context.Context, id int64) (*media.Record, error) {
	if id <= 0 {
		return nil, badRequest("Missing or invalid id")
	}
	return s.addFromCatalog(ctx, id)
}

func (s *Service) addFromCatalog(ctx context.Context, id int64) (*media.Record, error) {
	details, err := s.catalog.FetchDetails(ctx, id)
	if errors.Is(err, catalog.ErrMediaNotFound) {
		return nil, notFound("Media not found")
	}
	if err != nil {
		return nil, upstreamFailure(err)
	}

	record := catalog.BuildRecord(details, s.now())
	if err := s.store.UpsertItem(ctx, record); err != nil {
		return nil, storeFailure(err)
	}

	slog.Info("Item added", "id", record.ID, "type", record.Type, "title", record.Title)

	// A re-add keeps progress and user rating, so prefer the stored row.
	stored, err := s.store.GetItem(ctx, record.ID)
	if err != nil {
		slog.Warn("Failed to read back added item", "id", record.ID, "error", err)
		return &record, nil
	}
	return stored, nil
}

func (s *Service) Search(ctx context.Context, search string, mediaType string) ([]media.SearchResult, error) {
	if strings.TrimSpace(search) == "" || mediaType == "" {
		return nil, badRequest("Missing search or type")
	}
	t, err := media.ParseMediaType(mediaType)
	if err != nil {
		return nil, badRequest("type must be ANIME or MANGA")
	}

	results, err := s.catalog.Search(ctx, search, t)
	if err != nil {
		return nil, upstreamFailure(err)
	}
	return results, nil
}

// Totals looks up episode and chapter counts. Any type other than MANGA is
// treated as ANIME; the resolved type is returned.
func (s *Service) Totals(ctx context.Context, id int64, mediaType string) (media.MediaType, media.Totals, error) {
	t := media.TypeAnime
	if mediaType == string(media.TypeManga) {
		t = media.TypeManga
	}
	if id <= 0 {
		return t, media.Totals{}, badRequest("Missing or invalid id")
	}

	totals, err := s.catalog.FetchTotals(ctx, id, t)
	if err != nil {
		return t, media.Totals{}, upstreamFailure(err)
	}
	return t, totals, nil
}

func (s *Service) List(ctx context.Context, mediaType, genre, sort string) ([]media.Record, error) {
	filter := database.ListFilter{Type: typeFilter(mediaType)}
	if genre != "" && genre != AllFilter {
		filter.Genre = genre
	}

	items, err := s.store.ListItems(ctx, filter, database.ParseSortKey(sort))
	if err != nil {
		return nil, storeFailure(err)
	}
	return items, nil
}

// Delete succeeds whether or not the id was present.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return badRequest("Missing or invalid id")
	}

	deleted, err := s.store.DeleteItem(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if deleted {
		slog.Info("Item deleted", "id", id)
	}
	return nil
}

func (s *Service) UpdateProgress(ctx context.Context, id int64, progress int) (ProgressResult, error) {
	if id <= 0 || progress < 0 {
		return ProgressResult{}, badRequest("Invalid payload. Expect { id: number, progress: number >= 0 }")
	}

	current, err := s.store.GetItem(ctx, id)
	if err != nil {
		return ProgressResult{}, storeFailure(err)
	}

	clamped := media.ClampProgress(progress, current.Total())
	if err := s.store.UpdateProgress(ctx, id, clamped); err != nil {
		return ProgressResult{}, storeFailure(err)
	}

	updated, err := s.store.GetItem(ctx, id)
	if err != nil {
		slog.Warn("Failed to read back item after progress update", "id", id, "error", err)
		return ProgressResult{Progress: clamped}, nil
	}
	return ProgressResult{Item: updated, Progress: updated.Progress}, nil
}

// UpdateRating sets or, with nil, clears the user rating.
func (s *Service) UpdateRating(ctx context.Context, id int64, rating *int) error {
	if id <= 0 {
		return badRequest("Missing or invalid id")
	}
	if !media.ValidRating(rating) {
		return badRequest("user_rating must be 0-100 or null")
	}

	if err := s.store.UpdateUserRating(ctx, id, rating); err != nil {
		return storeFailure(err)
	}
	return nil
}

// RandomPick returns a uniformly chosen record. The record is nil when it
// disappeared between listing and reading.
func (s *Service) RandomPick(ctx context.Context, mediaType string) (*media.Record, error) {
	ids, err := s.store.ListItemIDs(ctx, database.ListFilter{Type: typeFilter(mediaType)})
	if err != nil {
		return nil, storeFailure(err)
	}
	if len(ids) == 0 {
		return nil, notFound("No items in watchlist")
	}

	choice := ids[s.intn(len(ids))]
	record, err := s.store.GetItem(ctx, choice)
	if errors.Is(err, database.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure(err)
	}
	return record, nil
}

// typeFilter maps a query value to a store filter. Anything but a known type
// means unfiltered.
func typeFilter(value string) media.MediaType {
	t, err := media.ParseMediaType(value)
	if err != nil {
		return ""
	}
	return t
}
