package watchlist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/watchlist/app/catalog"
	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/ratelimit"
)

type fakeCatalog struct {
	media     map[int64]*catalog.Media
	results   []media.SearchResult
	totals    media.Totals
	err       error
	lastHint  media.MediaType
	lastQuery string
}

var _ CatalogClient = (*fakeCatalog)(nil)

func (f *fakeCatalog) Search(ctx context.Context, search string, mediaType media.MediaType) ([]media.SearchResult, error) {
	f.lastQuery = search
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeCatalog) FetchDetails(ctx context.Context, id int64) (*catalog.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.media[id]
	if !ok {
		return nil, catalog.ErrMediaNotFound
	}
	return m, nil
}

func (f *fakeCatalog) FetchTotals(ctx context.Context, id int64, hint media.MediaType) (media.Totals, error) {
	f.lastHint = hint
	if f.err != nil {
		return media.Totals{}, f.err
	}
	return f.totals, nil
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	recorded []string
}

var _ RateLimiter = (*fakeLimiter)(nil)

func (f *fakeLimiter) Check(ctx context.Context, identifier string) (ratelimit.Decision, error) {
	return f.decision, f.err
}

func (f *fakeLimiter) Record(ctx context.Context, identifier string) {
	f.recorded = append(f.recorded, identifier)
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func animeMedia(id int64, episodes *int) *catalog.Media {
	m := &catalog.Media{ID: id, Type: media.TypeAnime, Episodes: episodes, Genres: []string{"Action"}}
	m.Title.English = strPtr("Show")
	m.AverageScore = intPtr(80)
	return m
}

func mangaMedia(id int64, chapters *int) *catalog.Media {
	m := &catalog.Media{ID: id, Type: media.TypeManga, Chapters: chapters}
	m.Title.Romaji = strPtr("Manga")
	return m
}

// newTestService wires the service to a real SQLite store so the store's
// upsert and clamp rules take part.
func newTestService(t *testing.T, cat *fakeCatalog, lim RateLimiter) (*Service, *database.ItemRepositoryImpl) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store := database.NewItemRepository(db, nil)
	if lim == nil {
		lim = &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
	}
	return NewService(cat, store, lim), store
}

func TestAddStoresRecord(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{101: animeMedia(101, intPtr(24))}}
	lim := &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
	svc, _ := newTestService(t, cat, lim)

	record, err := svc.Add(context.Background(), 101, "10.0.0.1")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if record.ID != 101 || record.Title != "Show" || record.Progress != 0 {
		t.Errorf("Unexpected record: %+v", record)
	}
	if record.TotalEpisodes == nil || *record.TotalEpisodes != 24 || record.TotalChapters != nil {
		t.Errorf("Unexpected totals: %v %v", record.TotalEpisodes, record.TotalChapters)
	}
	if len(lim.recorded) != 1 || lim.recorded[0] != "10.0.0.1" {
		t.Errorf("Expected cooldown recorded for identifier, got %v", lim.recorded)
	}
}

func TestAddIsIdempotent(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{101: animeMedia(101, intPtr(24))}}
	svc, store := newTestService(t, cat, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 101, "a"); err != nil {
		t.Fatalf("First add failed: %v", err)
	}

	updated := animeMedia(101, intPtr(12))
	updated.Title.English = strPtr("Renamed")
	cat.media[101] = updated
	record, err := svc.Add(ctx, 101, "b")
	if err != nil {
		t.Fatalf("Second add failed: %v", err)
	}

	count, _ := store.GetItemCount(ctx)
	if count != 1 {
		t.Errorf("Expected one record, got %d", count)
	}
	if record.Title != "Renamed" || *record.TotalEpisodes != 12 {
		t.Errorf("Expected second add to supersede catalog fields, got %+v", record)
	}
}

func TestAddErrors(t *testing.T) {
	tests := []struct {
		name    string
		id      int64
		catalog *fakeCatalog
		limiter *fakeLimiter
		kind    Kind
	}{
		{"invalid id", 0, &fakeCatalog{}, nil, KindBadRequest},
		{"negative id", -3, &fakeCatalog{}, nil, KindBadRequest},
		{"rate limited", 1, &fakeCatalog{}, &fakeLimiter{decision: ratelimit.Decision{RetryAfter: 42}}, KindRateLimited},
		{"limiter store failure", 1, &fakeCatalog{}, &fakeLimiter{err: errors.New("locked")}, KindStore},
		{"not found", 1, &fakeCatalog{media: map[int64]*catalog.Media{}}, nil, KindNotFound},
		{"upstream failure", 1, &fakeCatalog{err: &catalog.FetchError{Status: 500, Body: "boom"}}, nil, KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := tt.limiter
			if lim == nil {
				lim = &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
			}
			svc, _ := newTestService(t, tt.catalog, lim)

			_, err := svc.Add(context.Background(), tt.id, "ip")
			if !IsKind(err, tt.kind) {
				t.Fatalf("Expected %v, got %v", tt.kind, err)
			}
			if len(lim.recorded) != 0 {
				t.Error("Cooldown must not be recorded when add fails")
			}
		})
	}
}

func TestAddRateLimitedCarriesRetryAfter(t *testing.T) {
	lim := &fakeLimiter{decision: ratelimit.Decision{RetryAfter: 17}}
	svc, _ := newTestService(t, &fakeCatalog{}, lim)

	_, err := svc.Add(context.Background(), 5, "")
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if svcErr.RetryAfter != 17 || svcErr.Message != "Rate limited. Try again in 17s" {
		t.Errorf("Unexpected error: %+v", svcErr)
	}
}

func TestAddWithRealCooldown(t *testing.T) {
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "cooldown.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := ratelimit.NewLimiter(database.NewRateLimitRepository(db), time.Minute).WithClock(clock)
	cat := &fakeCatalog{media: map[int64]*catalog.Media{1: animeMedia(1, nil), 2: animeMedia(2, nil)}}
	svc := NewService(cat, database.NewItemRepository(db, nil), limiter)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 1, "1.1.1.1"); err != nil {
		t.Fatalf("First add failed: %v", err)
	}

	now = now.Add(15 * time.Second)
	_, err = svc.Add(ctx, 2, "1.1.1.1")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Kind != KindRateLimited || svcErr.RetryAfter != 45 {
		t.Fatalf("Expected rate limit with 45s retry, got %v", err)
	}

	now = now.Add(45 * time.Second)
	if _, err := svc.Add(ctx, 2, "1.1.1.1"); err != nil {
		t.Errorf("Expected add allowed after window, got %v", err)
	}
}

func TestImportSkipsCooldown(t *testing.T) {
	lim := &fakeLimiter{decision: ratelimit.Decision{RetryAfter: 60}}
	cat := &fakeCatalog{media: map[int64]*catalog.Media{9: mangaMedia(9, intPtr(50))}}
	svc, _ := newTestService(t, cat, lim)

	record, err := svc.Import(context.Background(), 9)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if record.Title != "Manga" || *record.TotalChapters != 50 {
		t.Errorf("Unexpected record: %+v", record)
	}
	if len(lim.recorded) != 0 {
		t.Error("Import must not touch the cooldown")
	}
}

func TestSearch(t *testing.T) {
	results := []media.SearchResult{{ID: 1, Type: media.TypeAnime}}
	cat := &fakeCatalog{results: results}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()

	got, err := svc.Search(ctx, "frieren", "ANIME")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 || cat.lastQuery != "frieren" {
		t.Errorf("Unexpected results %+v", got)
	}

	for _, tc := range []struct{ search, typ string }{{"", "ANIME"}, {"x", ""}, {"x", "NOVEL"}} {
		if _, err := svc.Search(ctx, tc.search, tc.typ); !IsKind(err, KindBadRequest) {
			t.Errorf("Search(%q, %q): expected bad request, got %v", tc.search, tc.typ, err)
		}
	}

	cat.err = errors.New("connection refused")
	if _, err := svc.Search(ctx, "x", "MANGA"); !IsKind(err, KindUpstream) {
		t.Errorf("Expected upstream failure, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	cat := &fakeCatalog{totals: media.Totals{TotalChapters: intPtr(10), Chapters: intPtr(10)}}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()

	typ, totals, err := svc.Totals(ctx, 3, "MANGA")
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if typ != media.TypeManga || cat.lastHint != media.TypeManga || *totals.TotalChapters != 10 {
		t.Errorf("Unexpected totals %v %+v", typ, totals)
	}

	typ, _, err = svc.Totals(ctx, 3, "")
	if err != nil || typ != media.TypeAnime {
		t.Errorf("Expected type to default to ANIME, got %v err=%v", typ, err)
	}

	if _, _, err := svc.Totals(ctx, 0, "ANIME"); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request, got %v", err)
	}
}

func TestListFilterAndSort(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{}}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []struct {
		m      *catalog.Media
		rating *int
	}{
		{animeMedia(1, nil), intPtr(70)},
		{animeMedia(2, nil), nil},
		{mangaMedia(3, nil), intPtr(99)},
		{animeMedia(4, nil), intPtr(90)},
	}
	for i, e := range entries {
		e.m.AverageScore = e.rating
		cat.media[e.m.ID] = e.m
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if _, err := svc.Add(ctx, e.m.ID, "ip"); err != nil {
			t.Fatalf("Add(%d) failed: %v", e.m.ID, err)
		}
	}

	items, err := svc.List(ctx, "ANIME", "ALL", "rating_desc")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []int64{2, 4, 1}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].ID != id || items[i].Type != media.TypeAnime {
			t.Errorf("Position %d: expected anime %d, got %s %d", i, id, items[i].Type, items[i].ID)
		}
	}

	items, err = svc.List(ctx, "", "", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 4 || items[0].ID != 4 {
		t.Errorf("Expected newest first across all types, got %+v", items)
	}

	items, _ = svc.List(ctx, "ALL", "Action", "added_asc")
	if len(items) != 3 || items[0].ID != 1 {
		t.Errorf("Expected anime Action items oldest first, got %d items", len(items))
	}
}

func TestDelete(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{1: animeMedia(1, nil)}}
	svc, store := newTestService(t, cat, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 1, "ip"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := svc.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetItem(ctx, 1); !errors.Is(err, database.ErrItemNotFound) {
		t.Errorf("Expected item gone, got %v", err)
	}

	if err := svc.Delete(ctx, 12345); err != nil {
		t.Errorf("Deleting a missing id should succeed, got %v", err)
	}
	if err := svc.Delete(ctx, 0); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request, got %v", err)
	}
}

func TestUpdateProgressClamp(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{
		1: animeMedia(1, intPtr(12)),
		2: mangaMedia(2, nil),
		3: mangaMedia(3, intPtr(40)),
	}}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()
	for id := range cat.media {
		if _, err := svc.Add(ctx, id, "ip"); err != nil {
			t.Fatalf("Add(%d) failed: %v", id, err)
		}
	}

	tests := []struct {
		id       int64
		progress int
		want     int
	}{
		{1, 5, 5},
		{1, 12, 12},
		{1, 13, 12},
		{1, 1000, 12},
		{1, 0, 0},
		{2, 5000, 5000},
		{3, 41, 40},
		{3, 39, 39},
	}

	for _, tt := range tests {
		result, err := svc.UpdateProgress(ctx, tt.id, tt.progress)
		if err != nil {
			t.Fatalf("UpdateProgress(%d, %d) failed: %v", tt.id, tt.progress, err)
		}
		if result.Item == nil || result.Item.Progress != tt.want || result.Progress != tt.want {
			t.Errorf("UpdateProgress(%d, %d): expected %d, got %+v", tt.id, tt.progress, tt.want, result)
		}
	}
}

func TestUpdateProgressErrors(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{}, nil)
	ctx := context.Background()

	if _, err := svc.UpdateProgress(ctx, 1, -1); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request for negative progress, got %v", err)
	}
	if _, err := svc.UpdateProgress(ctx, 0, 1); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request for missing id, got %v", err)
	}
	if _, err := svc.UpdateProgress(ctx, 77, 1); !IsKind(err, KindStore) {
		t.Errorf("Expected store failure for missing record, got %v", err)
	}
}

func TestUpdateRating(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{1: animeMedia(1, nil)}}
	svc, store := newTestService(t, cat, nil)
	ctx := context.Background()
	if _, err := svc.Add(ctx, 1, "ip"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for _, r := range []int{-1, 101, 150} {
		if err := svc.UpdateRating(ctx, 1, intPtr(r)); !IsKind(err, KindBadRequest) {
			t.Errorf("UpdateRating(%d): expected bad request, got %v", r, err)
		}
	}

	for _, r := range []int{0, 100, 64} {
		if err := svc.UpdateRating(ctx, 1, intPtr(r)); err != nil {
			t.Errorf("UpdateRating(%d) failed: %v", r, err)
		}
	}
	got, _ := store.GetItem(ctx, 1)
	if got.UserRating == nil || *got.UserRating != 64 {
		t.Errorf("Expected user rating 64, got %v", got.UserRating)
	}

	if err := svc.UpdateRating(ctx, 1, nil); err != nil {
		t.Fatalf("Clearing rating failed: %v", err)
	}
	got, _ = store.GetItem(ctx, 1)
	if got.UserRating != nil {
		t.Errorf("Expected rating cleared, got %v", *got.UserRating)
	}

	if err := svc.UpdateRating(ctx, 404, intPtr(50)); err != nil {
		t.Errorf("Rating a missing id should succeed without effect, got %v", err)
	}
	if err := svc.UpdateRating(ctx, 0, nil); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request for missing id, got %v", err)
	}
}

func TestRandomPick(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{1: animeMedia(1, nil), 2: animeMedia(2, nil), 3: animeMedia(3, nil)}}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()

	if _, err := svc.RandomPick(ctx, ""); !IsKind(err, KindNotFound) {
		t.Errorf("Expected not found on empty store, got %v", err)
	}

	for id := range cat.media {
		if _, err := svc.Add(ctx, id, "ip"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if _, err := svc.RandomPick(ctx, "MANGA"); !IsKind(err, KindNotFound) {
		t.Errorf("Expected not found with no manga, got %v", err)
	}

	svc.intn = func(n int) int { return n - 1 }
	record, err := svc.RandomPick(ctx, "ANIME")
	if err != nil {
		t.Fatalf("RandomPick failed: %v", err)
	}
	if record == nil || record.ID != 3 {
		t.Errorf("Expected last id to be picked, got %+v", record)
	}

	seen := map[int64]bool{}
	svc.intn = func(n int) int { return len(seen) % n }
	for range 3 {
		record, err := svc.RandomPick(ctx, "ALL")
		if err != nil {
			t.Fatalf("RandomPick failed: %v", err)
		}
		seen[record.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("Expected every id reachable, saw %v", seen)
	}
}

func TestEndToEndScenario(t *testing.T) {
	cat := &fakeCatalog{media: map[int64]*catalog.Media{101: animeMedia(101, intPtr(24))}}
	svc, _ := newTestService(t, cat, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 101, "ip"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	result, err := svc.UpdateProgress(ctx, 101, 30)
	if err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if result.Item.Progress != 24 {
		t.Errorf("Expected progress clamped to 24, got %d", result.Item.Progress)
	}

	if _, err := svc.UpdateProgress(ctx, 101, -5); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request for negative progress, got %v", err)
	}
	if err := svc.UpdateRating(ctx, 101, intPtr(150)); !IsKind(err, KindBadRequest) {
		t.Errorf("Expected bad request for rating 150, got %v", err)
	}

	items, err := svc.List(ctx, "", "", "added_desc")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) == 0 || items[0].ID != 101 || items[0].Progress != 24 {
		t.Errorf("Expected 101 first with progress 24, got %+v", items)
	}
}
