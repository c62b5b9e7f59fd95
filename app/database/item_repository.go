package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/metrics"
)

const itemsTable = "watchlist_items"

const itemColumns = `id, type, title, poster_url, rating, genres, characters, description,
	added_at, progress, user_rating, total_episodes, total_chapters`

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

// ItemRepositoryImpl handles database operations for watchlist items
type ItemRepositoryImpl struct {
	db       *DB
	notifier ChangeNotifier
}

// NewItemRepository creates a new item repository. notifier may be nil.
func NewItemRepository(db *DB, notifier ChangeNotifier) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db, notifier: notifier}
}

func (r *ItemRepositoryImpl) notify(op ChangeOp, id int64) {
	metrics.StoreChanges.WithLabelValues(string(op)).Inc()
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(Change{Table: itemsTable, Op: op, ID: id})
}

// UpsertItem inserts the record or overwrites the catalog-derived fields of an
// existing row. Progress and user rating survive a re-add; progress is
// re-clamped when the new total for the stored type is known.
func (r *ItemRepositoryImpl) UpsertItem(ctx context.Context, record media.Record) error {
	genres, err := encodeStrings(record.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	characters, err := encodeStrings(record.Characters)
	if err != nil {
		return fmt.Errorf("failed to encode characters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO watchlist_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			poster_url = excluded.poster_url,
			rating = excluded.rating,
			genres = excluded.genres,
			characters = excluded.characters,
			description = excluded.description,
			added_at = excluded.added_at,
			total_episodes = excluded.total_episodes,
			total_chapters = excluded.total_chapters,
			totals_checked_at = NULL,
			progress = CASE
				WHEN watchlist_items.type = 'ANIME' AND excluded.total_episodes IS NOT NULL
					THEN MIN(watchlist_items.progress, excluded.total_episodes)
				WHEN watchlist_items.type = 'MANGA' AND excluded.total_chapters IS NOT NULL
					THEN MIN(watchlist_items.progress, excluded.total_chapters)
				ELSE watchlist_items.progress
			END
	`, record.ID, string(record.Type), record.Title, record.PosterURL, record.Rating,
		genres, characters, record.Description, formatTime(record.AddedAt),
		media.ClampProgress(record.Progress, record.Total()), record.UserRating,
		record.TotalEpisodes, record.TotalChapters)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	r.notify(OpUpsert, record.ID)
	return nil
}

// UpdateProgress stores an already clamped progress value.
func (r *ItemRepositoryImpl) UpdateProgress(ctx context.Context, id int64, progress int) error {
	return r.update(ctx, id, "progress", progress)
}

func (r *ItemRepositoryImpl) UpdateUserRating(ctx context.Context, id int64, rating *int) error {
	return r.update(ctx, id, "user_rating", rating)
}

// update sets one column. Matching no rows is not an error.
func (r *ItemRepositoryImpl) update(ctx context.Context, id int64, column string, value any) error {
	result, err := r.db.ExecContext(ctx, "UPDATE watchlist_items SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", column, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		r.notify(OpUpdate, id)
	}
	return nil
}

// FillMissingTotals sets totals that are still unknown and leaves known ones
// alone. It reports whether the row changed.
func (r *ItemRepositoryImpl) FillMissingTotals(ctx context.Context, id int64, totalEpisodes, totalChapters *int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE watchlist_items SET
			total_episodes = COALESCE(total_episodes, ?1),
			total_chapters = COALESCE(total_chapters, ?2),
			progress = CASE type
				WHEN 'ANIME' THEN MIN(progress, COALESCE(total_episodes, ?1, progress))
				ELSE MIN(progress, COALESCE(total_chapters, ?2, progress))
			END
		WHERE id = ?3
		  AND ((total_episodes IS NULL AND ?1 IS NOT NULL) OR (total_chapters IS NULL AND ?2 IS NOT NULL))
	`, totalEpisodes, totalChapters, id)
	if err != nil {
		return false, fmt.Errorf("failed to fill item totals: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.notify(OpUpdate, id)
	return true, nil
}

// DeleteItem removes the item and reports whether a row existed.
func (r *ItemRepositoryImpl) DeleteItem(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM watchlist_items WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.notify(OpDelete, id)
	return true, nil
}

func (r *ItemRepositoryImpl) GetItem(ctx context.Context, id int64) (*media.Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM watchlist_items WHERE id = ?", id)

	record, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return record, nil
}

// ListItems returns every item matching filter in the requested order. The
// result is never nil.
func (r *ItemRepositoryImpl) ListItems(ctx context.Context, filter ListFilter, sort SortKey) ([]media.Record, error) {
	where, args := filter.clause()
	query := "SELECT " + itemColumns + " FROM watchlist_items" + where + " ORDER BY " + sort.orderBy()

	return r.queryItems(ctx, query, args...)
}

func (r *ItemRepositoryImpl) ListItemIDs(ctx context.Context, filter ListFilter) ([]int64, error) {
	where, args := filter.clause()

	rows, err := r.db.QueryContext(ctx, "SELECT id FROM watchlist_items"+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list item ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item ids: %w", err)
	}

	return ids, nil
}

// GetItemsMissingTotals returns items whose type-appropriate total is still
// unknown. Items never checked come first, then the least recently checked,
// so repeated batches rotate through every candidate.
func (r *ItemRepositoryImpl) GetItemsMissingTotals(ctx context.Context, limit int) ([]media.Record, error) {
	return r.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM watchlist_items
		WHERE (type = 'ANIME' AND total_episodes IS NULL)
		   OR (type = 'MANGA' AND total_chapters IS NULL)
		ORDER BY totals_checked_at ASC NULLS FIRST, added_at ASC, id ASC
		LIMIT ?
	`, limit)
}

// MarkTotalsChecked records a totals lookup for the item. It does not emit a
// change event.
func (r *ItemRepositoryImpl) MarkTotalsChecked(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE watchlist_items SET totals_checked_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark totals checked: %w", err)
	}
	return nil
}

func (r *ItemRepositoryImpl) GetItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM watchlist_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func (r *ItemRepositoryImpl) queryItems(ctx context.Context, query string, args ...any) ([]media.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []media.Record{}
	for rows.Next() {
		record, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (f ListFilter) clause() (string, []any) {
	var conditions []string
	var args []any

	if f.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Genre != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(watchlist_items.genres) WHERE json_each.value = ?)")
		args = append(args, f.Genre)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*media.Record, error) {
	var (
		record                                media.Record
		itemType, genres, characters, addedAt string
		rating, userRating                    sql.NullInt64
		totalEpisodes, totalChapters          sql.NullInt64
	)

	err := s.Scan(
		&record.ID, &itemType, &record.Title, &record.PosterURL, &rating,
		&genres, &characters, &record.Description, &addedAt, &record.Progress,
		&userRating, &totalEpisodes, &totalChapters,
	)
	if err != nil {
		return nil, err
	}

	record.Type = media.MediaType(itemType)
	record.Rating = nullableInt(rating)
	record.UserRating = nullableInt(userRating)
	record.TotalEpisodes = nullableInt(totalEpisodes)
	record.TotalChapters = nullableInt(totalChapters)

	if record.Genres, err = decodeStrings(genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	if record.Characters, err = decodeStrings(characters); err != nil {
		return nil, fmt.Errorf("failed to decode characters: %w", err)
	}
	if record.AddedAt, err = parseTime(addedAt); err != nil {
		slog.Warn("Unparseable added_at on item", "id", record.ID, "value", addedAt)
	}

	return &record, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
