package database

import (
	"errors"
	"time"

	"github.com/lysyi3m/watchlist/app/media"
)

var ErrItemNotFound = errors.New("item not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

type SortKey string

const (
	SortRatingDesc SortKey = "rating_desc"
	SortRatingAsc  SortKey = "rating_asc"
	SortAddedDesc  SortKey = "added_desc"
	SortAddedAsc   SortKey = "added_asc"
)

// ParseSortKey falls back to newest-first for anything unrecognized.
func ParseSortKey(s string) SortKey {
	switch key := SortKey(s); key {
	case SortRatingDesc, SortRatingAsc, SortAddedDesc, SortAddedAsc:
		return key
	default:
		return SortAddedDesc
	}
}

// Null ratings sort first in both rating directions.
func (k SortKey) orderBy() string {
	switch k {
	case SortRatingDesc:
		return "rating DESC NULLS FIRST, added_at DESC"
	case SortRatingAsc:
		return "rating ASC NULLS FIRST, added_at DESC"
	case SortAddedAsc:
		return "added_at ASC, id ASC"
	default:
		return "added_at DESC, id DESC"
	}
}

// ListFilter narrows a listing. Zero values mean unfiltered.
type ListFilter struct {
	Type  media.MediaType
	Genre string
}

type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Change is the coarse event emitted after a store mutation. Consumers use it
// to trigger a refresh, not to reconcile state.
type Change struct {
	Table string   `json:"table"`
	Op    ChangeOp `json:"op"`
	ID    int64    `json:"id"`
}
