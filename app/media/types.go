package media

import (
	"fmt"
	"time"
)

type MediaType string

const (
	TypeAnime MediaType = "ANIME"
	TypeManga MediaType = "MANGA"
)

func (t MediaType) Valid() bool {
	return t == TypeAnime || t == TypeManga
}

// ParseMediaType accepts only the two catalog media types. "ALL" and the empty
// string are not types; callers that treat them as "no filter" check first.
func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown media type %q", s)
	}
	return t, nil
}

// Record is one watchlist row. ID is the upstream catalog media id.
type Record struct {
	ID            int64     `json:"id"`
	Type          MediaType `json:"type"`
	Title         string    `json:"title"`
	PosterURL     string    `json:"poster_url"`
	Rating        *int      `json:"rating"`
	Genres        []string  `json:"genres"`
	Characters    []string  `json:"characters"`
	Description   string    `json:"description"`
	AddedAt       time.Time `json:"added_at"`
	Progress      int       `json:"progress"`
	UserRating    *int      `json:"user_rating"`
	TotalEpisodes *int      `json:"total_episodes"`
	TotalChapters *int      `json:"total_chapters"`
}

// Total returns the total that bounds Progress for the record's type, or nil
// when the catalog did not report one.
func (r Record) Total() *int {
	if r.Type == TypeAnime {
		return r.TotalEpisodes
	}
	return r.TotalChapters
}

// SearchResult mirrors the catalog's search payload and is passed through to
// callers as-is. Nullable catalog fields stay null.
type SearchResult struct {
	ID    int64     `json:"id"`
	Type  MediaType `json:"type"`
	Title struct {
		Romaji  *string `json:"romaji"`
		English *string `json:"english"`
	} `json:"title"`
	CoverImage struct {
		Large *string `json:"large"`
	} `json:"coverImage"`
}

type Totals struct {
	TotalEpisodes *int `json:"total_episodes"`
	TotalChapters *int `json:"total_chapters"`
	Episodes      *int `json:"episodes"`
	Chapters      *int `json:"chapters"`
}
