package catalog

import (
	"time"

	"github.com/lysyi3m/watchlist/app/media"
)

const maxCharacters = 5

// BuildRecord turns catalog details into a watchlist record. Totals are
// resolved here once so nothing downstream needs to guess which field holds
// the count.
func BuildRecord(m *Media, addedAt time.Time) media.Record {
	record := media.Record{
		ID:          m.ID,
		Type:        m.Type,
		Title:       pickTitle(m.Title.English, m.Title.Romaji),
		PosterURL:   deref(m.CoverImage.ExtraLarge),
		Rating:      m.AverageScore,
		Genres:      make([]string, 0, len(m.Genres)),
		Characters:  make([]string, 0, maxCharacters),
		Description: deref(m.Description),
		AddedAt:     addedAt,
	}

	record.Genres = append(record.Genres, m.Genres...)

	for _, node := range m.Characters.Nodes {
		if len(record.Characters) == maxCharacters {
			break
		}
		if name := deref(node.Name.Full); name != "" {
			record.Characters = append(record.Characters, name)
		}
	}

	if m.Type == media.TypeAnime && m.Episodes != nil {
		record.TotalEpisodes = m.Episodes
	}
	if m.Type == media.TypeManga && m.Chapters != nil {
		record.TotalChapters = m.Chapters
	}

	return record
}

func pickTitle(english, romaji *string) string {
	if t := deref(english); t != "" {
		return t
	}
	return deref(romaji)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
