package catalog

import (
	"github.com/lysyi3m/watchlist/app/media"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type envelope[T any] struct {
	Data   T              `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type searchData struct {
	Page struct {
		Media []media.SearchResult `json:"media"`
	} `json:"Page"`
}

type mediaData struct {
	Media *Media `json:"Media"`
}

// Media is the catalog detail payload. Nullable upstream fields are pointers so
// that absent values stay distinguishable from zero.
type Media struct {
	ID    int64           `json:"id"`
	Type  media.MediaType `json:"type"`
	Title struct {
		Romaji  *string `json:"romaji"`
		English *string `json:"english"`
	} `json:"title"`
	CoverImage struct {
		ExtraLarge *string `json:"extraLarge"`
	} `json:"coverImage"`
	AverageScore *int     `json:"averageScore"`
	Genres       []string `json:"genres"`
	Description  *string  `json:"description"`
	Episodes     *int     `json:"episodes"`
	Chapters     *int     `json:"chapters"`
	Volumes      *int     `json:"volumes"`
	Characters   struct {
		Nodes []struct {
			Name struct {
				Full *string `json:"full"`
			} `json:"name"`
		} `json:"nodes"`
	} `json:"characters"`
}
