package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lysyi3m/watchlist/app/media"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req graphQLRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Search(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		if !strings.Contains(req.Query, "SEARCH_MATCH") {
			t.Errorf("Expected search query, got %s", req.Query)
		}
		if req.Variables["search"] != "frieren" || req.Variables["type"] != "ANIME" {
			t.Errorf("Unexpected variables: %v", req.Variables)
		}
		io.WriteString(w, `{"data":{"Page":{"media":[
			{"id":154587,"type":"ANIME","title":{"romaji":"Sousou no Frieren","english":"Frieren"},"coverImage":{"large":"https://img/1.jpg"}},
			{"id":170068,"type":"ANIME","title":{"romaji":"Sousou no Frieren 2","english":null},"coverImage":{"large":""}}
		]}}}`)
	})

	client := NewClient(Options{Endpoint: server.URL, UserAgent: "test"})
	results, err := client.Search(context.Background(), "frieren", media.TypeAnime)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ID != 154587 || results[0].Title.English == nil || *results[0].Title.English != "Frieren" {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
	if results[0].CoverImage.Large == nil || *results[0].CoverImage.Large != "https://img/1.jpg" {
		t.Errorf("Expected cover image to pass through, got %v", results[0].CoverImage.Large)
	}
	if results[1].Title.English != nil {
		t.Errorf("Expected null english title to stay null, got %q", *results[1].Title.English)
	}

	encoded, err := json.Marshal(results[1])
	if err != nil {
		t.Fatalf("Failed to encode result: %v", err)
	}
	if !strings.Contains(string(encoded), `"english":null`) || !strings.Contains(string(encoded), `"large":""`) {
		t.Errorf("Expected result to be passed through unmodified, got %s", encoded)
	}
}

func TestClient_SearchEmpty(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		io.WriteString(w, `{"data":{"Page":{"media":null}}}`)
	})

	results, err := NewClient(Options{Endpoint: server.URL}).Search(context.Background(), "zzz", media.TypeManga)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", results)
	}
}

func TestClient_FetchDetails(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		if req.Variables["id"] != float64(101) {
			t.Errorf("Expected id 101, got %v", req.Variables["id"])
		}
		io.WriteString(w, `{"data":{"Media":{
			"id":101,"type":"ANIME",
			"title":{"romaji":"Romaji Title","english":null},
			"coverImage":{"extraLarge":"https://img/xl.jpg"},
			"averageScore":82,
			"genres":["Action","Drama","Action"],
			"description":"A story.",
			"episodes":24,"chapters":null,"volumes":null,
			"characters":{"nodes":[{"name":{"full":"A"}},{"name":{"full":null}},{"name":{"full":"B"}}]}
		}}}`)
	})

	m, err := NewClient(Options{Endpoint: server.URL}).FetchDetails(context.Background(), 101)
	if err != nil {
		t.Fatalf("FetchDetails failed: %v", err)
	}
	if m.ID != 101 || m.Type != media.TypeAnime {
		t.Errorf("Unexpected media: %+v", m)
	}
	if m.Episodes == nil || *m.Episodes != 24 {
		t.Errorf("Expected 24 episodes, got %v", m.Episodes)
	}
	if m.Chapters != nil {
		t.Errorf("Expected nil chapters, got %d", *m.Chapters)
	}
}

func TestClient_FetchDetailsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"upstream 404", http.StatusNotFound, `{"errors":[{"message":"Not Found.","status":404}],"data":{"Media":null}}`},
		{"null media", http.StatusOK, `{"data":{"Media":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := NewClient(Options{Endpoint: server.URL}).FetchDetails(context.Background(), 1)
			if !errors.Is(err, ErrMediaNotFound) {
				t.Errorf("Expected ErrMediaNotFound, got %v", err)
			}
		})
	}
}

func TestClient_UpstreamFailure(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	})

	_, err := NewClient(Options{Endpoint: server.URL}).Search(context.Background(), "x", media.TypeAnime)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusInternalServerError || fetchErr.Body != "boom" {
		t.Errorf("Unexpected fetch error: %+v", fetchErr)
	}
	if !strings.Contains(err.Error(), "500 boom") {
		t.Errorf("Expected status and body in message, got %q", err.Error())
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		io.WriteString(w, "<html>not json</html>")
	})

	_, err := NewClient(Options{Endpoint: server.URL}).FetchDetails(context.Background(), 1)
	if err == nil || errors.Is(err, ErrMediaNotFound) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestClient_FetchTotals(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		io.WriteString(w, `{"data":{"Media":{"id":7,"type":"MANGA","episodes":null,"chapters":120,"volumes":12}}}`)
	})
	client := NewClient(Options{Endpoint: server.URL})

	totals, err := client.FetchTotals(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("FetchTotals failed: %v", err)
	}
	if totals.TotalChapters == nil || *totals.TotalChapters != 120 {
		t.Errorf("Expected 120 total chapters from detected type, got %v", totals.TotalChapters)
	}
	if totals.TotalEpisodes != nil {
		t.Errorf("Expected nil total episodes, got %d", *totals.TotalEpisodes)
	}
	if totals.Chapters == nil || *totals.Chapters != 120 {
		t.Errorf("Expected raw chapters 120, got %v", totals.Chapters)
	}

	// An explicit hint overrides the catalog type.
	totals, err = client.FetchTotals(context.Background(), 7, media.TypeAnime)
	if err != nil {
		t.Fatalf("FetchTotals failed: %v", err)
	}
	if totals.TotalChapters != nil || totals.TotalEpisodes != nil {
		t.Errorf("Expected no type-appropriate totals with ANIME hint, got %+v", totals)
	}
	if totals.Chapters == nil {
		t.Error("Expected raw chapters to be reported regardless of hint")
	}
}

func TestClient_FetchTotalsMissingMedia(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"data":{"Media":null}}`)
	})

	totals, err := NewClient(Options{Endpoint: server.URL}).FetchTotals(context.Background(), 9, media.TypeAnime)
	if err != nil {
		t.Fatalf("Expected no error for missing media, got %v", err)
	}
	if totals != (media.Totals{}) {
		t.Errorf("Expected empty totals, got %+v", totals)
	}
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	client := NewClient(Options{Endpoint: server.URL})

	for i := 0; i < 5; i++ {
		if _, err := client.Search(context.Background(), "x", media.TypeAnime); err == nil {
			t.Fatalf("Expected failure on call %d", i)
		}
	}

	_, err := client.Search(context.Background(), "x", media.TypeAnime)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected open breaker, got %v", err)
	}
	if hits.Load() != 5 {
		t.Errorf("Expected 5 upstream hits, got %d", hits.Load())
	}
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := NewClient(Options{Endpoint: server.URL})

	for i := 0; i < 8; i++ {
		if _, err := client.FetchDetails(context.Background(), 1); !errors.Is(err, ErrMediaNotFound) {
			t.Fatalf("Call %d: expected ErrMediaNotFound, got %v", i, err)
		}
	}
}

func TestClient_CallerTimeoutsDoNotTripBreaker(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		time.Sleep(50 * time.Millisecond)
		io.WriteString(w, `{"data":{"Page":{"media":[]}}}`)
	})
	client := NewClient(Options{Endpoint: server.URL})

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := client.Search(ctx, "fri", media.TypeAnime)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Call %d: expected deadline exceeded, got %v", i, err)
		}
	}

	if _, err := client.Search(context.Background(), "frieren", media.TypeAnime); err != nil {
		t.Fatalf("Expected healthy catalog to answer after caller timeouts, got %v", err)
	}
}

func TestClient_CancelledContextDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, req graphQLRequest) {
		calls.Add(1)
		io.WriteString(w, `{"data":{"Media":{"id":1,"type":"ANIME","episodes":12}}}`)
	})
	client := NewClient(Options{Endpoint: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		if _, err := client.FetchTotals(ctx, 1, ""); !errors.Is(err, context.Canceled) {
			t.Fatalf("Call %d: expected context canceled, got %v", i, err)
		}
	}

	totals, err := client.FetchTotals(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Expected breaker to stay closed, got %v", err)
	}
	if totals.TotalEpisodes == nil || *totals.TotalEpisodes != 12 {
		t.Errorf("Expected 12 total episodes, got %v", totals.TotalEpisodes)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected only the live request to reach the catalog, got %d", calls.Load())
	}
}

func TestCountsAsFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &FetchError{Status: 503}, true},
		{"throttled", &FetchError{Status: 429}, true},
		{"not found", &FetchError{Status: 404}, false},
		{"transport", errors.New("connection refused"), true},
		{"aborted", &abortedError{err: context.Canceled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countsAsFailure(tt.err); got != tt.want {
				t.Errorf("countsAsFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
