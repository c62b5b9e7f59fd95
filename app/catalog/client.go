package catalog

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/watchlist/app/media"
	"github.com/lysyi3m/watchlist/app/metrics"
)

const maxResponseSize = 4 << 20

type Options struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerMinute int
	UserAgent         string
	HTTPClient        *http.Client
}

// Client talks to the AniList GraphQL API. It is created once at startup and
// shared by every request.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cmp.Or(opts.Timeout, 15*time.Second)}
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	return &Client{
		endpoint:   cmp.Or(opts.Endpoint, DefaultEndpoint),
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker("catalog-api"),
	}
}

func (c *Client) Search(ctx context.Context, search string, mediaType media.MediaType) ([]media.SearchResult, error) {
	var resp envelope[searchData]
	err := c.query(ctx, "search", searchQuery, map[string]any{"search": search, "type": mediaType}, &resp)
	if err != nil {
		return nil, err
	}

	results := resp.Data.Page.Media
	if results == nil {
		results = []media.SearchResult{}
	}
	return results, nil
}

func (c *Client) FetchDetails(ctx context.Context, id int64) (*Media, error) {
	var resp envelope[mediaData]
	err := c.query(ctx, "details", detailsQuery, map[string]any{"id": id}, &resp)
	if isNotFound(err) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.Data.Media == nil {
		return nil, ErrMediaNotFound
	}
	return resp.Data.Media, nil
}

// FetchTotals resolves episode and chapter counts. The type hint wins over the
// catalog's own type when given. Unknown media yields empty totals, not an error.
func (c *Client) FetchTotals(ctx context.Context, id int64, hint media.MediaType) (media.Totals, error) {
	var resp envelope[mediaData]
	err := c.query(ctx, "totals", totalsQuery, map[string]any{"id": id}, &resp)
	if isNotFound(err) {
		return media.Totals{}, nil
	}
	if err != nil {
		return media.Totals{}, err
	}

	m := resp.Data.Media
	if m == nil {
		return media.Totals{}, nil
	}

	isAnime := cmp.Or(hint, m.Type) == media.TypeAnime
	totals := media.Totals{Episodes: m.Episodes, Chapters: m.Chapters}
	if isAnime {
		totals.TotalEpisodes = m.Episodes
	} else {
		totals.TotalChapters = m.Chapters
	}
	return totals, nil
}

func (c *Client) query(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		body, err := c.post(ctx, query, variables)
		if err != nil && ctx.Err() != nil {
			return nil, &abortedError{err: err}
		}
		return body, err
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CatalogRequestsTotal.WithLabelValues(operation, "rejected").Inc()
			slog.Warn("Catalog request rejected by circuit breaker", "operation", operation, "error", err)
			return fmt.Errorf("catalog unavailable: %w", err)
		case isNotFound(err):
			metrics.CatalogRequestsTotal.WithLabelValues(operation, "not_found").Inc()
		case isAborted(err):
			metrics.CatalogRequestsTotal.WithLabelValues(operation, "aborted").Inc()
			slog.Debug("Catalog request abandoned by caller", "operation", operation, "error", err)
		default:
			metrics.CatalogRequestsTotal.WithLabelValues(operation, "failure").Inc()
			slog.Error("Catalog request failed", "operation", operation, "error", err)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues(operation, "failure").Inc()
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}

	metrics.CatalogRequestsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &abortedError{err: fmt.Errorf("catalog request budget: %w", err)}
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}
