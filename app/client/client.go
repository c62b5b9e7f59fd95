package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lysyi3m/watchlist/app/media"
)

// Client is a typed wrapper over the watchlist HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Query selects a list view. Empty fields mean unfiltered and newest first.
type Query struct {
	Type  string
	Genre string
	Sort  string
}

type TotalsResponse struct {
	ID     int64           `json:"id"`
	Type   media.MediaType `json:"type"`
	Totals media.Totals    `json:"totals"`
}

// ProgressResponse holds either the updated item or, when the service could
// not read it back, just the stored progress.
type ProgressResponse struct {
	Item     *media.Record `json:"item"`
	OK       bool          `json:"ok"`
	Progress *int          `json:"progress"`
}

func (c *Client) Add(ctx context.Context, id int64) (*media.Record, error) {
	var resp struct {
		Item *media.Record `json:"item"`
	}
	if err := c.do(ctx, http.MethodPost, "/add", map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

func (c *Client) Search(ctx context.Context, search string, mediaType media.MediaType) ([]media.SearchResult, error) {
	var resp struct {
		Results []media.SearchResult `json:"results"`
	}
	body := map[string]any{"search": search, "type": mediaType}
	if err := c.do(ctx, http.MethodPost, "/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) Totals(ctx context.Context, id int64, mediaType media.MediaType) (TotalsResponse, error) {
	var resp TotalsResponse
	body := map[string]any{"id": id, "type": mediaType}
	err := c.do(ctx, http.MethodPost, "/totals", body, &resp)
	return resp, err
}

func (c *Client) List(ctx context.Context, q Query) ([]media.Record, error) {
	params := url.Values{}
	for key, value := range map[string]string{"type": q.Type, "genre": q.Genre, "sort": q.Sort} {
		if value != "" {
			params.Set(key, value)
		}
	}

	path := "/watchlist"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Items []media.Record `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/watchlist", map[string]any{"id": id}, nil)
}

func (c *Client) UpdateProgress(ctx context.Context, id int64, progress int) (ProgressResponse, error) {
	var resp ProgressResponse
	body := map[string]any{"id": id, "progress": progress}
	err := c.do(ctx, http.MethodPatch, "/watchlist/progress", body, &resp)
	return resp, err
}

// UpdateRating sets the user rating; nil clears it.
func (c *Client) UpdateRating(ctx context.Context, id int64, rating *int) error {
	body := map[string]any{"id": id, "user_rating": rating}
	return c.do(ctx, http.MethodPatch, "/watchlist/rating", body, nil)
}

func (c *Client) Random(ctx context.Context, mediaType string) (*media.Record, error) {
	path := "/random"
	if mediaType != "" {
		path += "?type=" + url.QueryEscape(mediaType)
	}

	var resp struct {
		Item *media.Record `json:"item"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		}
		apiErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
