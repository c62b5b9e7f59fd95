package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/watchlist/app/media"
)

// State is the client-side view of the watchlist: a list cache that is
// refreshed after local mutations and on remote change events, plus
// optimistic editors for progress and rating.
type State struct {
	api   *Client
	cache *ListCache
}

func NewState(api *Client) *State {
	return &State{api: api, cache: NewListCache(api)}
}

func (s *State) List(ctx context.Context, q Query) ([]media.Record, error) {
	return s.cache.Get(ctx, q)
}

func (s *State) Cache() *ListCache {
	return s.cache
}

func (s *State) Add(ctx context.Context, id int64) (*media.Record, error) {
	item, err := s.api.Add(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	return item, nil
}

func (s *State) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// SetProgress clamps p with the same bounds as the service, applies it to
// item right away and then submits it. On failure the local value is kept and
// the error returned for display.
func (s *State) SetProgress(ctx context.Context, item *media.Record, p int) error {
	item.Progress = media.ClampProgress(p, item.Total())

	resp, err := s.api.UpdateProgress(ctx, item.ID, item.Progress)
	if err != nil {
		return err
	}

	switch {
	case resp.Item != nil:
		item.Progress = resp.Item.Progress
	case resp.Progress != nil:
		item.Progress = *resp.Progress
	}
	s.cache.Invalidate()
	return nil
}

// SetRating applies and submits a user rating; nil clears it. Out of range
// values are clamped before submission.
func (s *State) SetRating(ctx context.Context, item *media.Record, rating *int) error {
	if rating != nil {
		clamped := media.ClampRating(*rating)
		rating = &clamped
	}
	item.UserRating = rating

	if err := s.api.UpdateRating(ctx, item.ID, rating); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// Watch invalidates the cache on remote changes until ctx is done. onChange,
// if set, runs after each invalidation.
func (s *State) Watch(ctx context.Context, wsURL string, debounce time.Duration, onChange func()) error {
	return Subscribe(ctx, wsURL, debounce, func() {
		slog.Debug("Remote change received, invalidating list cache")
		s.cache.Invalidate()
		if onChange != nil {
			onChange()
		}
	})
}
