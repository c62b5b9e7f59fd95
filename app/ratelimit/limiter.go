package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lysyi3m/watchlist/app/database"
	"github.com/lysyi3m/watchlist/app/metrics"
)

const DefaultWindow = 60 * time.Second

// Decision is the outcome of a cooldown check. RetryAfter is whole seconds
// and only set when the identifier is denied.
type Decision struct {
	Allowed    bool
	RetryAfter int
}

// Limiter gates an action to once per window per identifier. The check and
// the later Record are separate steps, so concurrent callers with the same
// identifier can all pass before any of them records.
type Limiter struct {
	repo   database.RateLimitRepository
	window time.Duration
	now    func() time.Time
}

func NewLimiter(repo database.RateLimitRepository, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{repo: repo, window: window, now: time.Now}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) Check(ctx context.Context, identifier string) (Decision, error) {
	last, err := l.repo.GetLastAdded(ctx, identifier)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check cooldown: %w", err)
	}

	if last != nil {
		elapsed := l.now().Sub(*last)
		if elapsed < l.window {
			metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
			return Decision{RetryAfter: retryAfterSeconds(l.window - elapsed)}, nil
		}
	}

	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return Decision{Allowed: true}, nil
}

// Record stores now as the identifier's last action. Failures are logged and
// swallowed: the guarded action has already happened.
func (l *Limiter) Record(ctx context.Context, identifier string) {
	if err := l.repo.SetLastAdded(ctx, identifier, l.now()); err != nil {
		slog.Warn("Failed to record rate limit timestamp", "identifier", identifier, "error", err)
	}
}

// Prune drops entries whose cooldown has long expired.
func (l *Limiter) Prune(ctx context.Context) (int64, error) {
	return l.repo.DeleteOlderThan(ctx, l.now().Add(-l.window))
}

func retryAfterSeconds(remaining time.Duration) int {
	return int(math.Ceil(remaining.Seconds()))
}
