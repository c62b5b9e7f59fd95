package catalog

import (
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lysyi3m/watchlist/app/metrics"
)

// newBreaker opens after 5 consecutive upstream failures and probes again
// after 30 seconds. Callers still see every failure immediately; nothing here
// retries.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CatalogBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Catalog circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CatalogBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
