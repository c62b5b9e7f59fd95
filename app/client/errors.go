package client

import "fmt"

// APIError is a non-2xx answer from the watchlist service.
type APIError struct {
	Status     int
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watchlist api: %d %s", e.Status, e.Message)
}
