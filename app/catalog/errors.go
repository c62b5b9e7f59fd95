package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrMediaNotFound = errors.New("media not found")

// FetchError is returned for any non-success answer from the catalog service.
type FetchError struct {
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog error: %d %s", e.Status, e.Body)
}

func isNotFound(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Status == http.StatusNotFound
}

// abortedError marks a request that ended on the caller's side: its context
// was cancelled or expired, or the request budget could not be met in time.
type abortedError struct {
	err error
}

func (e *abortedError) Error() string {
	return e.err.Error()
}

func (e *abortedError) Unwrap() error {
	return e.err
}

func isAborted(err error) bool {
	var aborted *abortedError
	return errors.As(err, &aborted)
}

// countsAsFailure decides whether an error should move the circuit breaker.
// Answers the catalog gave on purpose (4xx other than 429) do not, and neither
// do requests the caller gave up on.
func countsAsFailure(err error) bool {
	if err == nil || isAborted(err) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Status >= 500 || fetchErr.Status == http.StatusTooManyRequests
	}
	return true
}
