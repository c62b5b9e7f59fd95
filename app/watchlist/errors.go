package watchlist

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindRateLimited
	KindUpstream
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_failure"
	case KindStore:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Error is what every service operation returns on failure. Message is safe
// to show to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func badRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func rateLimited(retryAfter int) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Rate limited. Try again in %ds", retryAfter),
		RetryAfter: retryAfter,
	}
}

// upstreamFailure and storeFailure surface the cause text, as the caller has
// nothing better to show.
func upstreamFailure(err error) *Error {
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}

func storeFailure(err error) *Error {
	return &Error{Kind: KindStore, Message: err.Error(), Err: err}
}
