package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind tags an upstream failure so callers never inspect SDK error types.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindExchange       Kind = "exchange"
	KindAuthentication Kind = "authentication"
	KindNotAvailable   Kind = "not_available"
	KindNotLoaded      Kind = "not_loaded"
	KindUnknown        Kind = "unknown"
)

// Message is the client-facing text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindNetwork:
		return "Network error occurred"
	case KindExchange:
		return "Exchange error occurred"
	case KindAuthentication:
		return "Authentication error occurred"
	case KindNotAvailable:
		return "Exchange not available"
	case KindNotLoaded:
		return "Exchange not loaded"
	default:
		return "Unknown error occurred"
	}
}

// Error is returned by venue adapters for every upstream failure.
type Error struct {
	Venue string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Venue, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError tags err with venue and kind.
func NewError(venue string, kind Kind, err error) *Error {
	return &Error{Venue: venue, Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr.Kind
	}
	return KindUnknown
}

// ClassifyTransport maps an error raised before any HTTP response was read.
func ClassifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// ClassifyStatus maps an HTTP error status.
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return KindNotAvailable
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindNetwork
	case status >= http.StatusInternalServerError:
		return KindNotAvailable
	case status >= http.StatusBadRequest:
		return KindExchange
	default:
		return KindUnknown
	}
}
