package trader

import (
	"errors"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"
	"signal-relay-go/internal/lock"
)

// Client-facing messages for failures raised before any venue is called.
const (
	MessageConfiguration = "Server configuration error"
	MessageValidation    = "Missing required data"
	MessageBusy          = "Another signal for this instrument is in progress"
	MessageJournal       = "Failed to handle webhook"
)

// Category names the failure class of err for logs.
func Category(err error) string {
	switch {
	case errors.Is(err, config.ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, lock.ErrNotAcquired):
		return "busy"
	default:
		return string(exchange.KindOf(err))
	}
}

// ErrorMessage is the text returned to the caller for err. Venue details stay in the logs.
func ErrorMessage(err error) string {
	switch Category(err) {
	case "configuration":
		return MessageConfiguration
	case "validation":
		return MessageValidation
	case "busy":
		return MessageBusy
	default:
		return exchange.KindOf(err).Message()
	}
}
