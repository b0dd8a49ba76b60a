package classifier

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is the coarse class of a classification failure.
type Category string

const (
	// Transient failures may succeed on a later attempt: timeouts, transport
	// errors, rate limiting, server errors.
	Transient Category = "transient"
	// Permanent failures will repeat: rejected requests, malformed output.
	Permanent Category = "permanent"
)

var (
	ErrMissingAPIKey = errors.New("missing provider api key")
	ErrEmptyResponse = errors.New("empty model response")
)

// Error is a categorized classification failure.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a transient failure.
func NewTransient(err error) error {
	return &Error{Category: Transient, Err: err}
}

// NewPermanent wraps err as a permanent failure.
func NewPermanent(err error) error {
	return &Error{Category: Permanent, Err: err}
}

// CategoryOf classifies err. Uncategorized errors are treated as transient so
// a retry-errors resume picks them up.
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return Transient
}

// FromStatus categorizes an HTTP status returned by a provider.
func FromStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return NewTransient(err)
	}
	return NewPermanent(err)
}

// fromTransport categorizes an error that carries no HTTP status: timeouts,
// cancellation, and connection failures are all transient.
func fromTransport(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return NewTransient(err)
}
