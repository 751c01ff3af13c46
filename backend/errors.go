package backend

import (
	"errors"
	"fmt"
)

// ErrRequestFailed classifies every backend failure: transport errors,
// non-2xx statuses, and in-band error codes.
var ErrRequestFailed = errors.New("backend request failed")

// APIError is an in-band error code returned by the backend in an otherwise
// well-formed response.
type APIError struct {
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned error code %s", e.Code)
}

// Unwrap lets errors.Is(err, ErrRequestFailed) classify API errors too.
func (e *APIError) Unwrap() error { return ErrRequestFailed }
