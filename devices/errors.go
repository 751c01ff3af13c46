package devices

import (
	"errors"
	"fmt"

	"github.com/opd-ai/meetsync/media"
)

// ErrNilTransport indicates the negotiator was constructed without a
// transport.
var ErrNilTransport = errors.New("transport cannot be nil")

// SelectionError reports that the transport rejected a device choice. The
// stored selection is unchanged; the caller may retry with another device.
type SelectionError struct {
	Class media.DeviceClass
	Cause error
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s selection failed: %v", e.Class, e.Cause)
}

// Unwrap exposes the transport's error for errors.Is/As.
func (e *SelectionError) Unwrap() error { return e.Cause }
