package effects

import "errors"

// Sentinel errors for effects package operations.
var (
	// ErrNilSource indicates a transform device was created without a raw
	// video source.
	ErrNilSource = errors.New("raw video source cannot be nil")

	// ErrUnknownKind indicates an unrecognized virtual background kind.
	ErrUnknownKind = errors.New("unknown virtual background kind")
)
