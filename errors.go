package meetsync

import "errors"

var (
	// ErrNoActiveSession is returned by operations that require a joined
	// meeting session when none exists.
	ErrNoActiveSession = errors.New("no active meeting session")

	// ErrInvalidPhase is returned when an operation is not legal in the
	// session's current lifecycle phase.
	ErrInvalidPhase = errors.New("operation not valid in current phase")

	// ErrNilConfig is returned by New when no configuration is supplied.
	ErrNilConfig = errors.New("configuration is required")

	// ErrNilBackend is returned by New when no backend client is supplied.
	ErrNilBackend = errors.New("backend client is required")

	// ErrNilTransportFactory is returned by New when no transport factory
	// is supplied.
	ErrNilTransportFactory = errors.New("transport factory is required")
)
