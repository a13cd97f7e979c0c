package driver

import "errors"

var (
	ErrNotLeader = errors.New("not leader")

	ErrNoLeader = errors.New("no leader")

	ErrShuttingDown = errors.New("shutting down")

	// ErrOverloaded is returned when too many proposals are awaiting
	// commitment; callers should retry later.
	ErrOverloaded = errors.New("too many proposals in flight")
)
