package health

import "errors"

var (
	// ErrCheckTimeout marks a check that did not finish within the run timeout.
	ErrCheckTimeout = errors.New("health: check timed out")
)
