package seed

import "errors"

var (
	// ErrJobNotFound is returned by JobStore.Get for an unknown job id.
	ErrJobNotFound = errors.New("seed: job not found")
)
