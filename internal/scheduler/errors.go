package scheduler

import "errors"

// Sentinel errors for the scheduler package.
var (
	ErrInvalidRecord = errors.New("scheduler: invalid record")
	ErrInvalidRating = errors.New("scheduler: invalid rating")
)
