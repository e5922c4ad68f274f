package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutableMissing indicates the simulator could not be found or built.
	ErrExecutableMissing = errors.New("runner: simulator executable missing")

	// ErrCancelled indicates the job was killed because its context was cancelled.
	ErrCancelled = errors.New("runner: job cancelled")
)

// SpawnError reports a job whose process could not be started.
type SpawnError struct {
	ID  int
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("runner: job %d could not be started: %v", e.ID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
