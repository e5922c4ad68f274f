package batch

import "errors"

var (
	// ErrNotIdle is returned by Start while another batch is in flight or
	// a finished one was not reset.
	ErrNotIdle = errors.New("batch: controller is not idle")

	// ErrBusy is returned by Reset while a batch is preparing or running.
	ErrBusy = errors.New("batch: batch in progress")

	// ErrInvalidTransition indicates a phase change the lifecycle forbids.
	ErrInvalidTransition = errors.New("batch: invalid phase transition")

	// ErrNoGrid indicates a batch started without parameter grids or card settings.
	ErrNoGrid = errors.New("batch: missing grid or card settings")
)
