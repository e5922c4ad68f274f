package grid

import "errors"

var (
	// ErrInvalidCount indicates a range axis with fewer than one point.
	ErrInvalidCount = errors.New("grid: number of points must be at least 1")

	// ErrAxisCount indicates a grid whose axis count does not match the set dimension.
	ErrAxisCount = errors.New("grid: wrong number of axes for grid")

	// ErrUnknownParam indicates a parameter name missing from the catalogue.
	ErrUnknownParam = errors.New("grid: unknown parameter")

	// ErrDuplicateID indicates a grid id that was already added to the set.
	ErrDuplicateID = errors.New("grid: duplicate grid id")
)
