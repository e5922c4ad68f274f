package card

import "errors"

var (
	// ErrOutputNotWritable indicates the output folder cannot hold job artifacts.
	ErrOutputNotWritable = errors.New("card: output folder is not writable")

	// ErrBadTemplate indicates a per-job path template without exactly one %d.
	ErrBadTemplate = errors.New("card: path template must contain exactly one %d")

	// ErrBadPoint indicates a parameter point of the wrong length.
	ErrBadPoint = errors.New("card: invalid parameter point")

	// ErrUnknownNetwork indicates a reaction network name that is not supported.
	ErrUnknownNetwork = errors.New("card: unknown reaction network")

	// ErrUnknownNuclide indicates a stored nuclide that the simulator does not track.
	ErrUnknownNuclide = errors.New("card: unknown nuclide")

	// ErrBadRate indicates a rate override outside the network or correction range.
	ErrBadRate = errors.New("card: invalid rate override")
)
