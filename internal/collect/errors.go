package collect

import "errors"

var (
	// ErrEmptyArtifact indicates an output artifact with a header but no data.
	ErrEmptyArtifact = errors.New("collect: artifact has no data")

	// ErrShortRow indicates a summary row with fewer values than its header declares.
	ErrShortRow = errors.New("collect: summary row shorter than its header")

	// ErrBadNumber indicates a token that stays unparseable after normalization.
	ErrBadNumber = errors.New("collect: unparseable number")
)
