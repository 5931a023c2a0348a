package route

import "errors"

var (
	// ErrInvalidPath is returned by Normalize and Resolve for request paths
	// that cannot be canonicalized (NUL bytes, backslashes, bad escapes).
	ErrInvalidPath = errors.New("invalid request path")

	// ErrInvalidKey is returned when a logical path cannot be turned into a
	// route key, for example because it contains an empty segment.
	ErrInvalidKey = errors.New("invalid route key")

	// ErrAmbiguousRoute is returned by Build when two logical paths claim the
	// same terminal, or when parameter segments conflict at one node.
	ErrAmbiguousRoute = errors.New("ambiguous route")
)
