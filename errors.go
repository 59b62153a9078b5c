package pxl

import "github.com/pkg/errors"

// Error categories. Functions wrap these with context, so compare with
// errors.Is rather than by equality.
var (
	// ErrInvalidConfiguration is returned when a configuration, resolution or
	// palette is malformed. It is reported when the value is supplied, never
	// while resolving.
	ErrInvalidConfiguration = errors.New("pxl: invalid configuration")

	// ErrOutOfBounds is returned by the checked surface accessors when a
	// texel lies outside the surface. The regular accessors clip silently.
	ErrOutOfBounds = errors.New("pxl: out of bounds")

	// ErrUninitialized is returned when a resolve is attempted before the
	// palette or the index surface has been established.
	ErrUninitialized = errors.New("pxl: uninitialized resource")

	// ErrColorNotInPalette is returned by strict indexing when an opaque
	// pixel has no exact palette entry.
	ErrColorNotInPalette = errors.New("pxl: color not in palette")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, format, args...)
}
