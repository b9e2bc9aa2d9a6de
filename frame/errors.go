package frame

import "errors"

var (
	// ErrInvalidGeometry indicates frame dimensions that cannot describe a 4:2:0 frame.
	ErrInvalidGeometry = errors.New("invalid frame geometry")

	// ErrInvalidRing indicates a ring capacity or slot size that cannot be allocated.
	ErrInvalidRing = errors.New("invalid frame ring")

	// ErrPlaneSize indicates a sample buffer whose length does not match its plane.
	ErrPlaneSize = errors.New("plane buffer size mismatch")
)
