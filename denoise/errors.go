package denoise

import "errors"

var (
	// ErrInvalidConfig indicates filter parameters that cannot be run.
	ErrInvalidConfig = errors.New("invalid denoise configuration")

	// ErrFrameSize indicates a frame buffer whose length does not match the geometry.
	ErrFrameSize = errors.New("frame buffer size does not match geometry")
)
