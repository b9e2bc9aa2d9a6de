package stream

import "errors"

var (
	// ErrTruncatedFrame indicates input that ended inside a frame.
	ErrTruncatedFrame = errors.New("truncated final frame")

	// ErrReadFailed indicates an input error other than end of stream.
	ErrReadFailed = errors.New("read from input stream failed")

	// ErrWriteFailed indicates that a filtered frame could not be written.
	ErrWriteFailed = errors.New("write to output stream failed")

	// ErrInvalidConfig indicates pipeline parameters that cannot be run.
	ErrInvalidConfig = errors.New("invalid stream configuration")
)
