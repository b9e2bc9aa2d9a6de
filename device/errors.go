package device

import (
	"errors"
	"fmt"
)

// Setup errors.
var (
	// ErrNoBackend indicates that no backend is registered under the requested name.
	ErrNoBackend = errors.New("no compute backend")

	// ErrNoAdapter indicates that the backend found no eligible device.
	ErrNoAdapter = errors.New("no eligible compute device")

	// ErrCompile indicates that the kernel catalog could not be compiled or resolved.
	ErrCompile = errors.New("kernel catalog compilation failed")

	// ErrInvalidPlane indicates a plane specification the device cannot allocate.
	ErrInvalidPlane = errors.New("invalid plane specification")

	// ErrClosed indicates use of a device after Close.
	ErrClosed = errors.New("device closed")
)

// Operation names used in DispatchError.
const (
	OpUpload    = "upload"
	OpClear     = "clear"
	OpPatches   = "dct_denoise"
	OpNormalize = "normalize"
	OpUnsharp   = "unsharp"
	OpDownload  = "download"
)

// Status is the failure code of a device operation.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidValue
	StatusInvalidPlane
	StatusInvalidWorkSize
	StatusInvalidBufferSize
	StatusOutOfResources
	StatusExecFailure
	StatusTransferFailure
	StatusDeviceLost
	StatusClosed
)

var statusText = map[Status]string{
	StatusOK:                "success",
	StatusInvalidValue:      "invalid argument value",
	StatusInvalidPlane:      "plane does not belong to this device",
	StatusInvalidWorkSize:   "invalid global work size",
	StatusInvalidBufferSize: "host buffer size does not match plane",
	StatusOutOfResources:    "out of device resources",
	StatusExecFailure:       "kernel execution failed",
	StatusTransferFailure:   "host/device transfer failed",
	StatusDeviceLost:        "device lost or timed out",
	StatusClosed:            "device closed",
}

// String decodes the status into a human-readable message.
func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("unknown device status %d", int(s))
}

// DispatchError reports the failure of one device operation.
type DispatchError struct {
	Op      string
	Plane   string
	OffsetX int
	OffsetY int
	Status  Status
	Err     error
}

// Error implements error.
func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s on plane %s", e.Op, e.Plane)
	if e.Op == OpPatches {
		msg += fmt.Sprintf(" at offset (%d,%d)", e.OffsetX, e.OffsetY)
	}
	msg += ": " + e.Status.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error { return e.Err }

func opError(op, plane string, status Status, err error) *DispatchError {
	return &DispatchError{Op: op, Plane: plane, Status: status, Err: err}
}
