package device

import (
	"fmt"

	"github.com/opd-ai/dctdenoise/transform"
)

// WeightEpsilon is the smallest divisor Normalize divides by. Pixels whose
// divisor is at or below it received no contribution and keep their
// pre-filter sample.
const WeightEpsilon = 1e-6

// MaxUnsharpTaps bounds the unsharp kernel length.
const MaxUnsharpTaps = 16

// NormalizeMode selects how Normalize turns accumulated sums into samples.
type NormalizeMode int

const (
	// Uniform divides by a divisor map fixed at plane allocation.
	Uniform NormalizeMode = iota
	// Weighted divides by the weight map accumulated alongside the sums.
	Weighted
)

// String returns the mode name.
func (m NormalizeMode) String() string {
	switch m {
	case Uniform:
		return "uniform"
	case Weighted:
		return "weighted"
	default:
		return fmt.Sprintf("NormalizeMode(%d)", int(m))
	}
}

// PlaneSpec describes the device storage of one plane.
type PlaneSpec struct {
	Label     string
	Width     int
	Height    int
	PatchSize int
	Mode      NormalizeMode

	// Divisors is the per-pixel coverage count used by Uniform mode. It is
	// uploaded once and never changes.
	Divisors []float32

	// UnsharpTaps is the normalized 1D unsharp kernel bound to the plane.
	// Empty when the plane has no unsharp stage.
	UnsharpTaps []float32
}

// Samples returns Width*Height.
func (s PlaneSpec) Samples() int {
	return s.Width * s.Height
}

// Validate checks that the specification can be allocated.
func (s PlaneSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: plane %s is %dx%d", ErrInvalidPlane, s.Label, s.Width, s.Height)
	}
	if s.PatchSize < 2 || s.PatchSize > transform.MaxSize {
		return fmt.Errorf("%w: plane %s patch size %d", ErrInvalidPlane, s.Label, s.PatchSize)
	}
	switch s.Mode {
	case Uniform:
		if len(s.Divisors) != s.Samples() {
			return fmt.Errorf("%w: plane %s has %d divisors for %d samples",
				ErrInvalidPlane, s.Label, len(s.Divisors), s.Samples())
		}
	case Weighted:
	default:
		return fmt.Errorf("%w: plane %s normalize mode %v", ErrInvalidPlane, s.Label, s.Mode)
	}
	if n := len(s.UnsharpTaps); n > 0 && (n%2 == 0 || n > MaxUnsharpTaps) {
		return fmt.Errorf("%w: plane %s unsharp kernel has %d taps", ErrInvalidPlane, s.Label, n)
	}
	return nil
}

// PatchDispatch describes one tiling pass: a RegionW x RegionH grid of
// PatchSize patches whose top-left corner is (OffsetX, OffsetY).
type PatchDispatch struct {
	OffsetX   int
	OffsetY   int
	RegionW   int
	RegionH   int
	Threshold float32
}

// Check validates the dispatch against a plane.
func (d PatchDispatch) Check(spec PlaneSpec) error {
	p := spec.PatchSize
	switch {
	case d.OffsetX < 0 || d.OffsetY < 0:
		return fmt.Errorf("negative offset (%d,%d)", d.OffsetX, d.OffsetY)
	case d.RegionW <= 0 || d.RegionH <= 0:
		return fmt.Errorf("empty region %dx%d", d.RegionW, d.RegionH)
	case d.RegionW%p != 0 || d.RegionH%p != 0:
		return fmt.Errorf("region %dx%d is not a multiple of patch size %d", d.RegionW, d.RegionH, p)
	case d.OffsetX+d.RegionW > spec.Width || d.OffsetY+d.RegionH > spec.Height:
		return fmt.Errorf("region %dx%d at (%d,%d) exceeds plane %dx%d",
			d.RegionW, d.RegionH, d.OffsetX, d.OffsetY, spec.Width, spec.Height)
	}
	return nil
}

// Plane is a handle to device-resident plane storage.
type Plane interface {
	Spec() PlaneSpec
}

// Stats reports device resource usage.
type Stats struct {
	Planes         int
	AllocatedBytes int64
	Dispatches     uint64
}

// Device executes the kernel catalog. Implementations are driven by a single
// host goroutine; every method returns only after the device work is done.
type Device interface {
	// Name describes the backend and the hardware it runs on.
	Name() string
	// NewPlane allocates storage for one plane. Called once per plane at startup.
	NewPlane(spec PlaneSpec) (Plane, error)
	// Upload copies little-endian 16-bit samples into the plane image.
	Upload(p Plane, samples []byte) error
	// Clear zeroes the accumulation buffer, and the weight map in Weighted mode.
	Clear(p Plane) error
	// DispatchPatches runs the transform over one tiling and adds the results
	// into the accumulators.
	DispatchPatches(p Plane, d PatchDispatch) error
	// Normalize writes accumulation/divisor back into the plane image.
	Normalize(p Plane) error
	// Unsharp sharpens the plane image in place with the bound taps.
	Unsharp(p Plane, amount float32) error
	// Download copies the plane image out as little-endian 16-bit samples.
	Download(p Plane, samples []byte) error
	// Stats reports allocations and dispatch counts.
	Stats() Stats
	// Close releases every plane and the device itself.
	Close() error
}
