package denoise

import (
	"github.com/opd-ai/dctdenoise/device"
)

// Reconstructor turns the accumulated tiling passes into plane samples.
type Reconstructor struct {
	dev    device.Device
	mode   device.NormalizeMode
	patch  int
	stride int
}

// NewReconstructor creates a reconstructor for the tiling of a scheduler.
func NewReconstructor(dev device.Device, mode device.NormalizeMode, s *Scheduler) *Reconstructor {
	return &Reconstructor{dev: dev, mode: mode, patch: s.PatchSize(), stride: s.Stride()}
}

// Mode returns the normalization mode.
func (r *Reconstructor) Mode() device.NormalizeMode { return r.mode }

// Divisors returns the divisor map bound to a w x h plane in Uniform mode,
// and nil in Weighted mode.
func (r *Reconstructor) Divisors(w, h int) []float32 {
	if r.mode != device.Uniform {
		return nil
	}
	return Coverage(w, h, r.patch, r.stride)
}

// Run normalizes the plane in one full-plane dispatch.
func (r *Reconstructor) Run(p device.Plane) error {
	return r.dev.Normalize(p)
}
