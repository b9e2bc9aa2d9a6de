package denoise

import (
	"math"

	"github.com/opd-ai/dctdenoise/device"
)

// UnsharpTaps builds the normalized 1D kernel of int(diameter)|1 taps with
// c[i] = exp(-16*((i - n/2)/diameter)^2).
func UnsharpTaps(diameter float64) []float32 {
	n := int(diameter) | 1
	raw := make([]float64, n)
	var sum float64
	for i := range raw {
		dx := float64(i-n/2) / diameter
		raw[i] = math.Exp(-16 * dx * dx)
		sum += raw[i]
	}
	taps := make([]float32, n)
	for i, v := range raw {
		taps[i] = float32(v / sum)
	}
	return taps
}

// Unsharp is the post-filter stage. Its kernel is always bound to the
// planes when configured; dispatch happens only when enabled.
type Unsharp struct {
	dev     device.Device
	taps    []float32
	enabled bool
}

// NewUnsharp creates the stage, or returns nil for a configuration without one.
func NewUnsharp(dev device.Device, cfg *UnsharpConfig) *Unsharp {
	if cfg == nil {
		return nil
	}
	return &Unsharp{dev: dev, taps: UnsharpTaps(cfg.Diameter), enabled: cfg.Enabled}
}

// Taps returns the kernel bound to the planes; nil on a nil stage.
func (u *Unsharp) Taps() []float32 {
	if u == nil {
		return nil
	}
	return u.taps
}

// Active reports whether a dispatch with this amount would run.
func (u *Unsharp) Active(amount float32) bool {
	return u != nil && u.enabled && amount != 0
}

// Run sharpens the plane in place.
func (u *Unsharp) Run(p device.Plane, amount float32) error {
	return u.dev.Unsharp(p, amount)
}
