package denoise

import (
	"fmt"
	"math"

	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/transform"
)

// Preset patch geometry.
const (
	DensePatchSize  = 8
	DenseStride     = 1
	SparsePatchSize = 16
	SparseStride    = 4
)

// Unsharp defaults of the dense preset.
const (
	DefaultUnsharpDiameter = 3.0
	UnsharpAmountScale     = 100
)

// UnsharpConfig holds the luma unsharp stage.
type UnsharpConfig struct {
	// Diameter sets the kernel width; the tap count is int(Diameter)|1.
	Diameter float64
	// Amount scales the difference between the sample and its blur.
	Amount float32
	// Enabled turns the dispatch on. The kernel is built and bound to the
	// planes either way.
	Enabled bool
}

// Config holds the parameters of one filter instance.
type Config struct {
	PatchSize int
	Stride    int
	Mode      device.NormalizeMode
	Threshold float32
	// Unsharp is nil when the configuration has no unsharp stage.
	Unsharp *UnsharpConfig
}

// DenseConfig returns the dense preset: 8x8 patches on every offset,
// uniform normalization and an unsharp stage of amount threshold*100.
func DenseConfig(threshold float32) Config {
	return Config{
		PatchSize: DensePatchSize,
		Stride:    DenseStride,
		Mode:      device.Uniform,
		Threshold: threshold,
		Unsharp: &UnsharpConfig{
			Diameter: DefaultUnsharpDiameter,
			Amount:   threshold * UnsharpAmountScale,
		},
	}
}

// SparseConfig returns the sparse preset: 16x16 patches on a stride of 4
// with weighted normalization and no unsharp stage.
func SparseConfig(threshold float32) Config {
	return Config{
		PatchSize: SparsePatchSize,
		Stride:    SparseStride,
		Mode:      device.Weighted,
		Threshold: threshold,
	}
}

// Preset resolves a preset by name.
func Preset(name string, threshold float32) (Config, error) {
	switch name {
	case "dense":
		return DenseConfig(threshold), nil
	case "sparse":
		return SparseConfig(threshold), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q (available: dense, sparse)", ErrInvalidConfig, name)
	}
}

// SharpenAmount returns the luma sharpen amount passed per frame, zero when
// the unsharp stage is absent or disabled.
func (c Config) SharpenAmount() float32 {
	if c.Unsharp == nil || !c.Unsharp.Enabled {
		return 0
	}
	return c.Unsharp.Amount
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PatchSize < 2 || c.PatchSize > transform.MaxSize {
		return fmt.Errorf("%w: patch size %d (must be within 2..%d)", ErrInvalidConfig, c.PatchSize, transform.MaxSize)
	}
	if c.Stride < 1 || c.Stride > c.PatchSize {
		return fmt.Errorf("%w: stride %d (must be within 1..%d)", ErrInvalidConfig, c.Stride, c.PatchSize)
	}
	if c.Mode != device.Uniform && c.Mode != device.Weighted {
		return fmt.Errorf("%w: normalize mode %v", ErrInvalidConfig, c.Mode)
	}
	if !finite(c.Threshold) || c.Threshold < 0 {
		return fmt.Errorf("%w: threshold %v", ErrInvalidConfig, c.Threshold)
	}
	if u := c.Unsharp; u != nil {
		if !(u.Diameter >= 1) || int(u.Diameter)|1 > device.MaxUnsharpTaps {
			return fmt.Errorf("%w: unsharp diameter %v", ErrInvalidConfig, u.Diameter)
		}
		if !finite(u.Amount) {
			return fmt.Errorf("%w: unsharp amount %v", ErrInvalidConfig, u.Amount)
		}
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
