package denoise

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/device"
)

// Offset is the top-left corner of one tiling of the plane.
type Offset struct {
	X int
	Y int
}

// Offsets enumerates the tiling offsets of patch size p and stride s in
// row-major order: every (x, y) in [0, p) on the stride grid.
func Offsets(p, s int) []Offset {
	if p <= 0 || s <= 0 {
		return nil
	}
	per := (p + s - 1) / s
	out := make([]Offset, 0, per*per)
	for y := 0; y < p; y += s {
		for x := 0; x < p; x += s {
			out = append(out, Offset{X: x, Y: y})
		}
	}
	return out
}

// TrimmedRegion returns the largest multiple of p that fits in the plane
// past the offset, in each dimension. Either result may be zero.
func TrimmedRegion(w, h int, off Offset, p int) (int, int) {
	return trim(w, off.X, p), trim(h, off.Y, p)
}

func trim(n, off, p int) int {
	if off >= n {
		return 0
	}
	return (n - off) / p * p
}

// Coverage returns the number of tiling passes that include each pixel of a
// w x h plane. Offsets form a grid, so the count is the product of the row
// and column counts.
func Coverage(w, h, p, s int) []float32 {
	cols := coverage1D(w, p, s)
	rows := coverage1D(h, p, s)
	out := make([]float32, w*h)
	for y, ry := range rows {
		if ry == 0 {
			continue
		}
		row := out[y*w : (y+1)*w]
		for x, cx := range cols {
			row[x] = float32(ry * cx)
		}
	}
	return out
}

func coverage1D(n, p, s int) []int {
	counts := make([]int, n)
	for off := 0; off < p; off += s {
		end := off + trim(n, off, p)
		for i := off; i < end; i++ {
			counts[i]++
		}
	}
	return counts
}

// Scheduler issues one patch dispatch per non-empty tiling offset.
type Scheduler struct {
	dev     device.Device
	patch   int
	stride  int
	offsets []Offset
}

// NewScheduler enumerates the offsets of patch size p and stride s once.
func NewScheduler(dev device.Device, p, s int) (*Scheduler, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidConfig)
	}
	if p < 2 || s < 1 || s > p {
		return nil, fmt.Errorf("%w: patch size %d stride %d", ErrInvalidConfig, p, s)
	}
	return &Scheduler{
		dev:     dev,
		patch:   p,
		stride:  s,
		offsets: Offsets(p, s),
	}, nil
}

// Offsets returns the enumerated offsets.
func (s *Scheduler) Offsets() []Offset { return s.offsets }

// PatchSize returns P.
func (s *Scheduler) PatchSize() int { return s.patch }

// Stride returns S.
func (s *Scheduler) Stride() int { return s.stride }

// Run dispatches every non-empty tiling of the plane, stopping at the first
// failure. It returns the number of dispatches issued.
func (s *Scheduler) Run(p device.Plane, threshold float32) (int, error) {
	spec := p.Spec()
	issued := 0
	for _, off := range s.offsets {
		rw, rh := TrimmedRegion(spec.Width, spec.Height, off, s.patch)
		if rw == 0 || rh == 0 {
			continue
		}
		err := s.dev.DispatchPatches(p, device.PatchDispatch{
			OffsetX:   off.X,
			OffsetY:   off.Y,
			RegionW:   rw,
			RegionH:   rh,
			Threshold: threshold,
		})
		if err != nil {
			return issued, asDispatchError(err, spec.Label, off)
		}
		issued++
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Scheduler.Run",
		"plane":      spec.Label,
		"dispatches": issued,
	}).Debug("Tiling passes complete")

	return issued, nil
}

func asDispatchError(err error, plane string, off Offset) error {
	var de *device.DispatchError
	if errors.As(err, &de) {
		return err
	}
	return &device.DispatchError{
		Op: device.OpPatches, Plane: plane,
		OffsetX: off.X, OffsetY: off.Y,
		Status: device.StatusExecFailure, Err: err,
	}
}
