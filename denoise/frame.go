package denoise

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/frame"
)

// FrameFilter filters the Y, U and V planes of a frame in that order. The
// planes share one scheduler and reconstructor.
type FrameFilter struct {
	geom    frame.Geometry
	cfg     Config
	dev     device.Device
	planes  [3]*PlaneFilter
	layouts [3]frame.Layout
	frames  uint64
}

// NewFrameFilter validates the configuration and allocates every plane on dev.
func NewFrameFilter(dev device.Device, geom frame.Geometry, cfg Config) (*FrameFilter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sched, err := NewScheduler(dev, cfg.PatchSize, cfg.Stride)
	if err != nil {
		return nil, err
	}
	recon := NewReconstructor(dev, cfg.Mode, sched)
	unsharp := NewUnsharp(dev, cfg.Unsharp)

	f := &FrameFilter{geom: geom, cfg: cfg, dev: dev, layouts: geom.Planes()}
	for i, layout := range f.layouts {
		pf, err := NewPlaneFilter(dev, layout, sched, recon, unsharp)
		if err != nil {
			return nil, err
		}
		f.planes[i] = pf
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewFrameFilter",
		"geometry":   geom.String(),
		"patch_size": cfg.PatchSize,
		"stride":     cfg.Stride,
		"mode":       cfg.Mode.String(),
		"threshold":  cfg.Threshold,
		"sharpen":    cfg.SharpenAmount(),
		"offsets":    len(sched.Offsets()),
	}).Info("Frame filter ready")

	return f, nil
}

// Geometry returns the frame geometry.
func (f *FrameFilter) Geometry() frame.Geometry { return f.geom }

// Config returns the configuration.
func (f *FrameFilter) Config() Config { return f.cfg }

// Plane returns the filter of one plane.
func (f *FrameFilter) Plane(kind frame.PlaneKind) *PlaneFilter { return f.planes[kind] }

// OnTransition installs obs on every plane filter.
func (f *FrameFilter) OnTransition(obs Observer) {
	for _, p := range f.planes {
		p.OnTransition(obs)
	}
}

// Filter denoises the frame in place. Luma receives the configured sharpen
// amount and chroma zero.
func (f *FrameFilter) Filter(buf []byte) error {
	if len(buf) != f.geom.FrameSize() {
		return fmt.Errorf("%w: %d bytes for %s", ErrFrameSize, len(buf), f.geom)
	}
	for i, pf := range f.planes {
		amount := float32(0)
		if f.layouts[i].Kind == frame.Luma {
			amount = f.cfg.SharpenAmount()
		}
		if err := pf.Run(f.layouts[i].Slice(buf), f.cfg.Threshold, amount); err != nil {
			return fmt.Errorf("frame %d: %w", f.frames, err)
		}
	}
	f.frames++
	return nil
}
