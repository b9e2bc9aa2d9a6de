package dctdenoise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/denoise"
	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/frame"
	"github.com/opd-ai/dctdenoise/stream"
)

// Config configures a Denoiser.
type Config struct {
	// ChromaWidth and ChromaHeight are the chroma plane dimensions; luma is
	// twice as large in each direction.
	ChromaWidth  int
	ChromaHeight int

	// Threshold is the hard threshold applied to transform coefficients.
	Threshold float32

	// Preset selects "dense" or "sparse" filtering.
	Preset string

	// Sharpen enables the unsharp dispatch of presets that carry one.
	Sharpen bool

	// Device names the compute backend. Backends other than "cpu" must be
	// linked in by importing their package.
	Device string

	// Transform, Workers and KernelPath are passed to the backend.
	Transform  string
	Workers    int
	KernelPath string

	// Pace is the delay after each filtered frame.
	Pace time.Duration

	// Strict makes a truncated final frame an error.
	Strict bool

	// Clock drives pacing and statistics; nil uses the system clock.
	Clock stream.Clock
}

// DefaultConfig returns the dense cpu configuration for the given geometry
// and threshold.
func DefaultConfig(chromaWidth, chromaHeight int, threshold float32) Config {
	return Config{
		ChromaWidth:  chromaWidth,
		ChromaHeight: chromaHeight,
		Threshold:    threshold,
		Preset:       "dense",
		Device:       "cpu",
		Transform:    device.DefaultTransform,
		Pace:         stream.DefaultPace,
	}
}

// Denoiser owns the compute device, the frame filter and the stream pipeline.
type Denoiser struct {
	cfg      Config
	geom     frame.Geometry
	dev      device.Device
	filter   *denoise.FrameFilter
	pipeline *stream.Pipeline
}

// New opens the device and allocates every buffer the run needs.
func New(cfg Config) (*Denoiser, error) {
	geom, err := frame.NewGeometry(cfg.ChromaWidth, cfg.ChromaHeight)
	if err != nil {
		return nil, err
	}
	filterCfg, err := denoise.Preset(cfg.Preset, cfg.Threshold)
	if err != nil {
		return nil, err
	}
	if cfg.Sharpen && filterCfg.Unsharp != nil {
		filterCfg.Unsharp.Enabled = true
	}
	if err := filterCfg.Validate(); err != nil {
		return nil, err
	}

	dev, err := device.Open(cfg.Device, device.Options{
		Transform:  cfg.Transform,
		Workers:    cfg.Workers,
		KernelPath: cfg.KernelPath,
	})
	if err != nil {
		return nil, err
	}

	filter, err := denoise.NewFrameFilter(dev, geom, filterCfg)
	if err != nil {
		return nil, errors.Join(err, dev.Close())
	}

	pipeline, err := stream.NewPipeline(filter, stream.Config{
		FrameSize: geom.FrameSize(),
		Pace:      cfg.Pace,
		Strict:    cfg.Strict,
		Clock:     cfg.Clock,
	})
	if err != nil {
		return nil, errors.Join(err, dev.Close())
	}

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"geometry":   geom.String(),
		"frame_size": geom.FrameSize(),
		"threshold":  cfg.Threshold,
		"preset":     cfg.Preset,
		"device":     dev.Name(),
	}).Info("Denoiser initialized")

	return &Denoiser{cfg: cfg, geom: geom, dev: dev, filter: filter, pipeline: pipeline}, nil
}

// Geometry returns the frame geometry.
func (d *Denoiser) Geometry() frame.Geometry { return d.geom }

// Device returns the compute device.
func (d *Denoiser) Device() device.Device { return d.dev }

// Filter denoises one frame in place.
func (d *Denoiser) Filter(buf []byte) error { return d.filter.Filter(buf) }

// Run filters every frame of r into w.
func (d *Denoiser) Run(ctx context.Context, r io.Reader, w io.Writer) (stream.Stats, error) {
	stats, err := d.pipeline.Run(ctx, r, w)
	if err != nil {
		return stats, fmt.Errorf("denoise stream: %w", err)
	}
	return stats, nil
}

// Close releases the device.
func (d *Denoiser) Close() error { return d.dev.Close() }
