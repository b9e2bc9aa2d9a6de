package device

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/dctdenoise/frame"
	"github.com/opd-ai/dctdenoise/transform"
)

// DefaultTransform is the cpu backend's transform when Options leaves it empty.
const DefaultTransform = "dct"

func init() {
	Register("cpu", func(opts Options) (Device, error) { return NewCPU(opts) })
}

// CPU runs the kernel catalog on the host. Patches of one tiling never
// overlap, so a dispatch fans out over patch rows and each worker
// accumulates its own rows without locking.
type CPU struct {
	workers   int
	transform string
	brand     string

	planes     int
	allocBytes int64
	dispatches atomic.Uint64
	closed     bool
}

type cpuPlane struct {
	spec    PlaneSpec
	image   []float32
	acc     []float32
	weights []float32
	tr      transform.Transform
	scratch sync.Pool
}

func (p *cpuPlane) Spec() PlaneSpec { return p.spec }

// NewCPU creates a cpu device. The transform name is resolved here so an
// unknown name fails at startup like a kernel compilation error.
func NewCPU(opts Options) (*CPU, error) {
	name := opts.Transform
	if name == "" {
		name = DefaultTransform
	}
	if _, err := transform.New(name, transform.MaxSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cpuid.CPU.LogicalCores
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewCPU",
		"cpu":       brand,
		"workers":   workers,
		"transform": name,
		"avx2":      cpuid.CPU.Supports(cpuid.AVX2),
	}).Debug("Creating cpu device")

	return &CPU{
		workers:   workers,
		transform: name,
		brand:     brand,
	}, nil
}

// Name describes the device.
func (c *CPU) Name() string {
	return fmt.Sprintf("cpu %s (%d workers, %s)", c.brand, c.workers, c.transform)
}

// Workers returns the dispatch parallelism.
func (c *CPU) Workers() int { return c.workers }

// NewPlane allocates the image, accumulation buffer and weight map.
func (c *CPU) NewPlane(spec PlaneSpec) (Plane, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	tr, err := transform.New(c.transform, spec.PatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	n := spec.Samples()
	p := &cpuPlane{
		spec:    spec,
		image:   make([]float32, n),
		acc:     make([]float32, n),
		weights: make([]float32, n),
		tr:      tr,
	}
	if spec.Mode == Uniform {
		copy(p.weights, spec.Divisors)
	}
	patchLen := spec.PatchSize * spec.PatchSize
	p.scratch.New = func() interface{} {
		buf := make([]float32, patchLen)
		return &buf
	}

	c.planes++
	c.allocBytes += int64(3*n) * 4

	logrus.WithFields(logrus.Fields{
		"function":   "CPU.NewPlane",
		"plane":      spec.Label,
		"width":      spec.Width,
		"height":     spec.Height,
		"patch_size": spec.PatchSize,
		"mode":       spec.Mode.String(),
	}).Debug("Allocated plane storage")

	return p, nil
}

func (c *CPU) plane(p Plane, op string) (*cpuPlane, error) {
	label := ""
	if p != nil {
		label = p.Spec().Label
	}
	if c.closed {
		return nil, opError(op, label, StatusClosed, ErrClosed)
	}
	cp, ok := p.(*cpuPlane)
	if !ok || cp == nil {
		return nil, opError(op, label, StatusInvalidPlane, nil)
	}
	return cp, nil
}

// Upload decodes samples into the plane image.
func (c *CPU) Upload(p Plane, samples []byte) error {
	cp, err := c.plane(p, OpUpload)
	if err != nil {
		return err
	}
	if err := frame.DecodeSamples(cp.image, samples); err != nil {
		return opError(OpUpload, cp.spec.Label, StatusInvalidBufferSize, err)
	}
	return nil
}

// Clear zeroes the accumulators.
func (c *CPU) Clear(p Plane) error {
	cp, err := c.plane(p, OpClear)
	if err != nil {
		return err
	}
	clear(cp.acc)
	if cp.spec.Mode == Weighted {
		clear(cp.weights)
	}
	return nil
}

var errBadWeight = errors.New("transform produced a non-finite or negative weight")

// DispatchPatches transforms every patch of one tiling.
func (c *CPU) DispatchPatches(p Plane, d PatchDispatch) error {
	cp, err := c.plane(p, OpPatches)
	if err != nil {
		return err
	}
	if err := d.Check(cp.spec); err != nil {
		return &DispatchError{
			Op: OpPatches, Plane: cp.spec.Label,
			OffsetX: d.OffsetX, OffsetY: d.OffsetY,
			Status: StatusInvalidWorkSize, Err: err,
		}
	}

	size := cp.spec.PatchSize
	cols := d.RegionW / size
	rows := d.RegionH / size
	weighted := cp.spec.Mode == Weighted

	var g errgroup.Group
	g.SetLimit(c.workers)
	for row := 0; row < rows; row++ {
		y0 := d.OffsetY + row*size
		g.Go(func() error {
			bufp := cp.scratch.Get().(*[]float32)
			defer cp.scratch.Put(bufp)
			patch := *bufp

			for col := 0; col < cols; col++ {
				x0 := d.OffsetX + col*size
				cp.extract(patch, x0, y0)
				w := cp.tr.Apply(patch, d.Threshold)
				if !(w >= 0) || math.IsInf(float64(w), 0) {
					return errBadWeight
				}
				cp.accumulate(patch, x0, y0, w, weighted)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &DispatchError{
			Op: OpPatches, Plane: cp.spec.Label,
			OffsetX: d.OffsetX, OffsetY: d.OffsetY,
			Status: StatusExecFailure, Err: err,
		}
	}

	c.dispatches.Add(1)
	return nil
}

func (p *cpuPlane) extract(patch []float32, x0, y0 int) {
	size := p.spec.PatchSize
	w := p.spec.Width
	for j := 0; j < size; j++ {
		row := (y0+j)*w + x0
		copy(patch[j*size:(j+1)*size], p.image[row:row+size])
	}
}

func (p *cpuPlane) accumulate(patch []float32, x0, y0 int, weight float32, weighted bool) {
	size := p.spec.PatchSize
	w := p.spec.Width
	for j := 0; j < size; j++ {
		row := (y0+j)*w + x0
		src := patch[j*size : (j+1)*size]
		acc := p.acc[row : row+size]
		if !weighted {
			for i, v := range src {
				acc[i] += v
			}
			continue
		}
		wts := p.weights[row : row+size]
		for i, v := range src {
			acc[i] += v * weight
			wts[i] += weight
		}
	}
}

// Normalize divides the accumulation buffer by the divisor map or weight map.
func (c *CPU) Normalize(p Plane) error {
	cp, err := c.plane(p, OpNormalize)
	if err != nil {
		return err
	}

	c.forRows(cp.spec.Height, func(y int) {
		start := y * cp.spec.Width
		end := start + cp.spec.Width
		for i := start; i < end; i++ {
			div := cp.weights[i]
			if div <= WeightEpsilon {
				continue
			}
			cp.image[i] = clamp01(cp.acc[i] / div)
		}
	})

	c.dispatches.Add(1)
	return nil
}

// Unsharp blurs the image separably through the accumulation buffer, then
// adds amount times the difference between image and blur.
func (c *CPU) Unsharp(p Plane, amount float32) error {
	cp, err := c.plane(p, OpUnsharp)
	if err != nil {
		return err
	}
	taps := cp.spec.UnsharpTaps
	if len(taps) == 0 {
		return opError(OpUnsharp, cp.spec.Label, StatusInvalidValue, errors.New("no unsharp kernel bound"))
	}

	w, h := cp.spec.Width, cp.spec.Height
	r := len(taps) / 2

	c.forRows(h, func(y int) {
		row := cp.image[y*w : (y+1)*w]
		out := cp.acc[y*w : (y+1)*w]
		for x := range row {
			var sum float32
			for k, t := range taps {
				sum += t * row[clampIndex(x+k-r, w)]
			}
			out[x] = sum
		}
	})

	c.forRows(h, func(y int) {
		for x := 0; x < w; x++ {
			var blur float32
			for k, t := range taps {
				blur += t * cp.acc[clampIndex(y+k-r, h)*w+x]
			}
			i := y*w + x
			src := cp.image[i]
			cp.image[i] = clamp01(src + amount*(src-blur))
		}
	})

	c.dispatches.Add(2)
	return nil
}

// Download encodes the plane image into samples.
func (c *CPU) Download(p Plane, samples []byte) error {
	cp, err := c.plane(p, OpDownload)
	if err != nil {
		return err
	}
	if err := frame.EncodeSamples(samples, cp.image); err != nil {
		return opError(OpDownload, cp.spec.Label, StatusInvalidBufferSize, err)
	}
	return nil
}

// Stats reports allocations and dispatch counts.
func (c *CPU) Stats() Stats {
	return Stats{
		Planes:         c.planes,
		AllocatedBytes: c.allocBytes,
		Dispatches:     c.dispatches.Load(),
	}
}

// Close marks the device unusable. Plane memory is left to the garbage collector.
func (c *CPU) Close() error {
	c.closed = true
	return nil
}

// forRows runs fn for every row in [0, height) on the worker pool.
func (c *CPU) forRows(height int, fn func(y int)) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	for y := 0; y < height; y++ {
		g.Go(func() error {
			fn(y)
			return nil
		})
	}
	_ = g.Wait()
}

func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
