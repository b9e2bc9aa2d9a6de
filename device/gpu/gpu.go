//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/frame"
	"github.com/opd-ai/dctdenoise/transform"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// FenceTimeout bounds the wait for one submitted dispatch.
const FenceTimeout = 5 * time.Second

const paramsSize = 48

const (
	flagWeighted = 1 << 0
	flagIdentity = 1 << 1
)

func init() {
	device.Register("gpu", func(opts device.Options) (device.Device, error) { return Open(opts) })
}

// Device runs the WGSL kernel catalog through wgpu/hal compute pipelines.
// Every operation records one command buffer, submits it and waits on a
// fence before returning.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
	identity bool

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[string]hal.ComputePipeline

	planes     []*plane
	allocBytes int64
	dispatches uint64
	params     [paramsSize]byte
	closed     bool
}

type plane struct {
	spec  device.PlaneSpec
	bytes uint64

	params  hal.Buffer
	image   hal.Buffer
	acc     hal.Buffer
	weights hal.Buffer
	coeffs  hal.Buffer
	staging hal.Buffer
	group   hal.BindGroup

	host  []float32
	raw   []byte
	zeros []byte
}

func (p *plane) Spec() device.PlaneSpec { return p.spec }

// Open selects a GPU adapter, opens it and compiles the kernel catalog.
func Open(opts device.Options) (*Device, error) {
	identity := false
	switch opts.Transform {
	case "", "dct":
	case "identity":
		identity = true
	default:
		return nil, fmt.Errorf("%w: unknown transform %q (available: %v)", device.ErrCompile, opts.Transform, transform.Names())
	}

	src, err := LoadCatalog(opts.KernelPath)
	if err != nil {
		return nil, err
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", device.ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", device.ErrNoAdapter, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %d adapters, none is a GPU", device.ErrNoAdapter, len(adapters))
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open %s: %v", device.ErrNoAdapter, selected.Info.Name, err)
	}

	d := &Device{
		instance:  instance,
		device:    openDev.Device,
		queue:     openDev.Queue,
		adapter:   selected.Info.Name,
		identity:  identity,
		pipelines: make(map[string]hal.ComputePipeline, len(Entries)),
	}
	if err := d.createPipelines(src); err != nil {
		d.destroyPipelines()
		d.device.Destroy()
		instance.Destroy()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "gpu.Open",
		"adapter":  d.adapter,
		"kernels":  kernelSource(opts.KernelPath),
		"identity": identity,
	}).Info("Kernel catalog compiled")

	return d, nil
}

func kernelSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func (d *Device) createPipelines(src string) error {
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "denoise_catalog",
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrCompile, err)
	}
	d.shader = shader

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "denoise_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: bind group layout: %v", device.ErrCompile, err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "denoise_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: pipeline layout: %v", device.ErrCompile, err)
	}
	d.pipeLayout = pipeLayout

	for _, entry := range Entries {
		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label: entry, Layout: d.pipeLayout,
			Compute: hal.ComputeState{Module: d.shader, EntryPoint: entry},
		})
		if err != nil {
			return fmt.Errorf("%w: entry point %s: %v", device.ErrCompile, entry, err)
		}
		d.pipelines[entry] = pipeline
	}
	return nil
}

func (d *Device) destroyPipelines() {
	for _, p := range d.pipelines {
		d.device.DestroyComputePipeline(p)
	}
	d.pipelines = nil
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
	if d.shader != nil {
		d.device.DestroyShaderModule(d.shader)
		d.shader = nil
	}
}

// Name describes the adapter.
func (d *Device) Name() string {
	return "gpu " + d.adapter
}

// NewPlane creates the plane buffers and binds them to the catalog layout.
// Uniform mode writes the divisor map into the weights buffer once here.
func (d *Device) NewPlane(spec device.PlaneSpec) (device.Plane, error) {
	if d.closed {
		return nil, device.ErrClosed
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	n := spec.Samples()
	p := &plane{
		spec:  spec,
		bytes: uint64(n) * 4, //nolint:gosec // plane size is positive
		host:  make([]float32, n),
		raw:   make([]byte, n*4),
		zeros: make([]byte, n*4),
	}

	if err := d.createPlaneBuffers(p); err != nil {
		d.destroyPlane(p)
		return nil, fmt.Errorf("%w: plane %s: %v", device.ErrInvalidPlane, spec.Label, err)
	}

	coeffs := make([]float32, coeffsTapsOffset+device.MaxUnsharpTaps)
	if !d.identity {
		dct, err := transform.NewDCT(spec.PatchSize)
		if err != nil {
			d.destroyPlane(p)
			return nil, fmt.Errorf("%w: %v", device.ErrCompile, err)
		}
		copy(coeffs, dct.Basis())
	}
	copy(coeffs[coeffsTapsOffset:], spec.UnsharpTaps)
	d.queue.WriteBuffer(p.coeffs, 0, floatBytes(make([]byte, len(coeffs)*4), coeffs))

	if spec.Mode == device.Uniform {
		d.queue.WriteBuffer(p.weights, 0, floatBytes(p.raw, spec.Divisors))
	} else {
		d.queue.WriteBuffer(p.weights, 0, p.zeros)
	}

	d.planes = append(d.planes, p)
	d.allocBytes += int64(4*p.bytes) + int64(coeffsTapsOffset+device.MaxUnsharpTaps)*4 + paramsSize //nolint:gosec // bounded

	logrus.WithFields(logrus.Fields{
		"function":   "gpu.NewPlane",
		"plane":      spec.Label,
		"width":      spec.Width,
		"height":     spec.Height,
		"patch_size": spec.PatchSize,
		"mode":       spec.Mode.String(),
	}).Debug("Allocated plane buffers")

	return p, nil
}

func (d *Device) createPlaneBuffers(p *plane) error {
	var err error
	label := p.spec.Label
	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst

	if p.params, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("params buffer: %w", err)
	}
	if p.image, err = d.device.CreateBuffer(&hal.BufferDescriptor{Label: label + "_image", Size: p.bytes, Usage: storage}); err != nil {
		return fmt.Errorf("image buffer: %w", err)
	}
	if p.acc, err = d.device.CreateBuffer(&hal.BufferDescriptor{Label: label + "_acc", Size: p.bytes, Usage: storage}); err != nil {
		return fmt.Errorf("accumulation buffer: %w", err)
	}
	if p.weights, err = d.device.CreateBuffer(&hal.BufferDescriptor{Label: label + "_weights", Size: p.bytes, Usage: storage}); err != nil {
		return fmt.Errorf("weight buffer: %w", err)
	}
	coeffBytes := uint64(coeffsTapsOffset+device.MaxUnsharpTaps) * 4
	if p.coeffs, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_coeffs", Size: coeffBytes,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("coefficient buffer: %w", err)
	}
	if p.staging, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_staging", Size: p.bytes,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}

	p.group, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: label + "_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.params.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.image.NativeHandle(), Offset: 0, Size: p.bytes}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: p.acc.NativeHandle(), Offset: 0, Size: p.bytes}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: p.weights.NativeHandle(), Offset: 0, Size: p.bytes}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: p.coeffs.NativeHandle(), Offset: 0, Size: coeffBytes}},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	return nil
}

func (d *Device) destroyPlane(p *plane) {
	if p.group != nil {
		d.device.DestroyBindGroup(p.group)
	}
	for _, buf := range []hal.Buffer{p.params, p.image, p.acc, p.weights, p.coeffs, p.staging} {
		if buf != nil {
			d.device.DestroyBuffer(buf)
		}
	}
}

func (d *Device) plane(p device.Plane, op string) (*plane, error) {
	label := ""
	if p != nil {
		label = p.Spec().Label
	}
	if d.closed {
		return nil, &device.DispatchError{Op: op, Plane: label, Status: device.StatusClosed, Err: device.ErrClosed}
	}
	gp, ok := p.(*plane)
	if !ok || gp == nil {
		return nil, &device.DispatchError{Op: op, Plane: label, Status: device.StatusInvalidPlane}
	}
	return gp, nil
}

// Upload converts samples to normalized floats and writes the image buffer.
func (d *Device) Upload(p device.Plane, samples []byte) error {
	gp, err := d.plane(p, device.OpUpload)
	if err != nil {
		return err
	}
	if err := frame.DecodeSamples(gp.host, samples); err != nil {
		return &device.DispatchError{Op: device.OpUpload, Plane: gp.spec.Label, Status: device.StatusInvalidBufferSize, Err: err}
	}
	d.queue.WriteBuffer(gp.image, 0, floatBytes(gp.raw, gp.host))
	return nil
}

// Clear zeroes the accumulation buffer, and the weight map in Weighted mode.
func (d *Device) Clear(p device.Plane) error {
	gp, err := d.plane(p, device.OpClear)
	if err != nil {
		return err
	}
	d.queue.WriteBuffer(gp.acc, 0, gp.zeros)
	if gp.spec.Mode == device.Weighted {
		d.queue.WriteBuffer(gp.weights, 0, gp.zeros)
	}
	return nil
}

// DispatchPatches runs dct_denoise over one tiling.
func (d *Device) DispatchPatches(p device.Plane, pd device.PatchDispatch) error {
	gp, err := d.plane(p, device.OpPatches)
	if err != nil {
		return err
	}
	if err := pd.Check(gp.spec); err != nil {
		return &device.DispatchError{
			Op: device.OpPatches, Plane: gp.spec.Label,
			OffsetX: pd.OffsetX, OffsetY: pd.OffsetY,
			Status: device.StatusInvalidWorkSize, Err: err,
		}
	}

	d.writeParams(gp, pd, 0)
	size := gp.spec.PatchSize
	status, err := d.submit(gp, false, pass{
		entry: EntryPatches,
		x:     groups(pd.RegionW/size, patchGroup),
		y:     groups(pd.RegionH/size, patchGroup),
	})
	if err != nil {
		return &device.DispatchError{
			Op: device.OpPatches, Plane: gp.spec.Label,
			OffsetX: pd.OffsetX, OffsetY: pd.OffsetY,
			Status: status, Err: err,
		}
	}
	return nil
}

// Normalize runs the full-plane normalize kernel.
func (d *Device) Normalize(p device.Plane) error {
	gp, err := d.plane(p, device.OpNormalize)
	if err != nil {
		return err
	}
	d.writeParams(gp, device.PatchDispatch{}, 0)
	status, err := d.submit(gp, false, d.pixelPass(gp, EntryNormalize))
	if err != nil {
		return &device.DispatchError{Op: device.OpNormalize, Plane: gp.spec.Label, Status: status, Err: err}
	}
	return nil
}

// Unsharp runs the horizontal and vertical unsharp passes in one submission.
func (d *Device) Unsharp(p device.Plane, amount float32) error {
	gp, err := d.plane(p, device.OpUnsharp)
	if err != nil {
		return err
	}
	if len(gp.spec.UnsharpTaps) == 0 {
		return &device.DispatchError{
			Op: device.OpUnsharp, Plane: gp.spec.Label,
			Status: device.StatusInvalidValue, Err: errors.New("no unsharp kernel bound"),
		}
	}
	d.writeParams(gp, device.PatchDispatch{}, amount)
	status, err := d.submit(gp, false, d.pixelPass(gp, EntryUnsharpH), d.pixelPass(gp, EntryUnsharpV))
	if err != nil {
		return &device.DispatchError{Op: device.OpUnsharp, Plane: gp.spec.Label, Status: status, Err: err}
	}
	return nil
}

// Download copies the image buffer through the staging buffer and encodes it.
func (d *Device) Download(p device.Plane, samples []byte) error {
	gp, err := d.plane(p, device.OpDownload)
	if err != nil {
		return err
	}
	if len(samples) != len(gp.host)*frame.BytesPerSample {
		return &device.DispatchError{
			Op: device.OpDownload, Plane: gp.spec.Label, Status: device.StatusInvalidBufferSize,
			Err: fmt.Errorf("%w: %d bytes for %d samples", frame.ErrPlaneSize, len(samples), len(gp.host)),
		}
	}

	status, err := d.submit(gp, true)
	if err == nil {
		if err = d.queue.ReadBuffer(gp.staging, 0, gp.raw); err != nil {
			status = device.StatusTransferFailure
		}
	}
	if err != nil {
		return &device.DispatchError{Op: device.OpDownload, Plane: gp.spec.Label, Status: status, Err: err}
	}

	bytesFloat(gp.host, gp.raw)
	return frame.EncodeSamples(samples, gp.host)
}

// Stats reports buffer allocations and dispatch counts.
func (d *Device) Stats() device.Stats {
	return device.Stats{
		Planes:         len(d.planes),
		AllocatedBytes: d.allocBytes,
		Dispatches:     d.dispatches,
	}
}

// Close destroys every plane, the pipelines, the device and the instance.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	for _, p := range d.planes {
		d.destroyPlane(p)
	}
	d.planes = nil
	d.destroyPipelines()
	d.device.Destroy()
	d.instance.Destroy()

	logrus.WithFields(logrus.Fields{
		"function":   "gpu.Close",
		"adapter":    d.adapter,
		"dispatches": d.dispatches,
	}).Debug("GPU device released")
	return nil
}

type pass struct {
	entry string
	x, y  uint32
}

func (d *Device) pixelPass(p *plane, entry string) pass {
	return pass{
		entry: entry,
		x:     groups(p.spec.Width, pixelGroup),
		y:     groups(p.spec.Height, pixelGroup),
	}
}

func (d *Device) writeParams(p *plane, pd device.PatchDispatch, amount float32) {
	var flags uint32
	if p.spec.Mode == device.Weighted {
		flags |= flagWeighted
	}
	if d.identity {
		flags |= flagIdentity
	}
	words := [paramsSize / 4]uint32{
		uint32(p.spec.Width),     //nolint:gosec // validated positive
		uint32(p.spec.Height),    //nolint:gosec // validated positive
		uint32(pd.OffsetX),       //nolint:gosec // checked non-negative
		uint32(pd.OffsetY),       //nolint:gosec // checked non-negative
		uint32(pd.RegionW),       //nolint:gosec // checked non-negative
		uint32(pd.RegionH),       //nolint:gosec // checked non-negative
		uint32(p.spec.PatchSize), //nolint:gosec // validated positive
		flags,
		math.Float32bits(pd.Threshold),
		math.Float32bits(amount),
		uint32(len(p.spec.UnsharpTaps)), //nolint:gosec // at most MaxUnsharpTaps
		0,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(d.params[i*4:], w)
	}
	d.queue.WriteBuffer(p.params, 0, d.params[:])
}

// submit records the passes (and an image to staging copy when readback is
// set) into one command buffer, submits it and waits for the fence.
func (d *Device) submit(p *plane, readback bool, passes ...pass) (device.Status, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: p.spec.Label + "_encoder"})
	if err != nil {
		return device.StatusOutOfResources, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.spec.Label); err != nil {
		return device.StatusOutOfResources, fmt.Errorf("begin encoding: %w", err)
	}

	for _, ps := range passes {
		computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: ps.entry})
		computePass.SetPipeline(d.pipelines[ps.entry])
		computePass.SetBindGroup(0, p.group, nil)
		computePass.Dispatch(ps.x, ps.y, 1)
		computePass.End()
	}
	if readback {
		encoder.CopyBufferToBuffer(p.image, p.staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: p.bytes},
		})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return device.StatusExecFailure, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return device.StatusOutOfResources, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return device.StatusExecFailure, fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, FenceTimeout)
	if err != nil {
		return device.StatusDeviceLost, fmt.Errorf("wait for fence: %w", err)
	}
	if !ok {
		return device.StatusDeviceLost, fmt.Errorf("fence not signalled within %v", FenceTimeout)
	}

	d.dispatches += uint64(len(passes))
	return device.StatusOK, nil
}

func floatBytes(dst []byte, src []float32) []byte {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return dst[:len(src)*4]
}

func bytesFloat(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
