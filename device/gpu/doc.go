// Package gpu provides the "gpu" compute device, which runs the denoiser's
// kernel catalog as WGSL compute shaders through the wgpu HAL on Vulkan.
//
// Importing the package registers the backend:
//
//	import _ "github.com/opd-ai/dctdenoise/device/gpu"
//
//	dev, err := device.Open("gpu", device.Options{})
//
// The catalog (kernels.wgsl) is embedded and compiled once when the device
// is opened; Options.KernelPath replaces it with a file. It must define the
// entry points dct_denoise, normalize, unsharp_h and unsharp_v against the
// shared bind group layout documented at the top of kernels.wgsl. A shader
// compilation failure is reported as device.ErrCompile carrying the
// compiler diagnostic.
//
// Only discrete and integrated GPUs are eligible. When none is present Open
// fails with device.ErrNoAdapter.
//
// Build with the nogpu tag to drop the backend and its native dependencies.
package gpu
