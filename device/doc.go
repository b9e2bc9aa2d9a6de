// Package device defines the compute device that executes the denoiser's
// kernel catalog, and provides the default "cpu" backend.
//
// The denoiser treats the per-patch transform as an opaque operation run on
// a massively parallel device. A Device owns the storage of every plane
// (the normalized image, the accumulation buffer and the weight map) and
// exposes the operations of the catalog:
//
//	Upload          host samples -> plane image
//	Clear           zero the accumulation buffer (and weight map)
//	DispatchPatches transform one tiling of P x P patches, add into the accumulators
//	Normalize       accumulation / weights -> plane image
//	Unsharp         separable local-contrast enhancement of the plane image
//	Download        plane image -> host samples
//
// Every call blocks until the device has finished the work, so callers can
// sequence stages without further synchronization.
//
// # Backends
//
// Backends register themselves by name and are opened through Open:
//
//	dev, err := device.Open("cpu", device.Options{Transform: "dct"})
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
// The "cpu" backend is always available. The "gpu" backend lives in
// package device/gpu and registers itself when that package is imported.
//
// # Errors
//
// Setup failures wrap ErrNoBackend, ErrNoAdapter or ErrCompile. Failures of
// an individual operation are returned as *DispatchError, which carries the
// operation, the plane, the tiling offset and a Status code with a
// human-readable decoding.
package device
