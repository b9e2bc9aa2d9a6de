// Package denoise implements the overlapped patch-transform filter.
//
// A Scheduler enumerates the tiling offsets of a P x P patch grid on stride
// S and asks the device to transform every patch of each tiling, adding the
// results into the plane's accumulation buffer. A Reconstructor then divides
// the sums by either the fixed coverage count of each pixel (uniform mode) or
// the accumulated patch weights (weighted mode). Pixels no patch reached keep
// their input sample.
//
// Two presets are provided:
//
//	DenseConfig(th)   P=8,  S=1, uniform,  unsharp stage (amount th*100)
//	SparseConfig(th)  P=16, S=4, weighted, no unsharp stage
//
// A FrameFilter runs a PlaneFilter for Y, U and V in that order:
//
//	ff, err := denoise.NewFrameFilter(dev, geom, denoise.DenseConfig(0.02))
//	if err != nil {
//	    return err
//	}
//	err = ff.Filter(frameBytes)
//
// All device storage is allocated by NewFrameFilter; Filter performs no
// device allocation.
package denoise
