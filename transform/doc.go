// Package transform provides the per-patch transform-and-threshold
// strategies executed by the cpu device.
//
// A Transform rewrites one square patch in place and returns the weight the
// patch contributes to the overlap-add weight map. Two strategies are
// registered:
//
//   - "dct": orthonormal 2D DCT-II, hard thresholding of the AC
//     coefficients, inverse DCT. The weight is the reciprocal of the number
//     of retained coefficients, so sparse (flat) patches count more.
//   - "identity": leaves the patch untouched and weighs 1. Used to check
//     that tiling and reconstruction are exact.
//
// Strategies are looked up by name once at startup:
//
//	tr, err := transform.New("dct", 8)
//	if err != nil {
//	    return err
//	}
//	w := tr.Apply(patch, 0.02)
package transform
