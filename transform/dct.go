package transform

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// DCT denoises a patch by hard thresholding its 2D DCT-II coefficients.
// The forward transform is C·X·Cᵀ and the inverse Cᵀ·Y·C with the
// orthonormal basis C, so a zero threshold reproduces the patch.
type DCT struct {
	size  int
	basis *mat.Dense
	pool  sync.Pool
}

type dctScratch struct {
	x *mat.Dense
	t *mat.Dense
	y *mat.Dense
}

// NewDCT precomputes the orthonormal DCT-II basis for size x size patches.
func NewDCT(size int) (*DCT, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}

	data := make([]float64, size*size)
	for u := 0; u < size; u++ {
		scale := math.Sqrt(2 / float64(size))
		if u == 0 {
			scale = math.Sqrt(1 / float64(size))
		}
		for x := 0; x < size; x++ {
			data[u*size+x] = scale * math.Cos(math.Pi*float64((2*x+1)*u)/float64(2*size))
		}
	}

	d := &DCT{
		size:  size,
		basis: mat.NewDense(size, size, data),
	}
	d.pool.New = func() interface{} {
		return &dctScratch{
			x: mat.NewDense(size, size, nil),
			t: mat.NewDense(size, size, nil),
			y: mat.NewDense(size, size, nil),
		}
	}
	return d, nil
}

// Name returns "dct".
func (d *DCT) Name() string { return "dct" }

// Size returns the patch edge.
func (d *DCT) Size() int { return d.size }

// Apply zeroes every AC coefficient whose magnitude is below threshold and
// reconstructs the patch. The DC coefficient is always kept. The returned
// weight is 1/kept.
func (d *DCT) Apply(patch []float32, threshold float32) float32 {
	s := d.pool.Get().(*dctScratch)
	defer d.pool.Put(s)

	xd := s.x.RawMatrix().Data
	for i, v := range patch {
		xd[i] = float64(v)
	}

	s.t.Mul(d.basis, s.x)
	s.y.Mul(s.t, d.basis.T())

	coeffs := s.y.RawMatrix().Data
	th := float64(threshold)
	kept := 1
	for i := 1; i < len(coeffs); i++ {
		if math.Abs(coeffs[i]) < th {
			coeffs[i] = 0
			continue
		}
		kept++
	}

	s.t.Mul(d.basis.T(), s.y)
	s.x.Mul(s.t, d.basis)

	xd = s.x.RawMatrix().Data
	for i := range patch {
		patch[i] = float32(xd[i])
	}
	return 1 / float32(kept)
}

// Basis returns the orthonormal basis as row-major float32, row u holding
// the u-th cosine. Device kernels that compute the transform themselves
// bind it as a coefficient table.
func (d *DCT) Basis() []float32 {
	raw := d.basis.RawMatrix().Data
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}
