package denoise

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/dctdenoise/device"
)

func TestOffsets(t *testing.T) {
	dense := Offsets(DensePatchSize, DenseStride)
	require.Len(t, dense, 64)
	assert.Equal(t, Offset{0, 0}, dense[0])
	assert.Equal(t, Offset{1, 0}, dense[1])
	assert.Equal(t, Offset{0, 1}, dense[8])
	assert.Equal(t, Offset{7, 7}, dense[63])

	sparse := Offsets(SparsePatchSize, SparseStride)
	require.Len(t, sparse, 16)
	assert.Equal(t, Offset{4, 0}, sparse[1])
	assert.Equal(t, Offset{12, 12}, sparse[15])

	assert.Len(t, Offsets(8, 3), 9)
	assert.Nil(t, Offsets(0, 1))
}

func TestTrimmedRegion(t *testing.T) {
	tests := []struct {
		w, h   int
		off    Offset
		p      int
		rw, rh int
	}{
		{w: 40, h: 24, off: Offset{0, 0}, p: 8, rw: 40, rh: 24},
		{w: 40, h: 24, off: Offset{3, 5}, p: 8, rw: 32, rh: 16},
		{w: 8, h: 8, off: Offset{1, 0}, p: 8, rw: 0, rh: 8},
		{w: 4, h: 4, off: Offset{0, 0}, p: 16, rw: 0, rh: 0},
		{w: 4, h: 4, off: Offset{12, 12}, p: 16, rw: 0, rh: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d@%v", tt.w, tt.h, tt.off), func(t *testing.T) {
			rw, rh := TrimmedRegion(tt.w, tt.h, tt.off, tt.p)
			assert.Equal(t, tt.rw, rw)
			assert.Equal(t, tt.rh, rh)
		})
	}
}

func TestCoverageCompleteness(t *testing.T) {
	check := func(t *testing.T, w, h, p, s int) {
		cov := Coverage(w, h, p, s)
		for i, c := range cov {
			if !assert.GreaterOrEqual(t, c, float32(1), "pixel (%d,%d) of %dx%d P=%d S=%d", i%w, i/w, w, h, p, s) {
				return
			}
		}
	}

	t.Run("dense", func(t *testing.T) {
		for w := DensePatchSize; w < DensePatchSize+20; w++ {
			for h := DensePatchSize; h < DensePatchSize+20; h += 3 {
				check(t, w, h, DensePatchSize, DenseStride)
			}
		}
	})
	t.Run("sparse", func(t *testing.T) {
		for w := SparsePatchSize; w < 80; w += SparseStride {
			for h := SparsePatchSize; h < 80; h += 2 * SparseStride {
				check(t, w, h, SparsePatchSize, SparseStride)
			}
		}
	})
}

func TestCoverageMatchesDispatchedRegions(t *testing.T) {
	const w, h, p, s = 37, 29, 8, 2
	want := make([]float32, w*h)
	for _, off := range Offsets(p, s) {
		rw, rh := TrimmedRegion(w, h, off, p)
		if rw == 0 || rh == 0 {
			continue
		}
		for y := off.Y; y < off.Y+rh; y++ {
			for x := off.X; x < off.X+rw; x++ {
				want[y*w+x]++
			}
		}
	}
	assert.Equal(t, want, Coverage(w, h, p, s))
}

func TestDenseUniformity(t *testing.T) {
	const w, h = 41, 35
	p := DensePatchSize
	cov := Coverage(w, h, p, DenseStride)
	for y := p - 1; y <= h-p; y++ {
		for x := p - 1; x <= w-p; x++ {
			require.Equal(t, float32(p*p), cov[y*w+x], "pixel (%d,%d)", x, y)
		}
	}
	assert.Less(t, cov[0], float32(p*p))
}

func TestSchedulerSkipsEmptyRegions(t *testing.T) {
	dev := &recordingDevice{}
	sched, err := NewScheduler(dev, 8, 1)
	require.NoError(t, err)

	plane, err := dev.NewPlane(device.PlaneSpec{Label: "Y", Width: 8, Height: 8, PatchSize: 8})
	require.NoError(t, err)

	n, err := sched.Run(plane, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, dev.dispatches, 1)
	assert.Equal(t, device.PatchDispatch{RegionW: 8, RegionH: 8, Threshold: 0.5}, dev.dispatches[0])

	small, err := dev.NewPlane(device.PlaneSpec{Label: "U", Width: 4, Height: 4, PatchSize: 8})
	require.NoError(t, err)
	n, err = sched.Run(small, 0.5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerFailsFast(t *testing.T) {
	dev := &recordingDevice{failAt: 3}
	sched, err := NewScheduler(dev, 4, 1)
	require.NoError(t, err)
	plane, err := dev.NewPlane(device.PlaneSpec{Label: "V", Width: 16, Height: 16, PatchSize: 4})
	require.NoError(t, err)

	n, err := sched.Run(plane, 0)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, dev.dispatches, 3, "no dispatch after the failing one")

	var de *device.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "V", de.Plane)
	assert.Equal(t, 2, de.OffsetX)
	assert.Equal(t, 0, de.OffsetY)
	assert.ErrorIs(t, err, errInjected)
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(nil, 8, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewScheduler(&recordingDevice{}, 8, 9)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
