package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusOK.String())
	assert.Equal(t, "invalid global work size", StatusInvalidWorkSize.String())
	assert.Equal(t, "device lost or timed out", StatusDeviceLost.String())
	assert.Equal(t, "unknown device status 99", Status(99).String())
}

func TestDispatchErrorMessage(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *DispatchError
		expected string
	}{
		{
			name:     "patches carries offset",
			err:      &DispatchError{Op: OpPatches, Plane: "Y", OffsetX: 3, OffsetY: 5, Status: StatusExecFailure, Err: cause},
			expected: "dct_denoise on plane Y at offset (3,5): kernel execution failed: boom",
		},
		{
			name:     "normalize has no offset",
			err:      &DispatchError{Op: OpNormalize, Plane: "U", Status: StatusDeviceLost},
			expected: "normalize on plane U: device lost or timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}

	var err error = &DispatchError{Op: OpUpload, Plane: "V", Status: StatusTransferFailure, Err: cause}
	assert.ErrorIs(t, err, cause)
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StatusTransferFailure, de.Status)
}

func TestPlaneSpecValidate(t *testing.T) {
	valid := PlaneSpec{Label: "Y", Width: 8, Height: 8, PatchSize: 8, Mode: Weighted}

	tests := []struct {
		name      string
		mutate    func(s *PlaneSpec)
		expectErr bool
	}{
		{name: "weighted", mutate: func(s *PlaneSpec) {}},
		{name: "uniform with divisors", mutate: func(s *PlaneSpec) {
			s.Mode = Uniform
			s.Divisors = make([]float32, 64)
		}},
		{name: "uniform without divisors", mutate: func(s *PlaneSpec) { s.Mode = Uniform }, expectErr: true},
		{name: "zero width", mutate: func(s *PlaneSpec) { s.Width = 0 }, expectErr: true},
		{name: "patch too large", mutate: func(s *PlaneSpec) { s.PatchSize = 32 }, expectErr: true},
		{name: "patch too small", mutate: func(s *PlaneSpec) { s.PatchSize = 1 }, expectErr: true},
		{name: "unknown mode", mutate: func(s *PlaneSpec) { s.Mode = NormalizeMode(7) }, expectErr: true},
		{name: "even taps", mutate: func(s *PlaneSpec) { s.UnsharpTaps = []float32{0.5, 0.5} }, expectErr: true},
		{name: "odd taps", mutate: func(s *PlaneSpec) { s.UnsharpTaps = []float32{0.25, 0.5, 0.25} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidPlane)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPatchDispatchCheck(t *testing.T) {
	spec := PlaneSpec{Width: 20, Height: 12, PatchSize: 4}

	tests := []struct {
		name      string
		dispatch  PatchDispatch
		expectErr bool
	}{
		{name: "full plane", dispatch: PatchDispatch{RegionW: 20, RegionH: 12}},
		{name: "offset trimmed", dispatch: PatchDispatch{OffsetX: 3, OffsetY: 1, RegionW: 16, RegionH: 8}},
		{name: "negative offset", dispatch: PatchDispatch{OffsetX: -1, RegionW: 4, RegionH: 4}, expectErr: true},
		{name: "empty region", dispatch: PatchDispatch{RegionW: 0, RegionH: 4}, expectErr: true},
		{name: "not a multiple", dispatch: PatchDispatch{RegionW: 6, RegionH: 4}, expectErr: true},
		{name: "overflows plane", dispatch: PatchDispatch{OffsetX: 8, RegionW: 16, RegionH: 4}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dispatch.Check(spec)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Backends(), "cpu")

	_, err := Open("quantum", Options{})
	require.ErrorIs(t, err, ErrNoBackend)
	assert.Contains(t, err.Error(), "cpu")

	assert.Panics(t, func() {
		Register("cpu", func(Options) (Device, error) { return nil, nil })
	})

	dev, err := Open("cpu", Options{Workers: 2})
	require.NoError(t, err)
	defer dev.Close()
	assert.Contains(t, dev.Name(), "2 workers")
}
