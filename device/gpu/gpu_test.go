//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/frame"
)

func openOrSkip(t *testing.T, opts device.Options) *Device {
	t.Helper()
	dev, err := Open(opts)
	if errors.Is(err, device.ErrNoAdapter) {
		t.Skipf("no GPU adapter: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func TestOpenRejectsUnknownTransform(t *testing.T) {
	_, err := Open(device.Options{Transform: "wavelet"})
	require.ErrorIs(t, err, device.ErrCompile)
	assert.Contains(t, err.Error(), "identity")
}

func TestRegisteredAsGPU(t *testing.T) {
	assert.Contains(t, device.Backends(), "gpu")
}

func TestGPUMatchesCPU(t *testing.T) {
	gpu := openOrSkip(t, device.Options{})
	cpu, err := device.NewCPU(device.Options{Workers: 2})
	require.NoError(t, err)
	defer cpu.Close()

	spec := device.PlaneSpec{Label: "Y", Width: 24, Height: 16, PatchSize: 8, Mode: device.Weighted}
	in := make([]byte, spec.Samples()*frame.BytesPerSample)
	for i := 0; i < spec.Samples(); i++ {
		frame.PutSample(in, i, uint16((i*7919)%frame.MaxSample))
	}

	run := func(dev device.Device) []byte {
		p, err := dev.NewPlane(spec)
		require.NoError(t, err)
		require.NoError(t, dev.Upload(p, in))
		require.NoError(t, dev.Clear(p))
		for _, off := range [][2]int{{0, 0}, {4, 0}, {0, 4}, {4, 4}} {
			require.NoError(t, dev.DispatchPatches(p, device.PatchDispatch{
				OffsetX: off[0], OffsetY: off[1],
				RegionW: (spec.Width - off[0]) / 8 * 8, RegionH: (spec.Height - off[1]) / 8 * 8,
				Threshold: 0.05,
			}))
		}
		require.NoError(t, dev.Normalize(p))
		out := make([]byte, len(in))
		require.NoError(t, dev.Download(p, out))
		return out
	}

	want := run(cpu)
	got := run(gpu)
	for i := 0; i < spec.Samples(); i++ {
		assert.InDelta(t, frame.Sample(want, i), frame.Sample(got, i), 2, "sample %d", i)
	}
}

func TestGPUUploadDownload(t *testing.T) {
	dev := openOrSkip(t, device.Options{Transform: "identity"})
	p, err := dev.NewPlane(device.PlaneSpec{Label: "U", Width: 5, Height: 3, PatchSize: 2, Mode: device.Weighted})
	require.NoError(t, err)

	in := make([]byte, 15*frame.BytesPerSample)
	for i := 0; i < 15; i++ {
		frame.PutSample(in, i, uint16(i*4000))
	}
	require.NoError(t, dev.Upload(p, in))
	out := make([]byte, len(in))
	require.NoError(t, dev.Download(p, out))
	assert.Equal(t, in, out)

	var de *device.DispatchError
	require.ErrorAs(t, dev.Download(p, out[:4]), &de)
	assert.Equal(t, device.StatusInvalidBufferSize, de.Status)

	before := dev.Stats()
	require.NoError(t, dev.Clear(p))
	require.NoError(t, dev.Normalize(p))
	assert.Equal(t, before.AllocatedBytes, dev.Stats().AllocatedBytes)
}
