package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrameSize = 16

func markedFrames(n int) []byte {
	buf := make([]byte, n*testFrameSize)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*testFrameSize:], uint32(i+1))
	}
	return buf
}

func newTestPipeline(t *testing.T, f Filter, cfg Config) (*Pipeline, *MockClock) {
	t.Helper()
	clock := NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg.Clock = clock
	if cfg.FrameSize == 0 {
		cfg.FrameSize = testFrameSize
	}
	p, err := NewPipeline(f, cfg)
	require.NoError(t, err)
	return p, clock
}

var passthrough = FilterFunc(func([]byte) error { return nil })

func TestPipelinePreservesOrder(t *testing.T) {
	for _, capacity := range []int{1, 2, 3} {
		in := markedFrames(7)
		var out bytes.Buffer
		var seen []uint32
		filter := FilterFunc(func(f []byte) error {
			seen = append(seen, binary.LittleEndian.Uint32(f))
			f[testFrameSize-1] = 0xAA
			return nil
		})

		p, _ := newTestPipeline(t, filter, Config{RingCapacity: capacity})
		stats, err := p.Run(context.Background(), bytes.NewReader(in), &out)
		require.NoError(t, err)

		assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6, 7}, seen)
		require.Equal(t, len(in), out.Len())
		for i := 0; i < 7; i++ {
			frame := out.Bytes()[i*testFrameSize : (i+1)*testFrameSize]
			assert.Equal(t, uint32(i+1), binary.LittleEndian.Uint32(frame))
			assert.Equal(t, byte(0xAA), frame[testFrameSize-1])
		}
		assert.Equal(t, uint64(7), stats.FramesWritten)
		assert.Equal(t, int64(len(in)), stats.BytesWritten)
	}
}

func TestPipelineTruncatedFinalFrame(t *testing.T) {
	in := markedFrames(6)
	in = in[:len(in)-1]

	t.Run("default ends cleanly", func(t *testing.T) {
		var out bytes.Buffer
		p, _ := newTestPipeline(t, passthrough, Config{})
		stats, err := p.Run(context.Background(), bytes.NewReader(in), &out)
		require.NoError(t, err)
		assert.Equal(t, 5*testFrameSize, out.Len())
		assert.Equal(t, uint64(5), stats.FramesWritten)
		assert.Equal(t, testFrameSize-1, stats.TruncatedBytes)
		assert.Equal(t, int64(len(in)), stats.BytesRead)
	})

	t.Run("strict reports after flushing", func(t *testing.T) {
		var out bytes.Buffer
		p, _ := newTestPipeline(t, passthrough, Config{Strict: true})
		stats, err := p.Run(context.Background(), bytes.NewReader(in), &out)
		require.ErrorIs(t, err, ErrTruncatedFrame)
		assert.Equal(t, 5*testFrameSize, out.Len())
		assert.Equal(t, uint64(5), stats.FramesWritten)
	})
}

func TestPipelineEmptyInput(t *testing.T) {
	var out bytes.Buffer
	p, clock := newTestPipeline(t, passthrough, Config{})
	stats, err := p.Run(context.Background(), bytes.NewReader(nil), &out)
	require.NoError(t, err)
	assert.Zero(t, out.Len())
	assert.Zero(t, stats.FramesRead)
	assert.Zero(t, clock.Sleeps())
}

type failingWriter struct {
	accept int
	n      int
}

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n >= w.accept {
		return 0, errDiskFull
	}
	w.n++
	return len(p), nil
}

func TestPipelineWriteFailure(t *testing.T) {
	p, _ := newTestPipeline(t, passthrough, Config{})
	stats, err := p.Run(context.Background(), bytes.NewReader(markedFrames(5)), &failingWriter{accept: 2})
	require.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), errDiskFull.Error())
	assert.Equal(t, uint64(2), stats.FramesWritten)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestPipelineShortWrite(t *testing.T) {
	p, _ := newTestPipeline(t, passthrough, Config{})
	_, err := p.Run(context.Background(), bytes.NewReader(markedFrames(1)), shortWriter{})
	assert.ErrorIs(t, err, ErrWriteFailed)
}

type brokenReader struct{}

var errUnplugged = errors.New("unplugged")

func (brokenReader) Read([]byte) (int, error) { return 0, errUnplugged }

func TestPipelineReadFailure(t *testing.T) {
	p, _ := newTestPipeline(t, passthrough, Config{})
	_, err := p.Run(context.Background(), brokenReader{}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrReadFailed)
	assert.Contains(t, err.Error(), "unplugged")
}

func TestPipelineFilterFailureFlushesEarlierFrames(t *testing.T) {
	errBoom := errors.New("boom")
	calls := 0
	filter := FilterFunc(func([]byte) error {
		calls++
		if calls == 4 {
			return errBoom
		}
		return nil
	})

	var out bytes.Buffer
	p, _ := newTestPipeline(t, filter, Config{})
	stats, err := p.Run(context.Background(), bytes.NewReader(markedFrames(6)), &out)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, uint64(3), stats.FramesWritten)
	assert.Equal(t, 3*testFrameSize, out.Len())
}

func TestPipelinePacing(t *testing.T) {
	p, clock := newTestPipeline(t, passthrough, Config{Pace: 3 * time.Millisecond})
	stats, err := p.Run(context.Background(), bytes.NewReader(markedFrames(4)), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 4, clock.Sleeps())
	assert.Equal(t, 12*time.Millisecond, clock.Slept())
	assert.Equal(t, 12*time.Millisecond, stats.Elapsed)
	assert.InDelta(t, 4/0.012, stats.FPS(), 1e-6)

	p, clock = newTestPipeline(t, passthrough, Config{Pace: -1})
	_, err = p.Run(context.Background(), bytes.NewReader(markedFrames(4)), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, clock.Sleeps())
}

func TestPipelineCanceledBetweenFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	filter := FilterFunc(func([]byte) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	})

	var out bytes.Buffer
	p, _ := newTestPipeline(t, filter, Config{})
	stats, err := p.Run(ctx, bytes.NewReader(markedFrames(8)), &out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(3), stats.FramesFiltered)
	assert.Equal(t, 3*testFrameSize, out.Len(), "frames already filtered are written")
}

func TestPipelineReusesRingSlots(t *testing.T) {
	slots := make(map[*byte]struct{})
	filter := FilterFunc(func(f []byte) error {
		slots[&f[0]] = struct{}{}
		return nil
	})

	p, _ := newTestPipeline(t, filter, Config{})
	_, err := p.Run(context.Background(), bytes.NewReader(markedFrames(20)), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestNewPipelineValidates(t *testing.T) {
	_, err := NewPipeline(nil, Config{FrameSize: 4})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewPipeline(passthrough, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewPipeline(passthrough, Config{FrameSize: 4, RingCapacity: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Second)
	clock.Sleep(time.Second)
	assert.Equal(t, 2*time.Second, clock.Since(start))
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
	assert.Equal(t, time.Second, clock.Slept())

	var sys Clock = SystemClock{}
	assert.False(t, sys.Now().IsZero())
}
