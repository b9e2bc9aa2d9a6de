package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/frame"
)

// DefaultPace is the delay after each filtered frame.
const DefaultPace = time.Millisecond

// Filter rewrites one frame in place.
type Filter interface {
	Filter(frame []byte) error
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(frame []byte) error

// Filter calls f.
func (f FilterFunc) Filter(frame []byte) error { return f(frame) }

// Config holds the pipeline parameters.
type Config struct {
	// FrameSize is the byte length of one frame.
	FrameSize int
	// RingCapacity is the number of frames held between read and write.
	// Zero selects frame.DefaultRingCapacity.
	RingCapacity int
	// Pace is slept after each filtered frame. Zero or negative disables
	// it; callers wanting the default pass DefaultPace.
	Pace time.Duration
	// Strict makes a truncated final frame an error after the complete
	// frames have been written.
	Strict bool
	// Clock defaults to the system clock.
	Clock Clock
}

// Pipeline reads frames, filters them and writes them in arrival order
// through a fixed ring of frame buffers.
type Pipeline struct {
	filter Filter
	ring   *frame.Ring
	pace   time.Duration
	strict bool
	clock  Clock
}

// NewPipeline allocates the frame ring.
func NewPipeline(filter Filter, cfg Config) (*Pipeline, error) {
	if filter == nil {
		return nil, fmt.Errorf("%w: nil filter", ErrInvalidConfig)
	}
	capacity := cfg.RingCapacity
	if capacity == 0 {
		capacity = frame.DefaultRingCapacity
	}
	ring, err := frame.NewRing(capacity, cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	pace := cfg.Pace
	if pace < 0 {
		pace = 0
	}
	return &Pipeline{
		filter: filter,
		ring:   ring,
		pace:   pace,
		strict: cfg.Strict,
		clock:  clockOrDefault(cfg.Clock),
	}, nil
}

// Run streams r through the filter into w until r is exhausted. Frames are
// read while fewer than the ring capacity are waiting to be written; each is
// filtered as soon as it is read, and the waiting frames are then written
// in order. ctx is checked between frames only.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var (
		stats   Stats
		read    uint64
		written uint64
		eof     bool
		runErr  error
	)
	start := p.clock.Now()
	size := p.ring.FrameSize()

	for !eof && runErr == nil {
		for read < written+uint64(p.ring.Capacity()) {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}

			slot := p.ring.Slot(read)
			n, err := io.ReadFull(r, slot)
			stats.BytesRead += int64(n)
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				eof = true
				stats.TruncatedBytes = n
				break
			}
			if err != nil {
				runErr = fmt.Errorf("%w: frame %d: %v", ErrReadFailed, read, err)
				break
			}
			stats.FramesRead++

			if err := p.filter.Filter(slot); err != nil {
				runErr = fmt.Errorf("filter frame %d: %w", read, err)
				break
			}
			stats.FramesFiltered++
			read++
			if p.pace > 0 {
				p.clock.Sleep(p.pace)
			}
		}

		for written < read {
			n, err := w.Write(p.ring.Slot(written))
			stats.BytesWritten += int64(n)
			if err == nil && n < size {
				err = io.ErrShortWrite
			}
			if err != nil {
				stats.Elapsed = p.clock.Since(start)
				return stats, fmt.Errorf("%w: frame %d: %v", ErrWriteFailed, written, err)
			}
			written++
			stats.FramesWritten++
		}

		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.Run",
			"read":     read,
			"written":  written,
		}).Debug("Ring drained")
	}

	stats.Elapsed = p.clock.Since(start)
	if runErr != nil {
		return stats, runErr
	}

	if stats.TruncatedBytes > 0 {
		logrus.WithFields(logrus.Fields{
			"function":        "Pipeline.Run",
			"truncated_bytes": stats.TruncatedBytes,
			"frame_size":      size,
		}).Warn("Input ended inside a frame; partial frame dropped")
		if p.strict {
			return stats, fmt.Errorf("%w: %d of %d bytes", ErrTruncatedFrame, stats.TruncatedBytes, size)
		}
	}

	logrus.WithFields(stats.Fields()).Info("Stream finished")
	return stats, nil
}
