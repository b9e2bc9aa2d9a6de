package frame

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultRingCapacity is the double-buffered depth used by the stream pipeline.
const DefaultRingCapacity = 2

// Ring is a fixed-capacity cyclic set of frame slots backed by one
// contiguous allocation. It is not safe for concurrent use.
type Ring struct {
	capacity  int
	frameSize int
	buf       []byte
}

// NewRing allocates capacity slots of frameSize bytes each.
func NewRing(capacity, frameSize int) (*Ring, error) {
	if capacity <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("%w: capacity %d, frame size %d", ErrInvalidRing, capacity, frameSize)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewRing",
		"capacity":   capacity,
		"frame_size": frameSize,
		"total_size": capacity * frameSize,
	}).Debug("Allocating frame ring")

	return &Ring{
		capacity:  capacity,
		frameSize: frameSize,
		buf:       make([]byte, capacity*frameSize),
	}, nil
}

// Capacity returns the number of slots.
func (r *Ring) Capacity() int { return r.capacity }

// FrameSize returns the byte size of one slot.
func (r *Ring) FrameSize() int { return r.frameSize }

// Slot returns the slot holding frame number seq.
func (r *Ring) Slot(seq uint64) []byte {
	start := int(seq%uint64(r.capacity)) * r.frameSize
	return r.buf[start : start+r.frameSize : start+r.frameSize]
}
