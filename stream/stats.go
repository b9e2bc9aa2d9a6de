package stream

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Stats summarizes one pipeline run.
type Stats struct {
	FramesRead     uint64
	FramesFiltered uint64
	FramesWritten  uint64
	BytesRead      int64
	BytesWritten   int64
	TruncatedBytes int
	Elapsed        time.Duration
}

// FPS returns filtered frames per second of elapsed time.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.FramesFiltered) / s.Elapsed.Seconds()
}

// Fields renders the statistics for structured logging.
func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"frames_read":     s.FramesRead,
		"frames_filtered": s.FramesFiltered,
		"frames_written":  s.FramesWritten,
		"bytes_read":      s.BytesRead,
		"bytes_written":   s.BytesWritten,
		"truncated_bytes": s.TruncatedBytes,
		"elapsed":         s.Elapsed.String(),
		"fps":             s.FPS(),
	}
}
