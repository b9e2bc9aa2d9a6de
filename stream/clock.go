package stream

import "time"

// Clock abstracts time so pacing and elapsed-time statistics are
// deterministic under test.
//
//	clock := NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
//	p, _ := NewPipeline(filter, Config{FrameSize: n, Clock: clock})
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration

	// Sleep pauses the calling goroutine for d.
	Sleep(d time.Duration)
}

// SystemClock implements Clock with the system clock.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time { return time.Now() }

// Since returns the duration elapsed since t using the system clock.
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// MockClock is a Clock whose time only moves through Advance and Sleep.
type MockClock struct {
	current time.Time
	slept   time.Duration
	sleeps  int
}

// NewMockClock creates a MockClock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time { return m.current }

// Since returns the duration since t based on the mock's current time.
func (m *MockClock) Since(t time.Time) time.Duration { return m.current.Sub(t) }

// Sleep advances the mock time by d without blocking.
func (m *MockClock) Sleep(d time.Duration) {
	m.sleeps++
	m.slept += d
	m.current = m.current.Add(d)
}

// Advance moves the mock time forward by d.
func (m *MockClock) Advance(d time.Duration) { m.current = m.current.Add(d) }

// Slept returns the total duration passed to Sleep.
func (m *MockClock) Slept() time.Duration { return m.slept }

// Sleeps returns the number of Sleep calls.
func (m *MockClock) Sleeps() int { return m.sleeps }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
