package denoise

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/frame"
)

// State is the stage a PlaneFilter has reached for the current frame.
type State int

const (
	Idle State = iota
	Uploaded
	Accumulating
	Reconstructed
	Sharpened
	Downloaded
)

var stateNames = [...]string{"idle", "uploaded", "accumulating", "reconstructed", "sharpened", "downloaded"}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Observer receives every state transition of a plane filter.
type Observer func(kind frame.PlaneKind, from, to State)

// PlaneFilter runs one plane of a frame through upload, tiling passes,
// reconstruction, the optional unsharp stage and download.
type PlaneFilter struct {
	kind     frame.PlaneKind
	dev      device.Device
	plane    device.Plane
	sched    *Scheduler
	recon    *Reconstructor
	unsharp  *Unsharp
	state    State
	observer Observer
}

// NewPlaneFilter allocates the device storage of one plane.
func NewPlaneFilter(dev device.Device, layout frame.Layout, sched *Scheduler, recon *Reconstructor, unsharp *Unsharp) (*PlaneFilter, error) {
	spec := device.PlaneSpec{
		Label:       layout.Kind.String(),
		Width:       layout.Width,
		Height:      layout.Height,
		PatchSize:   sched.PatchSize(),
		Mode:        recon.Mode(),
		Divisors:    recon.Divisors(layout.Width, layout.Height),
		UnsharpTaps: unsharp.Taps(),
	}
	p, err := dev.NewPlane(spec)
	if err != nil {
		return nil, fmt.Errorf("allocate plane %s: %w", spec.Label, err)
	}
	return &PlaneFilter{
		kind:    layout.Kind,
		dev:     dev,
		plane:   p,
		sched:   sched,
		recon:   recon,
		unsharp: unsharp,
	}, nil
}

// Kind returns the plane this filter owns.
func (f *PlaneFilter) Kind() frame.PlaneKind { return f.kind }

// State returns the current stage.
func (f *PlaneFilter) State() State { return f.state }

// OnTransition installs an observer; nil removes it.
func (f *PlaneFilter) OnTransition(obs Observer) { f.observer = obs }

func (f *PlaneFilter) enter(to State) {
	from := f.state
	f.state = to
	if f.observer != nil {
		f.observer(f.kind, from, to)
	}
}

// Run filters samples in place. On failure the filter returns to Idle.
func (f *PlaneFilter) Run(samples []byte, threshold, amount float32) (err error) {
	defer func() {
		if err != nil {
			if f.state != Idle {
				f.enter(Idle)
			}
			logrus.WithFields(logrus.Fields{
				"function": "PlaneFilter.Run",
				"plane":    f.kind.String(),
				"error":    err.Error(),
			}).Error("Plane filter failed")
		}
	}()

	if err := f.dev.Upload(f.plane, samples); err != nil {
		return err
	}
	f.enter(Uploaded)

	if err := f.dev.Clear(f.plane); err != nil {
		return err
	}
	f.enter(Accumulating)
	if _, err := f.sched.Run(f.plane, threshold); err != nil {
		return err
	}

	if err := f.recon.Run(f.plane); err != nil {
		return err
	}
	f.enter(Reconstructed)

	if f.unsharp.Active(amount) {
		if err := f.unsharp.Run(f.plane, amount); err != nil {
			return err
		}
		f.enter(Sharpened)
	}

	if err := f.dev.Download(f.plane, samples); err != nil {
		return err
	}
	f.enter(Downloaded)
	f.enter(Idle)
	return nil
}
