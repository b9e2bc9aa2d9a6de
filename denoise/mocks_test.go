package denoise

import (
	"errors"

	"github.com/opd-ai/dctdenoise/device"
)

// recordingDevice records every call and can fail the n-th patch dispatch.
type recordingDevice struct {
	calls      []string
	dispatches []device.PatchDispatch
	failAt     int
	specs      []device.PlaneSpec
}

type recordingPlane struct{ spec device.PlaneSpec }

func (p *recordingPlane) Spec() device.PlaneSpec { return p.spec }

var errInjected = errors.New("injected failure")

func (d *recordingDevice) Name() string { return "recording" }

func (d *recordingDevice) NewPlane(spec device.PlaneSpec) (device.Plane, error) {
	d.specs = append(d.specs, spec)
	return &recordingPlane{spec: spec}, nil
}

func (d *recordingDevice) Upload(p device.Plane, _ []byte) error {
	d.calls = append(d.calls, "upload "+p.Spec().Label)
	return nil
}

func (d *recordingDevice) Clear(p device.Plane) error {
	d.calls = append(d.calls, "clear "+p.Spec().Label)
	return nil
}

func (d *recordingDevice) DispatchPatches(p device.Plane, pd device.PatchDispatch) error {
	d.dispatches = append(d.dispatches, pd)
	if d.failAt > 0 && len(d.dispatches) == d.failAt {
		return errInjected
	}
	return nil
}

func (d *recordingDevice) Normalize(p device.Plane) error {
	d.calls = append(d.calls, "normalize "+p.Spec().Label)
	return nil
}

func (d *recordingDevice) Unsharp(p device.Plane, _ float32) error {
	d.calls = append(d.calls, "unsharp "+p.Spec().Label)
	return nil
}

func (d *recordingDevice) Download(p device.Plane, _ []byte) error {
	d.calls = append(d.calls, "download "+p.Spec().Label)
	return nil
}

func (d *recordingDevice) Stats() device.Stats { return device.Stats{Planes: len(d.specs)} }

func (d *recordingDevice) Close() error { return nil }
