package playback

import "time"

// Device plays a single audio resource.
type Device interface {
	// Load prepares the resource at uri for playback.
	Load(uri string) error
	// Play starts or resumes playback. The returned channel delivers exactly
	// one value: nil once playback started, or the reason it was refused.
	Play() <-chan error
	// Pause halts playback, keeping the position.
	Pause()
	// ResetPosition rewinds to the start of the resource.
	ResetPosition()
	Volume() float64
	SetVolume(v float64)
	Loop() bool
	SetLoop(loop bool)
	// Paused reports whether the device is not currently producing sound.
	Paused() bool
	// Close releases the device. It must not be used afterwards.
	Close() error
}

// DeviceFactory creates devices. Each session owns the device it was given.
type DeviceFactory interface {
	NewDevice() (Device, error)
}

// GestureListener is implemented by factories that need to know when the
// user gesture has been observed (e.g. to lift a platform autoplay block).
type GestureListener interface {
	OnUserGesture()
}

// Scheduler runs f once after d. The returned function cancels the call if
// it has not fired yet.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func())
}

type wallClock struct{}

// WallClock returns a Scheduler backed by time.AfterFunc.
func WallClock() Scheduler {
	return wallClock{}
}

func (wallClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
