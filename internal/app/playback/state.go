// Package playback provides the gesture-gated background music and sound
// effect controller.
package playback

// State represents the gesture gate.
type State int

const (
	StateLocked   State = iota // No user gesture observed yet; background requests are deferred
	StateUnlocked              // Gesture observed; background requests start devices
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Reasons attached to EventTrackDeferred and EventStartRejected.
const (
	ReasonNoGesture         = "no_gesture"
	ReasonMuted             = "muted"
	ReasonDeviceUnavailable = "device_unavailable"
	ReasonLoadFailed        = "load_failed"
	ReasonPlayRejected      = "play_rejected"
)
