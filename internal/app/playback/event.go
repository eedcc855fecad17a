package playback

import "github.com/osa030/bgmbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventGestureObserved    EventType = iota // Gesture latch flipped
	EventTrackDeferred                       // Background request stored as pending
	EventTrackStarted                        // Background device acknowledged start
	EventStartRejected                       // Background start failed; track is pending again
	EventTrackStopped                        // Background session stopped and released
	EventTrackPaused                         // Background session paused
	EventTrackResumed                        // Paused background session resumed
	EventFadeStarted                         // Cross-fade began
	EventFadeCompleted                       // Cross-fade reached the target volume
	EventEffectStarted                       // Sound effect started
	EventPreferencesChanged                  // Volume or mute changed and was persisted
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventGestureObserved:
		return "gesture_observed"
	case EventTrackDeferred:
		return "track_deferred"
	case EventTrackStarted:
		return "track_started"
	case EventStartRejected:
		return "start_rejected"
	case EventTrackStopped:
		return "track_stopped"
	case EventTrackPaused:
		return "track_paused"
	case EventTrackResumed:
		return "track_resumed"
	case EventFadeStarted:
		return "fade_started"
	case EventFadeCompleted:
		return "fade_completed"
	case EventEffectStarted:
		return "effect_started"
	case EventPreferencesChanged:
		return "preferences_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type      EventType
	Track     track.ID // Track concerned (empty for some events)
	SessionID string   // Background session ID (empty when none)
	Reason    string   // Why a request was deferred or rejected
	State     State    // Gesture gate state at emission
}
