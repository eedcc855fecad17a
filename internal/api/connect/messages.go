package connect

import (
	"github.com/osa030/bgmbox/internal/app/playback"
)

// Empty is the request of procedures that take no arguments.
type Empty struct{}

// TrackRequest names a background track. Loop defaults to true.
type TrackRequest struct {
	Track string `json:"track"`
	Loop  *bool  `json:"loop,omitempty"`
}

// Looping resolves the loop flag.
func (r *TrackRequest) Looping() bool {
	return r.Loop == nil || *r.Loop
}

// EffectRequest names a one-shot effect.
type EffectRequest struct {
	Track string `json:"track"`
}

// CrossfadeRequest names the track to fade to. A zero duration uses the
// server default.
type CrossfadeRequest struct {
	Track      string `json:"track"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// VolumeRequest sets one of the volume preferences.
type VolumeRequest struct {
	Volume float64 `json:"volume"`
}

// MuteRequest sets the mute preference.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// StatusResponse is the controller state after a procedure ran.
type StatusResponse struct {
	State            string  `json:"state"`
	Gesture          bool    `json:"gesture"`
	Playing          bool    `json:"playing"`
	Track            string  `json:"track,omitempty"`
	SessionID        string  `json:"sessionId,omitempty"`
	Pending          string  `json:"pending,omitempty"`
	Fading           bool    `json:"fading"`
	Effect           string  `json:"effect,omitempty"`
	BackgroundVolume float64 `json:"bgVolume"`
	EffectVolume     float64 `json:"sfxVolume"`
	Muted            bool    `json:"isMuted"`
}

func newStatusResponse(st playback.Status) *StatusResponse {
	return &StatusResponse{
		State:            st.State.String(),
		Gesture:          st.Gesture,
		Playing:          st.Playing,
		Track:            st.Track.String(),
		SessionID:        st.SessionID,
		Pending:          st.Pending.String(),
		Fading:           st.Fading,
		Effect:           st.Effect.String(),
		BackgroundVolume: st.Preferences.BackgroundVolume,
		EffectVolume:     st.Preferences.EffectVolume,
		Muted:            st.Preferences.Muted,
	}
}

// TrackInfo is one catalog entry.
type TrackInfo struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// TracksResponse lists the catalog.
type TracksResponse struct {
	Tracks []TrackInfo `json:"tracks"`
}
