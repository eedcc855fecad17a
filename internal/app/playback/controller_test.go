package playback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/bgmbox/internal/app/settings"
	"github.com/osa030/bgmbox/internal/domain/preferences"
	"github.com/osa030/bgmbox/internal/domain/track"
)

var errAutoplayBlocked = errors.New("autoplay blocked")

func TestController_InitialState(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, StateLocked, h.ctrl.State())
	assert.False(t, h.ctrl.GestureObserved())
	assert.False(t, h.ctrl.IsPlaying())
	assert.False(t, h.ctrl.HasPendingTrack())
	_, ok := h.ctrl.CurrentTrack()
	assert.False(t, ok)
	assert.Equal(t, preferences.Default(), h.ctrl.Preferences())
}

func TestController_DeferredUntilGesture(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Battle, true)

	assert.True(t, h.ctrl.HasPendingTrack())
	assert.False(t, h.ctrl.IsPlaying())
	assert.Equal(t, 0, h.factory.count(), "no device may be touched before the gesture")

	h.ctrl.NotifyUserGesture()

	assert.True(t, h.ctrl.IsPlaying())
	current, ok := h.ctrl.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, track.Battle, current)
	assert.False(t, h.ctrl.HasPendingTrack())
	assert.Equal(t, StateUnlocked, h.ctrl.State())
	assert.Equal(t, 1, h.factory.gestures)

	dev := h.factory.last()
	assert.Equal(t, "assets/audio/battle-bgm.mp3", dev.uri)
	assert.True(t, dev.loop)
	assert.Equal(t, 0.3, dev.Volume())
}

func TestController_OnlyLastPendingRequestSurvives(t *testing.T) {
	h := newHarness(t)

	for _, id := range []track.ID{track.Home, track.Lobby, track.Battle, track.Victory} {
		h.ctrl.PlayBackground(id, true)
	}

	pending, ok := h.ctrl.PendingTrack()
	require.True(t, ok)
	assert.Equal(t, track.Victory, pending)

	h.ctrl.NotifyUserGesture()

	assert.Equal(t, 1, h.factory.count(), "exactly one session must start")
	current, _ := h.ctrl.CurrentTrack()
	assert.Equal(t, track.Victory, current)
}

func TestController_PendingKeepsLoopFlag(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Defeat, false)
	h.ctrl.NotifyUserGesture()

	assert.False(t, h.factory.last().loop)
}

func TestController_GestureIsIdempotent(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.NotifyUserGesture()
	h.ctrl.NotifyUserGesture()
	h.ctrl.NotifyUserGesture()

	assert.Equal(t, 1, h.factory.count())
	assert.Equal(t, 1, h.factory.gestures)
}

func TestController_GestureWhileMutedKeepsPending(t *testing.T) {
	h := newHarness(t)

	h.ctrl.SetMuted(true)
	h.ctrl.PlayBackground(track.Lobby, true)
	h.ctrl.NotifyUserGesture()

	assert.True(t, h.ctrl.GestureObserved())
	assert.True(t, h.ctrl.HasPendingTrack())
	assert.Equal(t, 0, h.factory.count())

	h.ctrl.SetMuted(false)

	assert.True(t, h.ctrl.IsPlaying())
	current, _ := h.ctrl.CurrentTrack()
	assert.Equal(t, track.Lobby, current)
	assert.False(t, h.ctrl.HasPendingTrack())
}

func TestController_UnmuteActsAsGesture(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetMuted(true)

	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.SetMuted(false)

	assert.True(t, h.ctrl.GestureObserved())
	assert.True(t, h.ctrl.IsPlaying())
}

func TestController_UnmuteWithoutChangeKeepsLocked(t *testing.T) {
	tests := []struct {
		name   string
		unmute func(c *Controller)
	}{
		{name: "set muted false", unmute: func(c *Controller) { c.SetMuted(false) }},
		{name: "set muted false twice", unmute: func(c *Controller) { c.SetMuted(false); c.SetMuted(false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.PlayBackground(track.Home, true)

			tt.unmute(h.ctrl)

			assert.False(t, h.ctrl.GestureObserved())
			assert.Equal(t, StateLocked, h.ctrl.State())
			assert.True(t, h.ctrl.HasPendingTrack())
			assert.Equal(t, 0, h.factory.count())
		})
	}
}

func TestController_GestureWhileMutedReportsReason(t *testing.T) {
	tests := []struct {
		name    string
		gesture func(c *Controller)
	}{
		{name: "notify user gesture", gesture: func(c *Controller) { c.NotifyUserGesture() }},
		{name: "user click play", gesture: func(c *Controller) { c.UserClickPlay() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.SetMuted(true)
			h.ctrl.PlayBackground(track.Lobby, false)
			for len(h.ctrl.Events()) > 0 {
				<-h.ctrl.Events()
			}

			tt.gesture(h.ctrl)

			var held *Event
			for len(h.ctrl.Events()) > 0 {
				e := <-h.ctrl.Events()
				if e.Type == EventTrackDeferred {
					held = &e
				}
			}
			require.NotNil(t, held, "no track_deferred event")
			assert.Equal(t, ReasonMuted, held.Reason)
			assert.Equal(t, track.Lobby, held.Track)
			assert.Equal(t, StateUnlocked, held.State)

			pending, ok := h.ctrl.PendingTrack()
			require.True(t, ok)
			assert.Equal(t, track.Lobby, pending)
		})
	}
}

func TestController_PlaySameTrackTwiceStartsOnce(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()

	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.PlayBackground(track.Home, true)

	require.Equal(t, 1, h.factory.count())
	assert.Equal(t, 1, h.factory.last().plays())
}

func TestController_PlayDifferentTrackReplacesSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()

	h.ctrl.PlayBackground(track.Home, true)
	home := h.factory.last()
	h.ctrl.PlayEffect(track.Victory)
	effect := h.factory.last()

	h.ctrl.PlayBackground(track.Lobby, true)

	assert.True(t, home.isClosed())
	assert.True(t, home.Paused())
	assert.Positive(t, home.resetCalls)
	assert.True(t, effect.isClosed(), "effects stop when the background track changes")
	current, _ := h.ctrl.CurrentTrack()
	assert.Equal(t, track.Lobby, current)
	assert.Equal(t, track.ID(""), h.ctrl.Status().Effect)
}

func TestController_StartRejectedFallsBackToPending(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.factory.setPlayErr(errAutoplayBlocked)

	assert.NotPanics(t, func() { h.ctrl.PlayBackground(track.Lobby, true) })

	assert.False(t, h.ctrl.IsPlaying())
	pending, ok := h.ctrl.PendingTrack()
	require.True(t, ok)
	assert.Equal(t, track.Lobby, pending)
	_, ok = h.ctrl.CurrentTrack()
	assert.False(t, ok)
	assert.True(t, h.factory.last().isClosed())

	// The next gesture-equivalent command retries.
	h.factory.setPlayErr(nil)
	h.ctrl.ToggleBackground()

	assert.True(t, h.ctrl.IsPlaying())
	assert.False(t, h.ctrl.HasPendingTrack())
}

func TestController_AsyncStartRejection(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.factory.deferAck = true

	h.ctrl.PlayBackground(track.Battle, true)
	dev := h.factory.last()
	current, ok := h.ctrl.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, track.Battle, current)

	dev.resolve(errAutoplayBlocked)

	require.Eventually(t, h.ctrl.HasPendingTrack, time.Second, 5*time.Millisecond)
	_, ok = h.ctrl.CurrentTrack()
	assert.False(t, ok)
	assert.True(t, dev.isClosed())
}

func TestController_StaleRejectionIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.factory.deferAck = true

	h.ctrl.PlayBackground(track.Home, true)
	first := h.factory.last()

	h.factory.deferAck = false
	h.ctrl.PlayBackground(track.Lobby, true)
	require.True(t, h.ctrl.IsPlaying())

	first.resolve(errAutoplayBlocked)

	assert.Never(t, h.ctrl.HasPendingTrack, 50*time.Millisecond, 5*time.Millisecond)
	current, _ := h.ctrl.CurrentTrack()
	assert.Equal(t, track.Lobby, current)
}

func TestController_LoadFailureFallsBackToPending(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.factory.loadErr = errors.New("no such file")

	h.ctrl.PlayBackground(track.Victory, true)

	assert.False(t, h.ctrl.IsPlaying())
	pending, ok := h.ctrl.PendingTrack()
	require.True(t, ok)
	assert.Equal(t, track.Victory, pending)
	assert.True(t, h.factory.last().isClosed())
	assert.Equal(t, 0, h.factory.last().plays())
}

func TestController_DeviceUnavailableFallsBackToPending(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.factory.newErr = errors.New("no output device")

	h.ctrl.PlayBackground(track.Home, true)

	assert.True(t, h.ctrl.HasPendingTrack())
	assert.False(t, h.ctrl.IsPlaying())
}

func TestController_StopBackground(t *testing.T) {
	h := newHarness(t)

	assert.NotPanics(t, h.ctrl.StopBackground)

	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	dev := h.factory.last()

	h.ctrl.StopBackground()

	assert.False(t, h.ctrl.IsPlaying())
	assert.True(t, dev.isClosed())
	_, ok := h.ctrl.CurrentTrack()
	assert.False(t, ok)
}

func TestController_StopBackgroundDropsPending(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.StopBackground()
	h.ctrl.NotifyUserGesture()

	assert.False(t, h.ctrl.HasPendingTrack())
	assert.Equal(t, 0, h.factory.count())
}

func TestController_ToggleBackground(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()

	// Nothing to toggle.
	h.ctrl.ToggleBackground()
	assert.Equal(t, 0, h.factory.count())

	h.ctrl.PlayBackground(track.Home, true)
	dev := h.factory.last()

	h.ctrl.ToggleBackground()
	assert.False(t, h.ctrl.IsPlaying())
	assert.False(t, dev.isClosed(), "pause keeps the session")
	current, ok := h.ctrl.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, track.Home, current)

	h.ctrl.ToggleBackground()
	assert.True(t, h.ctrl.IsPlaying())
	assert.Equal(t, 2, dev.plays())
	assert.Equal(t, 1, h.factory.count())
}

func TestController_ToggleBackgroundLatchesGesture(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Lobby, true)
	h.ctrl.ToggleBackground()

	assert.True(t, h.ctrl.GestureObserved())
	assert.True(t, h.ctrl.IsPlaying())
}

func TestController_ResumeRejectedFallsBackToPending(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.ToggleBackground() // pause

	h.factory.last().playErr = errAutoplayBlocked
	h.ctrl.ToggleBackground() // resume, rejected

	assert.False(t, h.ctrl.IsPlaying())
	pending, ok := h.ctrl.PendingTrack()
	require.True(t, ok)
	assert.Equal(t, track.Home, pending)
}

func TestController_UserClickPlay(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Battle, true)
	h.ctrl.UserClickPlay()
	assert.True(t, h.ctrl.GestureObserved())
	assert.True(t, h.ctrl.IsPlaying())

	h.ctrl.ToggleBackground() // pause
	require.False(t, h.ctrl.IsPlaying())

	h.ctrl.UserClickPlay()
	assert.True(t, h.ctrl.IsPlaying())
	assert.Equal(t, 1, h.factory.count())
}

func TestController_PlayEffect(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetEffectVolume(0.8)

	h.ctrl.PlayEffect(track.Victory)

	dev := h.factory.last()
	require.NotNil(t, dev)
	assert.Equal(t, "assets/audio/victory.mp3", dev.uri)
	assert.False(t, dev.loop)
	assert.Equal(t, 0.8, dev.Volume())
	assert.Equal(t, track.Victory, h.ctrl.Status().Effect)

	h.ctrl.PlayEffect(track.Defeat)
	assert.True(t, dev.isClosed(), "a new effect replaces the running one")
	assert.Equal(t, track.Defeat, h.ctrl.Status().Effect)

	h.ctrl.StopEffect()
	assert.True(t, h.factory.last().isClosed())
	assert.Equal(t, track.ID(""), h.ctrl.Status().Effect)
	assert.NotPanics(t, h.ctrl.StopEffect)
}

func TestController_PlayEffectWhileMuted(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.SetMuted(true)
	devices := h.factory.count()

	h.ctrl.PlayEffect(track.Victory)

	assert.Equal(t, devices, h.factory.count(), "no effect device may be created while muted")
	assert.True(t, h.ctrl.IsPlaying())
	current, _ := h.ctrl.CurrentTrack()
	assert.Equal(t, track.Home, current)
}

func TestController_MuteStopsRunningEffect(t *testing.T) {
	h := newHarness(t)
	h.ctrl.PlayEffect(track.Victory)
	effect := h.factory.last()

	h.ctrl.SetMuted(true)

	assert.True(t, effect.isClosed())
}

func TestController_EffectFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.factory.playErr = errAutoplayBlocked

	assert.NotPanics(t, func() { h.ctrl.PlayEffect(track.Defeat) })
	assert.True(t, h.factory.last().isClosed())
	assert.Equal(t, track.ID(""), h.ctrl.Status().Effect)

	h.factory.playErr = nil
	h.factory.loadErr = errors.New("missing")
	assert.NotPanics(t, func() { h.ctrl.PlayEffect(track.Defeat) })
	assert.Equal(t, track.ID(""), h.ctrl.Status().Effect)
}

func TestController_MuteKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.SetBackgroundVolume(0.6)
	h.ctrl.PlayBackground(track.Home, true)
	dev := h.factory.last()

	h.ctrl.SetMuted(true)

	assert.Equal(t, 0.0, dev.Volume())
	assert.True(t, h.ctrl.IsPlaying())
	assert.False(t, dev.isClosed())

	h.ctrl.SetMuted(false)

	assert.Equal(t, 0.6, dev.Volume())
}

func TestController_ToggleMute(t *testing.T) {
	h := newHarness(t)

	h.ctrl.ToggleMute()
	assert.True(t, h.ctrl.Preferences().Muted)
	assert.True(t, h.savedPreferences(t).Muted)

	h.ctrl.ToggleMute()
	assert.False(t, h.ctrl.Preferences().Muted)
	assert.False(t, h.savedPreferences(t).Muted)
}

func TestController_PlayWhileMutedStartsSilent(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.SetMuted(true)

	h.ctrl.PlayBackground(track.Lobby, true)

	assert.Equal(t, 0.0, h.factory.last().Volume())
	assert.True(t, h.ctrl.IsPlaying())
}

func TestController_SetVolumesClampAndApply(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	bg := h.factory.last()
	h.ctrl.PlayEffect(track.Victory)
	sfx := h.factory.last()

	h.ctrl.SetBackgroundVolume(1.7)
	assert.Equal(t, 1.0, bg.Volume())
	assert.Equal(t, 1.0, h.ctrl.Preferences().BackgroundVolume)

	h.ctrl.SetEffectVolume(-3)
	assert.Equal(t, 0.0, sfx.Volume())
	assert.Equal(t, 0.0, h.ctrl.Preferences().EffectVolume)

	saved := h.savedPreferences(t)
	assert.Equal(t, 1.0, saved.BackgroundVolume)
	assert.Equal(t, 0.0, saved.EffectVolume)
}

func TestController_VolumeWhileMutedIsNotApplied(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	dev := h.factory.last()
	h.ctrl.SetMuted(true)

	h.ctrl.SetBackgroundVolume(0.9)

	assert.Equal(t, 0.0, dev.Volume())
	h.ctrl.SetMuted(false)
	assert.Equal(t, 0.9, dev.Volume())
}

func TestController_PreferencesRoundTrip(t *testing.T) {
	store := newMemStore()
	h := newHarnessWithStore(t, store)

	h.ctrl.SetBackgroundVolume(0.7)
	assert.Equal(t, 1, store.writes, "every change is written through")

	again := NewController(Config{}, &fakeFactory{}, settings.NewPersister(store, ""))
	defer again.Close()

	assert.Equal(t, 0.7, again.Preferences().BackgroundVolume)
	assert.Equal(t, 0.5, again.Preferences().EffectVolume)
	assert.False(t, again.Preferences().Muted)
}

func TestController_MalformedPreferencesUseDefaults(t *testing.T) {
	store := newMemStore()
	store.data[settings.DefaultKey] = "{broken"

	h := newHarnessWithStore(t, store)

	assert.Equal(t, preferences.Default(), h.ctrl.Preferences())
}

func TestController_UnknownTrackPanics(t *testing.T) {
	h := newHarness(t)
	unknown := track.ID("credits")

	assert.Panics(t, func() { h.ctrl.PlayBackground(unknown, true) })
	assert.Panics(t, func() { h.ctrl.PlayEffect(unknown) })
	assert.Panics(t, func() { h.ctrl.CrossfadeTo(unknown, time.Second) })
	assert.False(t, h.ctrl.HasPendingTrack())
}

func TestController_Status(t *testing.T) {
	h := newHarness(t)
	h.ctrl.PlayBackground(track.Battle, true)

	st := h.ctrl.Status()
	assert.Equal(t, StateLocked, st.State)
	assert.Equal(t, track.Battle, st.Pending)
	assert.False(t, st.Playing)
	assert.Empty(t, st.SessionID)

	h.ctrl.NotifyUserGesture()

	st = h.ctrl.Status()
	assert.Equal(t, StateUnlocked, st.State)
	assert.True(t, st.Playing)
	assert.Equal(t, track.Battle, st.Track)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, track.ID(""), st.Pending)
}

func TestController_Events(t *testing.T) {
	h := newHarness(t)

	h.ctrl.PlayBackground(track.Home, true)
	h.ctrl.NotifyUserGesture()

	var types []EventType
	for len(h.ctrl.Events()) > 0 {
		types = append(types, (<-h.ctrl.Events()).Type)
	}
	assert.Equal(t, []EventType{EventTrackDeferred, EventGestureObserved, EventTrackStarted}, types)
}

func TestController_Close(t *testing.T) {
	h := newHarness(t)
	h.ctrl.NotifyUserGesture()
	h.ctrl.PlayBackground(track.Home, true)
	bg := h.factory.last()
	h.ctrl.PlayEffect(track.Victory)
	sfx := h.factory.last()

	h.ctrl.Close()
	h.ctrl.Close()

	assert.True(t, bg.isClosed())
	assert.True(t, sfx.isClosed())
	for range h.ctrl.Events() {
	}
	_, open := <-h.ctrl.Events()
	assert.False(t, open)

	select {
	case <-h.ctrl.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}
