package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/settings"
	"github.com/osa030/bgmbox/internal/domain/preferences"
	"github.com/osa030/bgmbox/internal/domain/track"
)

// Default configuration values.
const (
	DefaultFadeSteps    = 10
	DefaultFadeDuration = 1000 * time.Millisecond
)

// Config holds controller configuration.
type Config struct {
	Catalog             track.Catalog // Track to resource mapping
	FadeSteps           int           // Volume steps per fade half, at least DefaultFadeSteps; step interval is duration/(2*FadeSteps)
	DefaultFadeDuration time.Duration // Used when CrossfadeTo is given a non-positive duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the wall-clock scheduler used by fades.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// session is the active background music playback.
type session struct {
	id     string
	track  track.ID
	device Device
	loop   bool
}

// effectSession is the active sound effect.
type effectSession struct {
	track  track.ID
	device Device
}

// pendingRequest is a background request waiting for a gesture or a retry.
type pendingRequest struct {
	track track.ID
	loop  bool
}

// Status is a snapshot of the controller state.
type Status struct {
	State       State
	Gesture     bool
	Playing     bool
	Track       track.ID // Empty when no session
	SessionID   string
	Pending     track.ID // Empty when nothing is pending
	Fading      bool
	Effect      track.ID // Empty when no effect is active
	Preferences preferences.Preferences
}

// Controller owns the background music session, the sound effect session
// and the user's audio preferences.
type Controller struct {
	mu sync.Mutex

	config    Config
	factory   DeviceFactory
	persister *settings.Persister
	scheduler Scheduler

	prefs   preferences.Preferences
	gesture bool
	pending *pendingRequest
	session *session
	effect  *effectSession
	fade    *fade

	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

// NewController creates a controller in the locked state with preferences
// loaded from persister.
func NewController(config Config, factory DeviceFactory, persister *settings.Persister, opts ...Option) *Controller {
	if config.Catalog.Len() == 0 {
		config.Catalog = track.DefaultCatalog()
	}
	if config.FadeSteps < DefaultFadeSteps {
		config.FadeSteps = DefaultFadeSteps
	}
	if config.DefaultFadeDuration <= 0 {
		config.DefaultFadeDuration = DefaultFadeDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:    config,
		factory:   factory,
		persister: persister,
		scheduler: WallClock(),
		prefs:     persister.Load(),
		eventCh:   make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	zlog.Debug().Msgf("playback: controller created: bg_volume=%.2f sfx_volume=%.2f muted=%t",
		c.prefs.BackgroundVolume, c.prefs.EffectVolume, c.prefs.Muted)
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// NotifyUserGesture latches the gesture flag. The first call starts the
// pending track unless muted; later calls do nothing.
func (c *Controller) NotifyUserGesture() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gesture {
		return
	}
	c.latchGestureLocked()

	if c.pending != nil {
		if c.prefs.Muted {
			c.holdPendingLocked()
			return
		}
		c.startPendingLocked()
	}
}

// PlayBackground plays id as background music. Before the user gesture the
// request is only remembered, replacing any earlier one.
func (c *Controller) PlayBackground(id track.ID, loop bool) {
	c.config.Catalog.MustURI(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gesture {
		c.deferLocked(id, loop, ReasonNoGesture)
		return
	}

	if s := c.session; s != nil && s.track == id && !s.device.Paused() {
		c.settleFadeLocked()
		zlog.Debug().Msgf("playback: already playing, skipped: track=%s", id)
		return
	}

	c.cancelFadeLocked()
	c.startSessionLocked(id, loop, c.prefs.EffectiveBackgroundVolume())
}

// StopBackground stops the background session and drops any pending request.
func (c *Controller) StopBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelFadeLocked()
	c.pending = nil
	c.stopSessionLocked()
}

// ToggleBackground pauses a playing session or resumes a paused one. It
// counts as a user gesture, so a pending track is started instead when
// there is one and audio is not muted.
func (c *Controller) ToggleBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latchGestureLocked()

	if c.pending != nil && !c.prefs.Muted {
		c.cancelFadeLocked()
		c.startPendingLocked()
		return
	}

	s := c.session
	if s == nil {
		return
	}
	c.settleFadeLocked()

	if s.device.Paused() {
		c.resumeLocked(s)
		return
	}
	s.device.Pause()
	c.sendEventLocked(Event{Type: EventTrackPaused, Track: s.track, SessionID: s.id})
}

// UserClickPlay handles an explicit play button: it counts as a gesture,
// starts the pending track, or resumes a paused session.
func (c *Controller) UserClickPlay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latchGestureLocked()

	if c.pending != nil && !c.prefs.Muted {
		c.cancelFadeLocked()
		c.startPendingLocked()
		return
	}
	if c.pending != nil {
		c.holdPendingLocked()
	}
	if s := c.session; s != nil && s.device.Paused() {
		c.settleFadeLocked()
		c.resumeLocked(s)
	}
}

// PlayEffect plays id once on the effect channel, replacing any running
// effect. Nothing happens while muted. Failures are logged, not returned.
func (c *Controller) PlayEffect(id track.ID) {
	uri := c.config.Catalog.MustURI(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prefs.Muted {
		zlog.Debug().Msgf("playback: effect suppressed while muted: track=%s", id)
		return
	}
	c.stopEffectLocked()

	dev, err := c.factory.NewDevice()
	if err != nil {
		zlog.Warn().Msgf("playback: effect device unavailable: track=%s error=%v", id, err)
		return
	}
	if err := dev.Load(uri); err != nil {
		zlog.Warn().Msgf("playback: effect load failed: track=%s uri=%s error=%v", id, uri, err)
		release(dev)
		return
	}
	dev.SetLoop(false)
	dev.SetVolume(c.prefs.EffectVolume)

	e := &effectSession{track: id, device: dev}
	c.effect = e
	c.sendEventLocked(Event{Type: EventEffectStarted, Track: id})

	c.await(dev.Play(), func(err error) {
		c.onEffectResultLocked(e, err)
	})
}

// StopEffect stops the running effect, if any.
func (c *Controller) StopEffect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopEffectLocked()
}

// CrossfadeTo fades the current track out and newTrack in over d, split
// evenly between the two halves. A non-positive d uses the configured
// default. Asking for the track already playing does nothing.
func (c *Controller) CrossfadeTo(newTrack track.ID, d time.Duration) {
	c.config.Catalog.MustURI(newTrack)
	if d <= 0 {
		d = c.config.DefaultFadeDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.gesture {
		c.deferLocked(newTrack, true, ReasonNoGesture)
		return
	}
	if c.session != nil && c.session.track == newTrack {
		return
	}
	if c.fade != nil && c.fade.target == newTrack && c.fade.incoming == nil {
		return
	}

	c.cancelFadeLocked()
	c.stopEffectLocked()
	c.beginFadeLocked(newTrack, d)
}

// SetBackgroundVolume sets and persists the background volume, clamped to [0,1].
func (c *Controller) SetBackgroundVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prefs.BackgroundVolume = preferences.Clamp(v)
	if c.session != nil && c.fade == nil && !c.prefs.Muted {
		c.session.device.SetVolume(c.prefs.BackgroundVolume)
	}
	c.persistLocked()
}

// SetEffectVolume sets and persists the effect volume, clamped to [0,1].
func (c *Controller) SetEffectVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prefs.EffectVolume = preferences.Clamp(v)
	if c.effect != nil {
		c.effect.device.SetVolume(c.prefs.EffectVolume)
	}
	c.persistLocked()
}

// SetMuted mutes or unmutes without stopping the background session.
// Unmuting is treated as a gesture and starts any pending track; setting
// the current value changes nothing else.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMutedLocked(muted)
}

// ToggleMute flips the mute flag.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMutedLocked(!c.prefs.Muted)
}

func (c *Controller) setMutedLocked(muted bool) {
	wasMuted := c.prefs.Muted
	c.prefs.Muted = muted
	if c.session != nil && (muted || c.fade == nil) {
		c.session.device.SetVolume(c.prefs.EffectiveBackgroundVolume())
	}
	if muted {
		c.stopEffectLocked()
	}
	c.persistLocked()

	if !muted && wasMuted && c.pending != nil {
		c.latchGestureLocked()
		c.cancelFadeLocked()
		c.startPendingLocked()
	}
}

// IsPlaying reports whether a background session is producing sound.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPlayingLocked()
}

// CurrentTrack returns the track of the background session.
func (c *Controller) CurrentTrack() (track.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", false
	}
	return c.session.track, true
}

// HasPendingTrack reports whether a background request is waiting.
func (c *Controller) HasPendingTrack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// PendingTrack returns the waiting background request.
func (c *Controller) PendingTrack() (track.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return "", false
	}
	return c.pending.track, true
}

// GestureObserved reports whether the user gesture has been seen.
func (c *Controller) GestureObserved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesture
}

// State returns the gesture gate state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Preferences returns the current preferences.
func (c *Controller) Preferences() preferences.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:       c.stateLocked(),
		Gesture:     c.gesture,
		Playing:     c.isPlayingLocked(),
		Fading:      c.fade != nil,
		Preferences: c.prefs,
	}
	if c.session != nil {
		st.Track = c.session.track
		st.SessionID = c.session.id
	}
	if c.pending != nil {
		st.Pending = c.pending.track
	}
	if c.effect != nil {
		st.Effect = c.effect.track
	}
	return st
}

// Done returns a channel that is closed when the controller is closed.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close stops everything and closes the event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.cancelFadeLocked()
	c.stopSessionLocked()
	c.stopEffectLocked()
	c.closed = true
	c.cancel()
	close(c.eventCh)
}

func (c *Controller) stateLocked() State {
	if c.gesture {
		return StateUnlocked
	}
	return StateLocked
}

func (c *Controller) isPlayingLocked() bool {
	return c.session != nil && !c.session.device.Paused()
}

func (c *Controller) latchGestureLocked() {
	if c.gesture {
		return
	}
	c.gesture = true
	zlog.Info().Msg("playback: user gesture observed, audio unlocked")

	if l, ok := c.factory.(GestureListener); ok {
		l.OnUserGesture()
	}
	c.sendEventLocked(Event{Type: EventGestureObserved})
}

// deferLocked stores a background request as the single pending one.
func (c *Controller) deferLocked(id track.ID, loop bool, reason string) {
	c.pending = &pendingRequest{track: id, loop: loop}
	zlog.Debug().Msgf("playback: track deferred: track=%s reason=%s", id, reason)
	c.sendEventLocked(Event{Type: EventTrackDeferred, Track: id, Reason: reason})
}

// holdPendingLocked keeps the pending request after a gesture because audio
// is muted. Unmuting starts it.
func (c *Controller) holdPendingLocked() {
	c.deferLocked(c.pending.track, c.pending.loop, ReasonMuted)
}

func (c *Controller) startPendingLocked() {
	p := c.pending
	c.startSessionLocked(p.track, p.loop, c.prefs.EffectiveBackgroundVolume())
}

// startSessionLocked replaces the background session with a new one for id.
// It returns nil when the start failed and id became pending again.
func (c *Controller) startSessionLocked(id track.ID, loop bool, volume float64) *session {
	uri := c.config.Catalog.MustURI(id)

	c.stopSessionLocked()
	c.stopEffectLocked()
	c.pending = nil

	dev, err := c.factory.NewDevice()
	if err != nil {
		c.rejectLocked(id, loop, ReasonDeviceUnavailable, err)
		return nil
	}
	if err := dev.Load(uri); err != nil {
		release(dev)
		c.rejectLocked(id, loop, ReasonLoadFailed, err)
		return nil
	}
	dev.SetLoop(loop)
	dev.SetVolume(volume)

	s := &session{id: uuid.NewString(), track: id, device: dev, loop: loop}
	c.session = s
	zlog.Debug().Msgf("playback: starting session: track=%s session=%s loop=%t volume=%.2f", id, s.id, loop, volume)

	c.await(dev.Play(), func(err error) {
		c.onStartResultLocked(s, err, EventTrackStarted)
	})

	if c.session != s {
		return nil
	}
	return s
}

func (c *Controller) resumeLocked(s *session) {
	c.await(s.device.Play(), func(err error) {
		c.onStartResultLocked(s, err, EventTrackResumed)
	})
}

// onStartResultLocked applies a start acknowledgement. Acknowledgements for
// a session that has since been replaced are ignored.
func (c *Controller) onStartResultLocked(s *session, err error, started EventType) {
	if c.session != s {
		zlog.Debug().Msgf("playback: stale start acknowledgement ignored: track=%s session=%s", s.track, s.id)
		return
	}
	if err != nil {
		c.session = nil
		release(s.device)
		c.rejectLocked(s.track, s.loop, ReasonPlayRejected, err)
		return
	}
	c.sendEventLocked(Event{Type: started, Track: s.track, SessionID: s.id})
}

func (c *Controller) rejectLocked(id track.ID, loop bool, reason string, err error) {
	c.pending = &pendingRequest{track: id, loop: loop}
	zlog.Warn().Msgf("playback: start failed, track pending: track=%s reason=%s error=%v", id, reason, err)
	c.sendEventLocked(Event{Type: EventStartRejected, Track: id, Reason: reason})
}

func (c *Controller) onEffectResultLocked(e *effectSession, err error) {
	if err == nil {
		return
	}
	zlog.Warn().Msgf("playback: effect playback failed: track=%s error=%v", e.track, err)
	if c.effect == e {
		c.effect = nil
		release(e.device)
	}
}

// await delivers the device acknowledgement to fn under the lock. An
// acknowledgement that is already available is applied before returning.
// Must be called with lock held.
func (c *Controller) await(ack <-chan error, fn func(err error)) {
	select {
	case err := <-ack:
		fn(err)
		return
	default:
	}

	go func() {
		select {
		case err := <-ack:
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.closed {
				return
			}
			fn(err)
		case <-c.ctx.Done():
		}
	}()
}

func (c *Controller) stopSessionLocked() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	release(s.device)
	c.sendEventLocked(Event{Type: EventTrackStopped, Track: s.track, SessionID: s.id})
}

func (c *Controller) stopEffectLocked() {
	e := c.effect
	if e == nil {
		return
	}
	c.effect = nil
	release(e.device)
}

func (c *Controller) persistLocked() {
	if err := c.persister.Save(c.prefs); err != nil {
		zlog.Warn().Msgf("playback: failed to persist preferences: %v", err)
	}
	c.sendEventLocked(Event{Type: EventPreferencesChanged})
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	e.State = c.stateLocked()
	select {
	case c.eventCh <- e:
	default:
		zlog.Debug().Msgf("playback: event dropped, channel full: type=%s", e.Type)
	}
}

// release stops a device and frees it.
func release(d Device) {
	d.Pause()
	d.ResetPosition()
	if err := d.Close(); err != nil {
		zlog.Debug().Msgf("playback: device close failed: %v", err)
	}
}
