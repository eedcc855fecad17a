package playback

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/domain/track"
)

// fade is one cross-fade in flight. Every scheduled step checks ctx and the
// identity of the session it drives before touching a device.
type fade struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() // Cancels the scheduled step

	target   track.ID
	steps    int
	interval time.Duration
	half     time.Duration

	outgoing *session // Session being faded out (nil once released)
	from     float64  // Outgoing volume when the fade began
	incoming *session // Session being faded in (nil before the midpoint)
	step     int
}

// beginFadeLocked starts a cross-fade to target over d.
// Must be called with lock held and no fade in flight.
func (c *Controller) beginFadeLocked(target track.ID, d time.Duration) {
	half := d / 2
	steps := c.config.FadeSteps

	ctx, cancel := context.WithCancel(c.ctx)
	f := &fade{
		ctx:      ctx,
		cancel:   cancel,
		target:   target,
		steps:    steps,
		interval: half / time.Duration(steps),
		half:     half,
	}
	c.fade = f

	zlog.Debug().Msgf("playback: fade started: target=%s duration=%v interval=%v", target, d, f.interval)
	c.sendEventLocked(Event{Type: EventFadeStarted, Track: target})

	if c.session != nil {
		f.outgoing = c.session
		f.from = c.session.device.Volume()
		c.scheduleFadeLocked(f, f.interval, c.fadeOutStepLocked)
		return
	}
	c.scheduleFadeLocked(f, half, c.fadeMidpointLocked)
}

// scheduleFadeLocked runs step after d unless f has been cancelled by then.
func (c *Controller) scheduleFadeLocked(f *fade, d time.Duration, step func(f *fade)) {
	f.stop = c.scheduler.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if f.ctx.Err() != nil || c.fade != f {
			return
		}
		step(f)
	})
}

func (c *Controller) fadeOutStepLocked(f *fade) {
	if c.session != f.outgoing {
		c.abandonFadeLocked(f)
		return
	}

	f.step++
	if f.step >= f.steps {
		c.fadeMidpointLocked(f)
		return
	}

	vol := f.from * (1 - float64(f.step)/float64(f.steps))
	if c.prefs.Muted {
		vol = 0
	}
	f.outgoing.device.SetVolume(vol)
	c.scheduleFadeLocked(f, f.interval, c.fadeOutStepLocked)
}

// fadeMidpointLocked silences and releases the outgoing session, then starts
// the target at volume 0.
func (c *Controller) fadeMidpointLocked(f *fade) {
	if f.outgoing != nil {
		if c.session != f.outgoing {
			c.abandonFadeLocked(f)
			return
		}
		f.outgoing.device.SetVolume(0)
		f.outgoing = nil
	}

	s := c.startSessionLocked(f.target, true, 0)
	if s == nil {
		c.abandonFadeLocked(f)
		return
	}

	f.incoming = s
	f.step = 0
	c.scheduleFadeLocked(f, f.interval, c.fadeInStepLocked)
}

func (c *Controller) fadeInStepLocked(f *fade) {
	if c.session != f.incoming {
		c.abandonFadeLocked(f)
		return
	}

	f.step++
	target := c.prefs.EffectiveBackgroundVolume()
	if f.step >= f.steps {
		f.incoming.device.SetVolume(target)
		c.finishFadeLocked(f)
		c.sendEventLocked(Event{Type: EventFadeCompleted, Track: f.target, SessionID: f.incoming.id})
		zlog.Debug().Msgf("playback: fade completed: target=%s volume=%.2f", f.target, target)
		return
	}

	f.incoming.device.SetVolume(target * float64(f.step) / float64(f.steps))
	c.scheduleFadeLocked(f, f.interval, c.fadeInStepLocked)
}

// abandonFadeLocked drops a fade whose session was replaced underneath it.
func (c *Controller) abandonFadeLocked(f *fade) {
	zlog.Debug().Msgf("playback: fade abandoned: target=%s", f.target)
	c.finishFadeLocked(f)
}

func (c *Controller) finishFadeLocked(f *fade) {
	f.cancel()
	if f.stop != nil {
		f.stop()
	}
	if c.fade == f {
		c.fade = nil
	}
}

// cancelFadeLocked cancels the fade in flight and hard-stops every session
// it was driving, without further volume writes.
func (c *Controller) cancelFadeLocked() {
	f := c.fade
	if f == nil {
		return
	}
	c.finishFadeLocked(f)

	for _, s := range []*session{f.outgoing, f.incoming} {
		if s != nil && c.session == s {
			c.stopSessionLocked()
		}
	}
	zlog.Debug().Msgf("playback: fade cancelled: target=%s", f.target)
}

// settleFadeLocked cancels the fade in flight but keeps the current session,
// jumping it to the effective background volume.
func (c *Controller) settleFadeLocked() {
	f := c.fade
	if f == nil {
		return
	}
	c.finishFadeLocked(f)
	if c.session != nil {
		c.session.device.SetVolume(c.prefs.EffectiveBackgroundVolume())
	}
}
