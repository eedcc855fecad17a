// Package device provides playback device implementations.
package device

import (
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/playback"
)

var (
	// ErrAutoplayBlocked is delivered as the start acknowledgement while the
	// headless factory blocks playback.
	ErrAutoplayBlocked = errors.New("autoplay blocked until a user gesture")

	// ErrNotLoaded is returned when a device is started before Load.
	ErrNotLoaded = errors.New("no resource loaded")
)

// HeadlessConfig configures the headless device.
type HeadlessConfig struct {
	// AutoplayBlocked rejects every start until a user gesture reaches the
	// factory or Unblock is called.
	AutoplayBlocked bool `mapstructure:"autoplay_blocked"`
	// CheckFiles makes Load fail for resources that do not exist on disk.
	CheckFiles bool `mapstructure:"check_files"`
	// AckDelayMs delays every start acknowledgement.
	AckDelayMs int `mapstructure:"ack_delay_ms" validate:"gte=0,lte=10000"`
}

// HeadlessFactory creates devices that track playback state without
// producing sound.
type HeadlessFactory struct {
	mu       sync.Mutex
	config   HeadlessConfig
	blocked  bool
	created  int
	gestures int
}

var (
	_ playback.DeviceFactory   = (*HeadlessFactory)(nil)
	_ playback.GestureListener = (*HeadlessFactory)(nil)
)

// NewHeadlessFactory creates a headless factory from a free-form settings map.
func NewHeadlessFactory(settings map[string]any) (*HeadlessFactory, error) {
	var config HeadlessConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid headless device settings")
	}
	zlog.Debug().Msgf("headless device config: %+v", config)

	return &HeadlessFactory{
		config:  config,
		blocked: config.AutoplayBlocked,
	}, nil
}

// NewDevice implements playback.DeviceFactory.
func (f *HeadlessFactory) NewDevice() (playback.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &headlessDevice{factory: f, volume: 1, paused: true}, nil
}

// OnUserGesture lifts the autoplay block.
func (f *HeadlessFactory) OnUserGesture() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures++
	if f.blocked {
		zlog.Debug().Msg("headless: autoplay unblocked by user gesture")
	}
	f.blocked = false
}

// Block makes subsequent starts fail until the next gesture or Unblock.
func (f *HeadlessFactory) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = true
}

// Unblock lifts the autoplay block without a gesture.
func (f *HeadlessFactory) Unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = false
}

// Blocked reports whether starts are currently rejected.
func (f *HeadlessFactory) Blocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked
}

// Created returns how many devices the factory has handed out.
func (f *HeadlessFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *HeadlessFactory) startError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked {
		return ErrAutoplayBlocked
	}
	return nil
}

func (f *HeadlessFactory) ackDelay() time.Duration {
	return time.Duration(f.config.AckDelayMs) * time.Millisecond
}

type headlessDevice struct {
	factory *HeadlessFactory

	mu     sync.Mutex
	uri    string
	volume float64
	loop   bool
	paused bool
	closed bool
}

func (d *headlessDevice) Load(uri string) error {
	if d.factory.config.CheckFiles {
		if _, err := os.Stat(uri); err != nil {
			return errors.Wrapf(err, "failed to load %s", uri)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uri = uri
	return nil
}

func (d *headlessDevice) Play() <-chan error {
	ack := make(chan error, 1)

	d.mu.Lock()
	loaded := d.uri != ""
	d.mu.Unlock()

	err := d.factory.startError()
	if !loaded {
		err = ErrNotLoaded
	}

	finish := func() {
		d.mu.Lock()
		if err == nil && !d.closed {
			d.paused = false
		}
		d.mu.Unlock()
		ack <- err
	}

	if delay := d.factory.ackDelay(); delay > 0 {
		time.AfterFunc(delay, finish)
	} else {
		finish()
	}
	return ack
}

func (d *headlessDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

func (d *headlessDevice) ResetPosition() {}

func (d *headlessDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *headlessDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = v
}

func (d *headlessDevice) Loop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

func (d *headlessDevice) SetLoop(loop bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loop = loop
}

func (d *headlessDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *headlessDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.paused = true
	return nil
}
