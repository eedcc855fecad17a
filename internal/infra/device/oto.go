package device

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/ebitengine/oto/v3"
	"github.com/go-playground/validator/v10"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/playback"
)

// OtoConfig configures the audio output.
type OtoConfig struct {
	SampleRate int `mapstructure:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	BufferMs   int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// go-mp3 always decodes to 16-bit little-endian stereo.
const bytesPerFrame = 4

// The oto context is process-wide and can only be created once.
var (
	otoOnce    sync.Once
	otoCtx     *oto.Context
	otoInitErr error
)

func otoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoInitErr == nil {
			<-ready
		}
	})
	return otoCtx, otoInitErr
}

// OtoFactory creates devices that decode mp3 resources and play them through
// the system audio output.
type OtoFactory struct {
	config OtoConfig
	ctx    *oto.Context
}

var _ playback.DeviceFactory = (*OtoFactory)(nil)

// NewOtoFactory creates an oto factory from a free-form settings map and
// initializes the audio output.
func NewOtoFactory(settings map[string]any) (*OtoFactory, error) {
	var config OtoConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid oto device settings")
	}

	ctx, err := otoContext(config.SampleRate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize audio output")
	}
	zlog.Info().Msgf("oto: audio output ready: sample_rate=%d buffer_ms=%d", config.SampleRate, config.BufferMs)

	return &OtoFactory{config: config, ctx: ctx}, nil
}

// NewDevice implements playback.DeviceFactory.
func (f *OtoFactory) NewDevice() (playback.Device, error) {
	return &otoDevice{factory: f, volume: 1}, nil
}

type otoDevice struct {
	factory *OtoFactory

	mu     sync.Mutex
	player *oto.Player
	stream *loopStream
	volume float64
	loop   bool
}

func (d *otoDevice) Load(uri string) error {
	data, err := os.ReadFile(uri)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", uri)
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", uri)
	}
	if dec.SampleRate() != d.factory.config.SampleRate {
		return errors.Newf("%s: sample rate %d does not match output %d", uri, dec.SampleRate(), d.factory.config.SampleRate)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player != nil {
		d.player.Pause()
	}
	d.stream = newLoopStream(dec)
	d.stream.SetLoop(d.loop)
	d.player = d.factory.ctx.NewPlayer(d.stream)
	d.player.SetBufferSize(d.factory.config.SampleRate * bytesPerFrame * d.factory.config.BufferMs / 1000)
	d.player.SetVolume(d.volume)
	return nil
}

func (d *otoDevice) Play() <-chan error {
	ack := make(chan error, 1)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player == nil {
		ack <- ErrNotLoaded
		return ack
	}
	d.player.Play()
	ack <- d.player.Err()
	return ack
}

func (d *otoDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
}

func (d *otoDevice) ResetPosition() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return
	}
	if _, err := d.player.Seek(0, io.SeekStart); err != nil {
		zlog.Warn().Msgf("oto: rewind failed: error=%v", err)
	}
}

func (d *otoDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *otoDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = v
	if d.player != nil {
		d.player.SetVolume(v)
	}
}

func (d *otoDevice) Loop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

func (d *otoDevice) SetLoop(loop bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loop = loop
	if d.stream != nil {
		d.stream.SetLoop(loop)
	}
}

func (d *otoDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.player == nil || !d.player.IsPlaying()
}

// Close pauses the player and drops it. The decoded buffer is garbage once
// the player is unreachable.
func (d *otoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
		d.player = nil
		d.stream = nil
	}
	return nil
}

// loopStream rewinds its source at EOF while looping is enabled.
type loopStream struct {
	src  io.ReadSeeker
	loop atomic.Bool
}

func newLoopStream(src io.ReadSeeker) *loopStream {
	return &loopStream{src: src}
}

func (s *loopStream) SetLoop(loop bool) {
	s.loop.Store(loop)
}

func (s *loopStream) Read(p []byte) (int, error) {
	n, err := s.src.Read(p)
	if !errors.Is(err, io.EOF) || !s.loop.Load() {
		return n, err
	}
	if _, serr := s.src.Seek(0, io.SeekStart); serr != nil {
		return n, serr
	}
	if n > 0 {
		return n, nil
	}
	return s.src.Read(p)
}

func (s *loopStream) Seek(offset int64, whence int) (int64, error) {
	return s.src.Seek(offset, whence)
}
