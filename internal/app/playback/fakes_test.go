package playback

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa030/bgmbox/internal/app/settings"
	"github.com/osa030/bgmbox/internal/domain/preferences"
)

// fakeDevice records every call made by the controller.
type fakeDevice struct {
	mu sync.Mutex

	loadErr  error
	playErr  error
	deferAck bool
	ack      chan error

	uri          string
	volume       float64
	loop         bool
	paused       bool
	closed       bool
	playCalls    int
	pauseCalls   int
	resetCalls   int
	volumeWrites []float64
}

func (d *fakeDevice) Load(uri string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uri = uri
	return d.loadErr
}

func (d *fakeDevice) Play() <-chan error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.playCalls++
	d.ack = make(chan error, 1)
	if d.deferAck {
		return d.ack
	}
	if d.playErr == nil {
		d.paused = false
	}
	d.ack <- d.playErr
	return d.ack
}

// resolve delivers a deferred start acknowledgement.
func (d *fakeDevice) resolve(err error) {
	d.mu.Lock()
	if err == nil {
		d.paused = false
	}
	ack := d.ack
	d.mu.Unlock()
	ack <- err
}

func (d *fakeDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauseCalls++
	d.paused = true
}

func (d *fakeDevice) ResetPosition() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetCalls++
}

func (d *fakeDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *fakeDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = v
	d.volumeWrites = append(d.volumeWrites, v)
}

func (d *fakeDevice) Loop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

func (d *fakeDevice) SetLoop(loop bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loop = loop
}

func (d *fakeDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDevice) writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.volumeWrites)
}

func (d *fakeDevice) plays() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playCalls
}

// fakeFactory hands out fakeDevices configured by the test.
type fakeFactory struct {
	mu sync.Mutex

	newErr   error
	loadErr  error
	playErr  error
	deferAck bool
	gestures int

	devices []*fakeDevice
}

func (f *fakeFactory) NewDevice() (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.newErr != nil {
		return nil, f.newErr
	}
	d := &fakeDevice{
		loadErr:  f.loadErr,
		playErr:  f.playErr,
		deferAck: f.deferAck,
		paused:   true,
		volume:   1,
	}
	f.devices = append(f.devices, d)
	return d, nil
}

func (f *fakeFactory) OnUserGesture() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures++
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}

func (f *fakeFactory) last() *fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.devices) == 0 {
		return nil
	}
	return f.devices[len(f.devices)-1]
}

func (f *fakeFactory) setPlayErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr = err
}

// memStore is an in-memory settings.Store.
type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	writes int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Read(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Write(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.data[key] = value
	return nil
}

// manualScheduler fires callbacks only when the test advances time.
type manualScheduler struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() {
	s.seq++
	t := &manualTimer{at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return func() { t.stopped = true }
}

// Advance moves time forward by d, firing due callbacks in order.
func (s *manualScheduler) Advance(d time.Duration) {
	end := s.now + d
	for {
		due := make([]*manualTimer, 0)
		for _, t := range s.timers {
			if !t.fired && !t.stopped && t.at <= end {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at == due[j].at {
				return due[i].seq < due[j].seq
			}
			return due[i].at < due[j].at
		})
		t := due[0]
		t.fired = true
		s.now = t.at
		t.f()
	}
	s.now = end
}

// pendingTimers returns the number of callbacks still waiting to fire.
func (s *manualScheduler) pendingTimers() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type harness struct {
	ctrl      *Controller
	factory   *fakeFactory
	store     *memStore
	scheduler *manualScheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, newMemStore())
}

func newHarnessWithStore(t *testing.T, store *memStore) *harness {
	t.Helper()
	h := &harness{
		factory:   &fakeFactory{},
		store:     store,
		scheduler: &manualScheduler{},
	}
	h.ctrl = NewController(Config{}, h.factory, settings.NewPersister(store, ""), WithScheduler(h.scheduler))
	t.Cleanup(h.ctrl.Close)
	return h
}

// savedPreferences decodes what the controller last persisted.
func (h *harness) savedPreferences(t *testing.T) preferences.Preferences {
	t.Helper()
	h.store.mu.Lock()
	raw, ok := h.store.data[settings.DefaultKey]
	h.store.mu.Unlock()
	require.True(t, ok, "preferences were never persisted")
	p, err := settings.Decode(raw)
	require.NoError(t, err)
	return p
}
