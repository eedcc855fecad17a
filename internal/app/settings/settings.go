// Package settings persists audio preferences through a key-value store.
package settings

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/domain/preferences"
)

// DefaultKey is the key the preferences record is stored under.
const DefaultKey = "audio_settings"

// Store is a synchronous key-value persistence surface.
type Store interface {
	// Read returns the value for key. ok is false when the key is absent.
	Read(key string) (value string, ok bool, err error)
	// Write stores value under key, replacing any previous value.
	Write(key, value string) error
}

// record is the persisted form. Pointer fields distinguish absent from zero.
type record struct {
	BgVolume  *float64 `json:"bgVolume"`
	SfxVolume *float64 `json:"sfxVolume"`
	IsMuted   *bool    `json:"isMuted"`
}

// Encode serializes a complete preferences record.
func Encode(p preferences.Preferences) (string, error) {
	bg, sfx, muted := p.BackgroundVolume, p.EffectVolume, p.Muted
	data, err := json.Marshal(record{BgVolume: &bg, SfxVolume: &sfx, IsMuted: &muted})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode preferences")
	}
	return string(data), nil
}

// Decode parses a persisted record. Absent fields take their default value;
// syntax errors, wrong types and out-of-range volumes are reported as errors.
func Decode(raw string) (preferences.Preferences, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return preferences.Default(), errors.Wrap(err, "failed to decode preferences")
	}

	p := preferences.Default()
	if rec.BgVolume != nil {
		p.BackgroundVolume = *rec.BgVolume
	}
	if rec.SfxVolume != nil {
		p.EffectVolume = *rec.SfxVolume
	}
	if rec.IsMuted != nil {
		p.Muted = *rec.IsMuted
	}

	if err := p.Validate(); err != nil {
		return preferences.Default(), err
	}
	return p, nil
}

// Persister reads and writes preferences under a single key.
type Persister struct {
	store Store
	key   string
}

// NewPersister creates a persister. An empty key selects DefaultKey.
func NewPersister(store Store, key string) *Persister {
	if key == "" {
		key = DefaultKey
	}
	return &Persister{store: store, key: key}
}

// Key returns the key preferences are stored under.
func (p *Persister) Key() string {
	return p.key
}

// Load returns the persisted preferences. Missing or malformed data yields
// the defaults; it is never reported as an error.
func (p *Persister) Load() preferences.Preferences {
	raw, ok, err := p.store.Read(p.key)
	if err != nil {
		zlog.Warn().Msgf("settings: read failed, using defaults: key=%s error=%v", p.key, err)
		return preferences.Default()
	}
	if !ok || raw == "" {
		zlog.Debug().Msgf("settings: no saved preferences, using defaults: key=%s", p.key)
		return preferences.Default()
	}

	prefs, err := Decode(raw)
	if err != nil {
		zlog.Warn().Msgf("settings: malformed preferences, using defaults: key=%s error=%v", p.key, err)
		return preferences.Default()
	}
	return prefs
}

// Save writes every preferences field.
func (p *Persister) Save(prefs preferences.Preferences) error {
	raw, err := Encode(prefs)
	if err != nil {
		return err
	}
	if err := p.store.Write(p.key, raw); err != nil {
		return errors.Wrapf(err, "failed to write preferences: key=%s", p.key)
	}
	return nil
}
