// Package preferences provides the user's audio preferences.
package preferences

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Default values applied when nothing has been persisted yet.
const (
	DefaultBackgroundVolume = 0.3
	DefaultEffectVolume     = 0.5
	DefaultMuted            = false
)

// Preferences holds the volume and mute settings shared by both channels.
type Preferences struct {
	BackgroundVolume float64 `validate:"gte=0,lte=1"` // Background music volume
	EffectVolume     float64 `validate:"gte=0,lte=1"` // Sound effect volume
	Muted            bool    // Silences music and suppresses effects
}

// Default returns the preferences used before any have been saved.
func Default() Preferences {
	return Preferences{
		BackgroundVolume: DefaultBackgroundVolume,
		EffectVolume:     DefaultEffectVolume,
		Muted:            DefaultMuted,
	}
}

// Clamp limits v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EffectiveBackgroundVolume returns the volume actually applied to the
// background device.
func (p Preferences) EffectiveBackgroundVolume() float64 {
	if p.Muted {
		return 0
	}
	return p.BackgroundVolume
}

// Validate checks that both volumes are within [0,1].
func (p Preferences) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(err, "invalid preferences")
	}
	return nil
}
