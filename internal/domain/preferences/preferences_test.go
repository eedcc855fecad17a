package preferences

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 0.3, p.BackgroundVolume)
	assert.Equal(t, 0.5, p.EffectVolume)
	assert.False(t, p.Muted)
	assert.NoError(t, p.Validate())
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{name: "in range", input: 0.7, expected: 0.7},
		{name: "lower bound", input: 0, expected: 0},
		{name: "upper bound", input: 1, expected: 1},
		{name: "negative", input: -0.2, expected: 0},
		{name: "above one", input: 1.5, expected: 1},
		{name: "NaN", input: math.NaN(), expected: 0},
		{name: "positive infinity", input: math.Inf(1), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clamp(tt.input))
		})
	}
}

func TestEffectiveBackgroundVolume(t *testing.T) {
	p := Preferences{BackgroundVolume: 0.8, EffectVolume: 0.4}
	assert.Equal(t, 0.8, p.EffectiveBackgroundVolume())

	p.Muted = true
	assert.Equal(t, 0.0, p.EffectiveBackgroundVolume())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		prefs   Preferences
		wantErr bool
	}{
		{name: "valid", prefs: Preferences{BackgroundVolume: 1, EffectVolume: 0}},
		{name: "background too high", prefs: Preferences{BackgroundVolume: 1.2, EffectVolume: 0.5}, wantErr: true},
		{name: "effect negative", prefs: Preferences{BackgroundVolume: 0.5, EffectVolume: -0.1}, wantErr: true},
		{name: "NaN", prefs: Preferences{BackgroundVolume: math.NaN(), EffectVolume: 0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
