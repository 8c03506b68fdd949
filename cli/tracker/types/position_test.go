package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		valid    bool
	}{
		{name: "Hyderabad", position: Position{Latitude: 17.41, Longitude: 78.47}, valid: true},
		{name: "Poles and antimeridian", position: Position{Latitude: -90, Longitude: 180}, valid: true},
		{name: "Zero", position: Position{}, valid: true},
		{name: "Latitude too large", position: Position{Latitude: 90.0001, Longitude: 0}},
		{name: "Latitude too small", position: Position{Latitude: -91, Longitude: 0}},
		{name: "Longitude too large", position: Position{Latitude: 0, Longitude: 180.5}},
		{name: "Longitude too small", position: Position{Latitude: 0, Longitude: -181}},
		{name: "NaN latitude", position: Position{Latitude: math.NaN(), Longitude: 0}},
		{name: "NaN longitude", position: Position{Latitude: 0, Longitude: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.position.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPosition)
			}
		})
	}
}

func TestPositionDistance(t *testing.T) {
	a := Position{Latitude: 17.41, Longitude: 78.47}
	b := Position{Latitude: 17.4101, Longitude: 78.47}

	assert.InDelta(t, 11.1, a.DistanceTo(b), 0.5)
	assert.True(t, a.EqualsHorizontallyTo(b, 15))
	assert.False(t, a.EqualsHorizontallyTo(b, 5))
	assert.Zero(t, a.DistanceTo(a))
}

func TestPositionIsPlaceholder(t *testing.T) {
	assert.True(t, Position{}.IsPlaceholder())
	assert.True(t, Position{ObservedAt: time.Now()}.IsPlaceholder())
	assert.False(t, Position{Latitude: 0, Longitude: 78.47}.IsPlaceholder())
	assert.False(t, Position{Latitude: 17.41, Longitude: 0}.IsPlaceholder())
}

func TestPositionEqual(t *testing.T) {
	observed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Position{Latitude: 17.41, Longitude: 78.47, ObservedAt: observed}

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(Position{Latitude: 17.41, Longitude: 78.47, ObservedAt: observed.In(time.FixedZone("IST", 19800))}))
	assert.False(t, a.Equal(Position{Latitude: 17.41, Longitude: 78.47, ObservedAt: observed.Add(time.Second)}))
	assert.False(t, a.Equal(Position{Latitude: 17.42, Longitude: 78.47, ObservedAt: observed}))
}
