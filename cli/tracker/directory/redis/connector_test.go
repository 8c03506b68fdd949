package redis

import (
	"testing"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/stretchr/testify/assert"
)

func TestFieldsRoundTrip(t *testing.T) {
	position := types.Position{
		Latitude:   17.41,
		Longitude:  78.47,
		ObservedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC),
	}

	fields := make(map[string]string)
	for k, v := range encodeFields(position) {
		fields[k] = v.(string)
	}

	got, err := decodeFields(fields)
	assert.NoError(t, err)
	assert.Equal(t, position, got)
}

func TestDecodeFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		wantErr error
	}{
		{name: "Missing key", fields: map[string]string{}, wantErr: types.ErrUnknownVehicle},
		{name: "Placeholder", fields: map[string]string{"lat": "0", "lng": "0"}, wantErr: types.ErrUnknownVehicle},
		{name: "Broken latitude", fields: map[string]string{"lat": "north", "lng": "1"}},
		{name: "Broken time", fields: map[string]string{"lat": "1", "lng": "1", "observed_at": "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFields(tt.fields)
			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestKey(t *testing.T) {
	c := &Connector{prefix: "bus:location:"}
	assert.Equal(t, "bus:location:42", c.key("42"))
}
