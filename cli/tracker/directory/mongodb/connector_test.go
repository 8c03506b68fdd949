package mongodb

import (
	"testing"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBusFilter(t *testing.T) {
	assert.Equal(t, bson.M{"busId": int64(42)}, busFilter("42"))
	assert.Equal(t, bson.M{"busId": "AP-09"}, busFilter("AP-09"))
}

func TestToPosition(t *testing.T) {
	observed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		bus     busDocument
		want    types.Position
		wantErr error
	}{
		{name: "No location", bus: busDocument{}, wantErr: types.ErrUnknownVehicle},
		{
			name:    "Placeholder written on bus creation",
			bus:     busDocument{Location: &locationDocument{Timestamp: observed}},
			wantErr: types.ErrUnknownVehicle,
		},
		{
			name: "Stored location",
			bus:  busDocument{Location: &locationDocument{Latitude: 17.41, Longitude: 78.47, Timestamp: observed}},
			want: types.Position{Latitude: 17.41, Longitude: 78.47, ObservedAt: observed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toPosition(tt.bus)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeStoredDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"busId":    42,
		"location": bson.M{"latitude": 17.41, "longitude": 78.47},
	})
	assert.NoError(t, err)

	var bus busDocument
	assert.NoError(t, bson.Unmarshal(raw, &bus))

	got, err := toPosition(bus)
	assert.NoError(t, err)
	assert.Equal(t, 17.41, got.Latitude)
	assert.Equal(t, 78.47, got.Longitude)
}
