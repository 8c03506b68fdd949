package main

import (
	"encoding/json"
	"testing"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack(t *testing.T) {
	points := track(point{Lat: 17.41, Lng: 78.47}, 0.01, 3)

	require.Len(t, points, 3)
	assert.Equal(t, point{Lat: 17.41, Lng: 78.47}, points[0])
	assert.InDelta(t, 17.43, points[2].Lat, 1e-9)
	assert.Equal(t, 78.47, points[2].Lng)
	assert.Empty(t, track(point{}, 1, 0))
}

func TestFrames(t *testing.T) {
	data, err := json.Marshal(locationFrame("42", point{Lat: 1.5, Lng: 2.5}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"locationUpdate","data":{"busId":"42","lat":1.5,"lng":2.5}}`, string(data))

	data, err = json.Marshal(endTripFrame("42"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"endTrip","data":{"busId":"42"}}`, string(data))
}

func TestResolveToken(t *testing.T) {
	tok, err := resolveToken("given", "", "", auth.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "given", tok)

	_, err = resolveToken("", "", "", auth.RoleDriver)
	assert.Error(t, err)

	tok, err = resolveToken("", "secret", "driver-7", auth.RoleDriver)
	require.NoError(t, err)

	identity, err := auth.NewAuthenticator("secret").Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "driver-7", identity.Subject)
	assert.Equal(t, auth.RoleDriver, identity.Role)

	assert.Equal(t, "Bearer "+tok, handshakeHeader(tok).Get("Authorization"))
}
