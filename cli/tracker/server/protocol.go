package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

const (
	EventJoinBus           = "joinBus"
	EventLeaveBus          = "leaveBus"
	EventLocationUpdate    = "locationUpdate"
	EventEndTrip           = "endTrip"
	EventBusLocationUpdate = "busLocationUpdate"
	EventError             = "error"
)

// Message кадр протокола: {"event": "...", "data": {...}}
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// BusID веб-клиент присылает busId числом, генератор строкой
type BusID types.VehicleID

func (id *BusID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BusID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("busId должен быть строкой или числом: %v", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("busId должен быть целым числом: %v", err)
	}
	*id = BusID(n.String())
	return nil
}

func (id BusID) VehicleID() types.VehicleID {
	return types.VehicleID(id)
}

type BusRef struct {
	BusID BusID `json:"busId"`
}

type LocationUpdate struct {
	BusID BusID    `json:"busId"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
}

type BusLocationUpdate struct {
	BusID     string    `json:"busId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

func encodeLocation(vehicleID types.VehicleID, position types.Position) ([]byte, error) {
	return encode(EventBusLocationUpdate, BusLocationUpdate{
		BusID:     vehicleID.String(),
		Lat:       position.Latitude,
		Lng:       position.Longitude,
		Timestamp: position.ObservedAt,
	})
}
