package storage

import (
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"gopkg.in/vmihailenco/msgpack.v2"
)

type Kind string

const (
	KindLive  Kind = "live"
	KindFlush Kind = "flush"
)

// Record событие экспорта местоположения во внешние очереди
type Record struct {
	BusID      string  `msgpack:"busId"`
	Lat        float64 `msgpack:"lat"`
	Lng        float64 `msgpack:"lng"`
	ObservedAt int64   `msgpack:"observedAt"`
	Kind       Kind    `msgpack:"kind"`
}

func NewRecord(vehicleID types.VehicleID, position types.Position, kind Kind) *Record {
	return &Record{
		BusID:      vehicleID.String(),
		Lat:        position.Latitude,
		Lng:        position.Longitude,
		ObservedAt: position.ObservedAt.UnixNano() / int64(time.Millisecond),
		Kind:       kind,
	}
}

func (r *Record) ToBytes() ([]byte, error) {
	return msgpack.Marshal(r)
}

// Key ключ записи для хранилищ с адресацией по ключу
func (r *Record) Key() string {
	return "bus:" + r.BusID
}

func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
