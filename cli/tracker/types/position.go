package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidPosition = errors.New("некорректные координаты")

// VehicleID идентификатор транспорта, он же имя комнаты и ключ кэша
type VehicleID string

func (id VehicleID) String() string {
	return string(id)
}

// Position последнее известное местоположение транспорта
type Position struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ObservedAt time.Time `json:"observed_at"`
}

func (p Position) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return fmt.Errorf("%w: NaN", ErrInvalidPosition)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: широта %f вне диапазона [-90, 90]", ErrInvalidPosition, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: долгота %f вне диапазона [-180, 180]", ErrInvalidPosition, p.Longitude)
	}
	return nil
}

// IsPlaceholder справочник создаёт транспорт с координатами (0, 0), до первого отчёта это не местоположение
func (p Position) IsPlaceholder() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// Equal тот же отчёт: координаты и момент наблюдения совпадают
func (p Position) Equal(position Position) bool {
	return p.Latitude == position.Latitude &&
		p.Longitude == position.Longitude &&
		p.ObservedAt.Equal(position.ObservedAt)
}

// DistanceTo расстояние по поверхности Земли в метрах
func (p Position) DistanceTo(position Position) float64 {
	const R = 6371000.0
	lat1 := p.Latitude * math.Pi / 180
	lat2 := position.Latitude * math.Pi / 180
	dLat := (position.Latitude - p.Latitude) * math.Pi / 180
	dLon := (position.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func (p Position) EqualsHorizontallyTo(position Position, accuracyMeters float64) bool {
	return p.DistanceTo(position) <= accuracyMeters
}
