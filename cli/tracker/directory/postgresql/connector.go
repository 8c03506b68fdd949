package postgresql

/*
Справочник в PostgreSQL.

Настройки:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "bus_tracking"
table = "bus_location"
sslmode = "disable"
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/connector"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type busLocation struct {
	BusID      string    `gorm:"column:bus_id"`
	Latitude   float64   `gorm:"column:latitude"`
	Longitude  float64   `gorm:"column:longitude"`
	ObservedAt time.Time `gorm:"column:observed_at"`
}

type Connector struct {
	connector.Postgres
	db    *gorm.DB
	table string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.table = cfg["table"]
	if c.table == "" {
		log.Warnf("Ключ 'table' не найден в настройках справочника. Используется значение по умолчанию 'bus_location'.")
		c.table = "bus_location"
	}
	if !connector.ValidIdentifier(c.table) {
		return fmt.Errorf("некорректное имя таблицы: %q", c.table)
	}

	if err := c.Connect(cfg); err != nil {
		return err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 c.GetConnection(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}
	c.db = db
	return nil
}

func (c *Connector) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	var row busLocation
	err := c.db.WithContext(ctx).
		Table(c.table).
		Select("bus_id, latitude, longitude, observed_at").
		Where("bus_id = ?", vehicleID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Position{}, types.ErrUnknownVehicle
	}
	if err != nil {
		return types.Position{}, fmt.Errorf("не удалось прочитать транспорт %s: %w", vehicleID, err)
	}

	position := types.Position{Latitude: row.Latitude, Longitude: row.Longitude, ObservedAt: row.ObservedAt}
	if position.IsPlaceholder() {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func (c *Connector) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (bus_id, latitude, longitude, observed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (bus_id) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, observed_at = EXCLUDED.observed_at
	`, c.table)

	if err := c.db.WithContext(ctx).Exec(q, vehicleID.String(), position.Latitude, position.Longitude, position.ObservedAt).Error; err != nil {
		return fmt.Errorf("не удалось обновить местоположение транспорта %s: %w", vehicleID, err)
	}
	return nil
}
