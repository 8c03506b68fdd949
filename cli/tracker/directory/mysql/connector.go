package mysql

/*
Справочник в MySQL.

Настройки:

host = "localhost"
port = "3306"
user = "root"
password = ""
database = "bus_tracking"
table = "bus_location"
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/connector"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

type Connector struct {
	connection *sql.DB
	table      string
}

func getOptionValue(name, defaultValue string, settings map[string]string) string {
	value := settings[name]
	if value == "" {
		log.Warnf("Ключ '%s' не найден в настройках справочника. Используется значение по умолчанию '%s'.", name, defaultValue)
		value = defaultValue
	}
	return value
}

func dsn(cfg map[string]string) string {
	conf := mysql.NewConfig()
	conf.Net = "tcp"
	conf.Addr = net.JoinHostPort(getOptionValue("host", "localhost", cfg), getOptionValue("port", "3306", cfg))
	conf.User = getOptionValue("user", "root", cfg)
	conf.Passwd = cfg["password"]
	conf.DBName = getOptionValue("database", "bus_tracking", cfg)
	conf.ParseTime = true
	conf.Loc = time.UTC
	return conf.FormatDSN()
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.table = getOptionValue("table", "bus_location", cfg)
	if !connector.ValidIdentifier(c.table) {
		return fmt.Errorf("некорректное имя таблицы: %q", c.table)
	}

	if c.connection, err = sql.Open("mysql", dsn(cfg)); err != nil {
		return fmt.Errorf("ошибка подключения к MySQL: %v", err)
	}
	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("MySQL недоступен: %v", err)
	}
	return nil
}

func (c *Connector) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	var position types.Position
	q := fmt.Sprintf("SELECT latitude, longitude, observed_at FROM %s WHERE bus_id = ?", c.table)
	err := c.connection.QueryRowContext(ctx, q, vehicleID.String()).
		Scan(&position.Latitude, &position.Longitude, &position.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Position{}, types.ErrUnknownVehicle
	}
	if err != nil {
		return types.Position{}, fmt.Errorf("не удалось прочитать транспорт %s: %w", vehicleID, err)
	}
	if position.IsPlaceholder() {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func (c *Connector) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	q := fmt.Sprintf(`INSERT INTO %s (bus_id, latitude, longitude, observed_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE latitude = VALUES(latitude), longitude = VALUES(longitude), observed_at = VALUES(observed_at)`, c.table)

	if _, err := c.connection.ExecContext(ctx, q, vehicleID.String(), position.Latitude, position.Longitude, position.ObservedAt.UTC()); err != nil {
		return fmt.Errorf("не удалось обновить местоположение транспорта %s: %w", vehicleID, err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
