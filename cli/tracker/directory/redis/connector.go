package redis

/*
Справочник в Redis: хеш на каждый транспорт.

Настройки:

addr = "localhost:6379"
password = ""
db = "0"
key_prefix = "bus:location:"
*/

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	fieldLatitude   = "lat"
	fieldLongitude  = "lng"
	fieldObservedAt = "observed_at"
)

type Connector struct {
	client *redis.Client
	prefix string
}

func getOptionValue(name, defaultValue string, settings map[string]string) string {
	value := settings[name]
	if value == "" {
		log.Warnf("Ключ '%s' не найден в настройках справочника. Используется значение по умолчанию '%s'.", name, defaultValue)
		value = defaultValue
	}
	return value
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	db, err := strconv.Atoi(getOptionValue("db", "0", cfg))
	if err != nil {
		return fmt.Errorf("не удалось разобрать db: %v", err)
	}
	c.prefix = getOptionValue("key_prefix", "bus:location:", cfg)

	c.client = redis.NewClient(&redis.Options{
		Addr:     getOptionValue("addr", "localhost:6379", cfg),
		Password: cfg["password"],
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %v", err)
	}
	return nil
}

func (c *Connector) key(vehicleID types.VehicleID) string {
	return c.prefix + vehicleID.String()
}

func (c *Connector) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	fields, err := c.client.HGetAll(ctx, c.key(vehicleID)).Result()
	if err != nil {
		return types.Position{}, fmt.Errorf("не удалось прочитать транспорт %s: %w", vehicleID, err)
	}
	return decodeFields(fields)
}

func decodeFields(fields map[string]string) (types.Position, error) {
	if len(fields) == 0 {
		return types.Position{}, types.ErrUnknownVehicle
	}

	var (
		position types.Position
		err      error
	)
	if position.Latitude, err = strconv.ParseFloat(fields[fieldLatitude], 64); err != nil {
		return types.Position{}, fmt.Errorf("некорректная широта в справочнике: %v", err)
	}
	if position.Longitude, err = strconv.ParseFloat(fields[fieldLongitude], 64); err != nil {
		return types.Position{}, fmt.Errorf("некорректная долгота в справочнике: %v", err)
	}
	if raw := fields[fieldObservedAt]; raw != "" {
		if position.ObservedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return types.Position{}, fmt.Errorf("некорректное время в справочнике: %v", err)
		}
	}
	if position.IsPlaceholder() {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func encodeFields(position types.Position) map[string]interface{} {
	return map[string]interface{}{
		fieldLatitude:   strconv.FormatFloat(position.Latitude, 'f', -1, 64),
		fieldLongitude:  strconv.FormatFloat(position.Longitude, 'f', -1, 64),
		fieldObservedAt: position.ObservedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (c *Connector) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	if err := c.client.HSet(ctx, c.key(vehicleID), encodeFields(position)).Err(); err != nil {
		return fmt.Errorf("не удалось обновить местоположение транспорта %s: %w", vehicleID, err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
