package directory

/*
Справочник транспорта: долговременное хранилище последнего известного местоположения.

В конфиге задаётся ровно один раздел:

directory:
  mongodb:
    uri: "mongodb://localhost:27017"
    database: "bus-tracking"
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/daniil11ru/bustrack/cli/tracker/directory/memory"
	"github.com/daniil11ru/bustrack/cli/tracker/directory/mongodb"
	"github.com/daniil11ru/bustrack/cli/tracker/directory/mysql"
	"github.com/daniil11ru/bustrack/cli/tracker/directory/postgresql"
	"github.com/daniil11ru/bustrack/cli/tracker/directory/redis"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

var (
	ErrNotFound         = types.ErrUnknownVehicle
	ErrInvalidDirectory = errors.New("справочник должен быть задан ровно одним разделом")
	ErrUnknownDirectory = errors.New("справочник не поддерживается")
)

// Directory чтение и запись последнего местоположения транспорта.
// ReadLastPosition возвращает ErrNotFound, если местоположение неизвестно.
type Directory interface {
	ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error)
	WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error
}

// Connector подключение к хранилищу справочника
type Connector interface {
	Init(map[string]string) error
	Close() error
}

type Store interface {
	Connector
	Directory
}

// Load создаёт и подключает справочник по разделу конфига
func Load(settings map[string]map[string]string) (Store, string, error) {
	if len(settings) != 1 {
		return nil, "", ErrInvalidDirectory
	}

	var (
		name   string
		params map[string]string
	)
	for n, p := range settings {
		name, params = n, p
	}

	store, err := newStore(name)
	if err != nil {
		return nil, name, err
	}
	if err := store.Init(params); err != nil {
		return nil, name, fmt.Errorf("не удалось подключить справочник %s: %w", name, err)
	}
	return store, name, nil
}

func newStore(name string) (Store, error) {
	switch name {
	case "mongodb":
		return &mongodb.Connector{}, nil
	case "postgresql":
		return &postgresql.Connector{}, nil
	case "mysql":
		return &mysql.Connector{}, nil
	case "redis":
		return &redis.Connector{}, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDirectory, name)
	}
}
