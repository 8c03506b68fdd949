package domain

import (
	"context"
	"errors"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/broadcast"
	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/directory"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	log "github.com/sirupsen/logrus"
)

const defaultResolveTimeout = 5 * time.Second

type Source string

const (
	SourceNone      Source = ""
	SourceCache     Source = "cache"
	SourceDirectory Source = "directory"
)

// ResolvePosition стартовое местоположение для нового подписчика: из кэша,
// иначе однократное чтение из справочника
type ResolvePosition struct {
	Cache       *cache.LiveLocations
	Broadcaster *broadcast.Broadcaster
	Directory   directory.Directory
	Timeout     time.Duration
}

func (d *ResolvePosition) readDirectory(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return d.Directory.ReadLastPosition(ctx, vehicleID)
}

// Resolve без подписки, для HTTP-запросов
func (d *ResolvePosition) Resolve(ctx context.Context, vehicleID types.VehicleID) (types.Position, Source, error) {
	if position, ok := d.Cache.Get(vehicleID); ok {
		return position, SourceCache, nil
	}

	position, err := d.readDirectory(ctx, vehicleID)
	if err != nil {
		return types.Position{}, SourceNone, err
	}
	return position, SourceDirectory, nil
}

// Join подписывает на транспорт и доставляет стартовое местоположение. Если оно неизвестно,
// подписчик ничего не получает до следующего отчёта.
func (d *ResolvePosition) Join(ctx context.Context, subscriber broadcast.Subscriber, vehicleID types.VehicleID) Source {
	if _, hit := d.Broadcaster.Join(subscriber, vehicleID); hit {
		return SourceCache
	}

	position, err := d.readDirectory(ctx, vehicleID)
	if errors.Is(err, directory.ErrNotFound) {
		return SourceNone
	}
	if err != nil {
		log.WithFields(log.Fields{"bus": vehicleID, "err": err}).Warn("Не удалось прочитать местоположение из справочника")
		return SourceNone
	}

	if !d.Broadcaster.Offer(subscriber, vehicleID, position) {
		return SourceNone
	}
	return SourceDirectory
}
