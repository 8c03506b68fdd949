package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/directory"
	"github.com/daniil11ru/bustrack/cli/tracker/session"
	"github.com/daniil11ru/bustrack/cli/tracker/storage"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	log "github.com/sirupsen/logrus"
)

var ErrFlush = errors.New("не удалось сохранить местоположение в справочник")

const defaultFlushTimeout = 10 * time.Second

// Exporter приёмник событий экспорта, не должен блокироваться
type Exporter interface {
	Save(interface{ ToBytes() ([]byte, error) }) error
}

// FlushPosition записывает последнее местоположение из кэша в справочник в конце рейса
// и при обрыве соединения водителя. Запись выполняется в фоне, соединение её не ждёт;
// ошибка записи только логируется.
type FlushPosition struct {
	Cache     *cache.LiveLocations
	Sessions  *session.Tracker
	Directory directory.Directory
	Exporter  Exporter
	Timeout   time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	ending map[types.VehicleID]struct{}
}

// EndTrip явное завершение рейса: снятие привязки, запись в справочник, затем удаление
// записи кэша, если после записанного отчёта новых не было.
// Привязка соединения к другому транспорту сохраняется, чтобы обрыв соединения
// записал местоположение того транспорта.
// Возвращает true, если запись в справочник была запущена.
func (d *FlushPosition) EndTrip(connectionID string, vehicleID types.VehicleID) bool {
	if binding, unbound := d.Sessions.UnbindVehicle(connectionID, vehicleID); binding.IsBound() && !unbound {
		log.WithFields(log.Fields{
			"conn":  connectionID,
			"bus":   vehicleID,
			"bound": binding.VehicleID,
		}).Warn("Завершение рейса для транспорта, отличного от привязанного к соединению, привязка сохранена")
	}

	position, ok := d.Cache.Get(vehicleID)
	if !ok {
		log.WithField("bus", vehicleID).Debug("Завершение рейса без местоположения в кэше")
		return false
	}

	if !d.startEnding(vehicleID) {
		log.WithField("bus", vehicleID).Debug("Завершение рейса уже выполняется")
		return false
	}

	d.dispatch(vehicleID, position, func() {
		defer d.finishEnding(vehicleID)
		if !d.Cache.RemoveIf(vehicleID, position) {
			log.WithField("bus", vehicleID).Debug("После завершения рейса получен новый отчёт, запись кэша сохранена")
		}
	})
	return true
}

// Disconnect обрыв соединения. Если соединение было привязано к транспорту, его
// местоположение из кэша записывается в справочник; запись кэша сохраняется.
func (d *FlushPosition) Disconnect(connectionID string) (types.VehicleID, bool) {
	binding := d.Sessions.Unbind(connectionID)
	if !binding.IsBound() {
		return "", false
	}

	position, ok := d.Cache.Get(binding.VehicleID)
	if !ok {
		return binding.VehicleID, false
	}

	d.dispatch(binding.VehicleID, position, nil)
	return binding.VehicleID, true
}

func (d *FlushPosition) startEnding(vehicleID types.VehicleID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ending == nil {
		d.ending = make(map[types.VehicleID]struct{})
	}
	if _, ok := d.ending[vehicleID]; ok {
		return false
	}
	d.ending[vehicleID] = struct{}{}
	return true
}

func (d *FlushPosition) finishEnding(vehicleID types.VehicleID) {
	d.mu.Lock()
	delete(d.ending, vehicleID)
	d.mu.Unlock()
}

// dispatch запускает запись в фоне; after выполняется после попытки записи, даже неудачной
func (d *FlushPosition) dispatch(vehicleID types.VehicleID, position types.Position, after func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if after != nil {
			defer after()
		}

		if err := d.flush(vehicleID, position); err != nil {
			log.WithFields(log.Fields{
				"bus": vehicleID,
				"err": err,
			}).Error("Ошибка сохранения местоположения")
		}
	}()
}

func (d *FlushPosition) flush(vehicleID types.VehicleID, position types.Position) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFlush, r)
		}
	}()

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := d.Directory.WriteLastPosition(ctx, vehicleID, position); err != nil {
		return fmt.Errorf("%w: %v", ErrFlush, err)
	}
	log.WithField("bus", vehicleID).Debug("Местоположение сохранено в справочник")

	if d.Exporter != nil {
		if err := d.Exporter.Save(storage.NewRecord(vehicleID, position, storage.KindFlush)); err != nil {
			log.WithFields(log.Fields{"bus": vehicleID, "err": err}).Warn("Событие сохранения не экспортировано")
		}
	}
	return nil
}

// Wait ожидает завершения запущенных записей
func (d *FlushPosition) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
