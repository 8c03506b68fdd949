package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

type StaleVehicle struct {
	VehicleID types.VehicleID
	Position  types.Position
	Age       time.Duration
}

// StationaryVehicle транспорт присылает отчёты, но с прошлой проверки не сдвинулся
type StationaryVehicle struct {
	VehicleID types.VehicleID
	Position  types.Position
	Since     time.Time
	Moved     float64
}

// ReportStale периодически сообщает о транспорте, давно не присылавшем отчёты,
// и, если задан StationaryMeters, о транспорте, стоящем на месте между проверками.
// Записи кэша не удаляются.
type ReportStale struct {
	Cache            *cache.LiveLocations
	StaleAfter       time.Duration
	StationaryMeters float64

	mu            sync.Mutex
	previous      map[types.VehicleID]types.Position
	cronScheduler *cron.Cron
}

func (domain *ReportStale) Stale() []StaleVehicle {
	current := now()

	var stale []StaleVehicle
	for vehicleID, position := range domain.Cache.Snapshot() {
		age := current.Sub(position.ObservedAt)
		if age > domain.StaleAfter {
			stale = append(stale, StaleVehicle{VehicleID: vehicleID, Position: position, Age: age})
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].VehicleID < stale[j].VehicleID
	})
	return stale
}

// Stationary сравнивает кэш с состоянием на прошлой проверке и запоминает текущее.
// Учитываются только транспорты, приславшие новый отчёт, смещение которых не больше StationaryMeters.
func (domain *ReportStale) Stationary() []StationaryVehicle {
	snapshot := domain.Cache.Snapshot()

	domain.mu.Lock()
	previous := domain.previous
	domain.previous = snapshot
	domain.mu.Unlock()

	if domain.StationaryMeters <= 0 {
		return nil
	}

	var stationary []StationaryVehicle
	for vehicleID, position := range snapshot {
		before, ok := previous[vehicleID]
		if !ok || !position.ObservedAt.After(before.ObservedAt) {
			continue
		}
		if position.EqualsHorizontallyTo(before, domain.StationaryMeters) {
			stationary = append(stationary, StationaryVehicle{
				VehicleID: vehicleID,
				Position:  position,
				Since:     before.ObservedAt,
				Moved:     position.DistanceTo(before),
			})
		}
	}

	sort.Slice(stationary, func(i, j int) bool {
		return stationary[i].VehicleID < stationary[j].VehicleID
	})
	return stationary
}

func (domain *ReportStale) Run() {
	stale := domain.Stale()
	for _, vehicle := range stale {
		log.WithFields(log.Fields{
			"bus":         vehicle.VehicleID,
			"observed_at": vehicle.Position.ObservedAt,
			"age":         vehicle.Age.Round(time.Second),
		}).Warn("Транспорт давно не присылал местоположение")
	}

	stationary := domain.Stationary()
	for _, vehicle := range stationary {
		log.WithFields(log.Fields{
			"bus":   vehicle.VehicleID,
			"since": vehicle.Since,
			"moved": vehicle.Moved,
		}).Warn("Транспорт не двигается")
	}
	log.Debugf("Проверка устаревших местоположений завершена, устаревших %d, стоящих %d", len(stale), len(stationary))
}

func (domain *ReportStale) Initialize(schedule string) error {
	if domain.StaleAfter <= 0 {
		return fmt.Errorf("некорректный порог устаревания: %s", domain.StaleAfter)
	}

	domain.cronScheduler = cron.New()
	if _, err := domain.cronScheduler.AddFunc(schedule, domain.Run); err != nil {
		return fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
	}

	domain.cronScheduler.Start()
	log.Infof("Запланирована проверка устаревших местоположений: %s", schedule)
	return nil
}

func (domain *ReportStale) Shutdown() {
	if domain.cronScheduler != nil {
		<-domain.cronScheduler.Stop().Done()
		log.Info("Cron-планировщик остановлен")
	}
}
