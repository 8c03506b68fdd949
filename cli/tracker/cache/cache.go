package cache

import (
	"sync"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

// LiveLocations кэш последних местоположений транспорта.
//
// Записи не устаревают: запись живёт до удаления в конце рейса или
// перезаписи следующим отчётом. Отсутствие записи означает, что нужно
// обращаться к справочнику.
type LiveLocations struct {
	mu      sync.RWMutex
	entries map[types.VehicleID]types.Position
}

func New() *LiveLocations {
	return &LiveLocations{
		entries: make(map[types.VehicleID]types.Position),
	}
}

// Put безусловно перезаписывает местоположение, порядок observedAt не проверяется
func (c *LiveLocations) Put(vehicleID types.VehicleID, position types.Position) {
	c.mu.Lock()
	c.entries[vehicleID] = position
	c.mu.Unlock()
}

func (c *LiveLocations) Get(vehicleID types.VehicleID) (types.Position, bool) {
	c.mu.RLock()
	position, ok := c.entries[vehicleID]
	c.mu.RUnlock()
	return position, ok
}

func (c *LiveLocations) Remove(vehicleID types.VehicleID) {
	c.mu.Lock()
	delete(c.entries, vehicleID)
	c.mu.Unlock()
}

// RemoveIf удаляет запись, только если в ней всё ещё лежит position.
// Отчёт, пришедший после position, остаётся в кэше.
func (c *LiveLocations) RemoveIf(vehicleID types.VehicleID, position types.Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.entries[vehicleID]
	if !ok || !current.Equal(position) {
		return false
	}
	delete(c.entries, vehicleID)
	return true
}

func (c *LiveLocations) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot копия всех записей
func (c *LiveLocations) Snapshot() map[types.VehicleID]types.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[types.VehicleID]types.Position, len(c.entries))
	for id, position := range c.entries {
		snapshot[id] = position
	}
	return snapshot
}
