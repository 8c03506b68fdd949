package session

import (
	"sync"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

type Role int

const (
	// Unbound соединение ещё ничего не публиковало: наблюдатель или водитель до первого отчёта
	Unbound Role = iota
	// Bound соединение публикует местоположение транспорта
	Bound
)

func (r Role) String() string {
	if r == Bound {
		return "bound"
	}
	return "unbound"
}

// Binding состояние соединения: {Unbound} или {Bound, VehicleID}
type Binding struct {
	Role      Role
	VehicleID types.VehicleID
}

func (b Binding) IsBound() bool {
	return b.Role == Bound
}

// Tracker связывает соединение с транспортом, за который оно отчитывается
type Tracker struct {
	mu       sync.Mutex
	bindings map[string]types.VehicleID
}

func NewTracker() *Tracker {
	return &Tracker{bindings: make(map[string]types.VehicleID)}
}

// Bind переводит соединение в Bound; предыдущая привязка этого соединения перезаписывается
func (t *Tracker) Bind(connectionID string, vehicleID types.VehicleID) (previous Binding) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.bindings[connectionID]; ok {
		previous = Binding{Role: Bound, VehicleID: old}
	}
	t.bindings[connectionID] = vehicleID
	return previous
}

// Unbind удаляет привязку и возвращает её. Повторный вызов вернёт Unbound,
// поэтому сброс в справочник по одной сессии происходит не больше одного раза.
func (t *Tracker) Unbind(connectionID string) Binding {
	t.mu.Lock()
	defer t.mu.Unlock()

	vehicleID, ok := t.bindings[connectionID]
	if !ok {
		return Binding{Role: Unbound}
	}
	delete(t.bindings, connectionID)
	return Binding{Role: Bound, VehicleID: vehicleID}
}

// UnbindVehicle снимает привязку, только если соединение отчитывается за vehicleID.
// Возвращает текущую привязку и признак того, что она снята; привязка к другому
// транспорту сохраняется.
func (t *Tracker) UnbindVehicle(connectionID string, vehicleID types.VehicleID) (Binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bound, ok := t.bindings[connectionID]
	if !ok {
		return Binding{Role: Unbound}, false
	}
	if bound != vehicleID {
		return Binding{Role: Bound, VehicleID: bound}, false
	}
	delete(t.bindings, connectionID)
	return Binding{Role: Bound, VehicleID: bound}, true
}

func (t *Tracker) Lookup(connectionID string) Binding {
	t.mu.Lock()
	defer t.mu.Unlock()

	if vehicleID, ok := t.bindings[connectionID]; ok {
		return Binding{Role: Bound, VehicleID: vehicleID}
	}
	return Binding{Role: Unbound}
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bindings)
}
