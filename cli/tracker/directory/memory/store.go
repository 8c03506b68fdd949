package memory

import (
	"context"
	"sync"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

// Store справочник в памяти процесса, для разработки и тестов
type Store struct {
	mu        sync.RWMutex
	positions map[types.VehicleID]types.Position
}

func New() *Store {
	return &Store{positions: make(map[types.VehicleID]types.Position)}
}

func (s *Store) Init(map[string]string) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	if err := ctx.Err(); err != nil {
		return types.Position{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[vehicleID]
	if !ok {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func (s *Store) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.positions[vehicleID] = position
	s.mu.Unlock()
	return nil
}
