package domain

import (
	"context"
	"errors"
	"sync"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
)

type write struct {
	VehicleID types.VehicleID
	Position  types.Position
}

type fakeDirectory struct {
	mu        sync.Mutex
	positions map[types.VehicleID]types.Position
	writes    []write
	readErr   error
	writeErr  error
	reads     int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{positions: make(map[types.VehicleID]types.Position)}
}

func (f *fakeDirectory) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return types.Position{}, f.readErr
	}
	position, ok := f.positions[vehicleID]
	if !ok {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func (f *fakeDirectory) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{vehicleID, position})
	if f.writeErr != nil {
		return f.writeErr
	}
	f.positions[vehicleID] = position
	return nil
}

func (f *fakeDirectory) Writes() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

var errDown = errors.New("directory down")

type recordingSubscriber struct {
	id string

	mu        sync.Mutex
	delivered []types.Position
}

func (s *recordingSubscriber) ID() string {
	return s.id
}

func (s *recordingSubscriber) Deliver(_ types.VehicleID, position types.Position) {
	s.mu.Lock()
	s.delivered = append(s.delivered, position)
	s.mu.Unlock()
}

func (s *recordingSubscriber) Delivered() []types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Position(nil), s.delivered...)
}

type recordingExporter struct {
	mu      sync.Mutex
	records [][]byte
}

func (e *recordingExporter) Save(m interface{ ToBytes() ([]byte, error) }) error {
	b, err := m.ToBytes()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.records = append(e.records, b)
	e.mu.Unlock()
	return nil
}

func (e *recordingExporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}
