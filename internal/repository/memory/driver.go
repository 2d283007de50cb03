package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
)

// DriverStore is an in-memory driver.Repository.
type DriverStore struct {
	mu      sync.RWMutex
	drivers map[uuid.UUID]*driver.Driver
	cells   map[uuid.UUID]string
	byUser  map[uuid.UUID]uuid.UUID
}

func NewDriverStore() *DriverStore {
	return &DriverStore{
		drivers: make(map[uuid.UUID]*driver.Driver),
		cells:   make(map[uuid.UUID]string),
		byUser:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *DriverStore) Create(_ context.Context, d *driver.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[d.UserID]; exists {
		return driver.ErrAlreadyRegistered
	}
	s.drivers[d.ID] = copyDriver(d)
	s.byUser[d.UserID] = d.ID
	return nil
}

func (s *DriverStore) GetByID(_ context.Context, id uuid.UUID) (*driver.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, driver.ErrDriverNotFound
	}
	return copyDriver(d), nil
}

func (s *DriverStore) GetByUserID(_ context.Context, userID uuid.UUID) (*driver.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, driver.ErrDriverNotFound
	}
	return copyDriver(s.drivers[id]), nil
}

func (s *DriverStore) SetVerification(_ context.Context, id uuid.UUID, v driver.Verification) (*driver.Driver, error) {
	return s.update(id, func(d *driver.Driver) {
		d.Verification = v
		if v == driver.VerificationRejected {
			d.IsAvailable = false
		}
	})
}

func (s *DriverStore) SetAvailability(_ context.Context, id uuid.UUID, available bool) (*driver.Driver, error) {
	return s.update(id, func(d *driver.Driver) {
		d.IsAvailable = available
	})
}

func (s *DriverStore) UpdateLocation(_ context.Context, id uuid.UUID, loc geo.Coordinate, cell string, at time.Time) error {
	_, err := s.update(id, func(d *driver.Driver) {
		d.SetLocation(loc, at)
		s.cells[id] = cell
	})
	return err
}

func (s *DriverStore) ListAvailable(_ context.Context, f driver.Filter) ([]*driver.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*driver.Driver, 0)
	for id, d := range s.drivers {
		if !d.CanServe() {
			continue
		}
		if f.VehicleType != "" && d.Vehicle.Type != f.VehicleType {
			continue
		}
		if len(f.Cells) > 0 && !hasAnyPrefix(s.cells[id], f.Cells) {
			continue
		}
		out = append(out, copyDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *DriverStore) IncrementStats(_ context.Context, id uuid.UUID, fare float64) error {
	_, err := s.update(id, func(d *driver.Driver) {
		d.Stats.TotalTrips++
		d.Stats.CompletedTrips++
		d.Stats.TotalEarnings += fare
	})
	return err
}

func (s *DriverStore) update(id uuid.UUID, fn func(d *driver.Driver)) (*driver.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, driver.ErrDriverNotFound
	}
	fn(d)
	d.UpdatedAt = time.Now().UTC()
	return copyDriver(d), nil
}

func hasAnyPrefix(cell string, prefixes []string) bool {
	if cell == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(cell, p) {
			return true
		}
	}
	return false
}

func copyDriver(d *driver.Driver) *driver.Driver {
	c := *d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	if d.LocationUpdatedAt != nil {
		at := *d.LocationUpdatedAt
		c.LocationUpdatedAt = &at
	}
	return &c
}
