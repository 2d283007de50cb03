package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
)

// TransportStore is an in-memory transport.Repository. A single mutex makes
// every Transition a true compare-and-swap.
type TransportStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*transport.Request
}

func NewTransportStore() *TransportStore {
	return &TransportStore{requests: make(map[uuid.UUID]*transport.Request)}
}

func (s *TransportStore) Create(_ context.Context, r *transport.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *TransportStore) GetByID(_ context.Context, id uuid.UUID) (*transport.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *TransportStore) ListByRequester(_ context.Context, requesterID uuid.UUID) ([]*transport.Request, error) {
	out := s.filter(func(r *transport.Request) bool { return r.RequesterID == requesterID })
	newestFirst(out)
	return out, nil
}

func (s *TransportStore) ListPending(_ context.Context, vt driver.VehicleType) ([]*transport.Request, error) {
	out := s.filter(func(r *transport.Request) bool {
		return r.Status == transport.StatusPending && (vt == "" || r.VehicleType == vt)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *TransportStore) ListByDriver(_ context.Context, driverID uuid.UUID) ([]*transport.Request, error) {
	out := s.filter(func(r *transport.Request) bool { return r.AssignedTo(driverID) })
	newestFirst(out)
	return out, nil
}

func (s *TransportStore) ActiveForDriver(_ context.Context, driverID uuid.UUID) (*transport.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.activeLocked(driverID); r != nil {
		return r.Clone(), nil
	}
	return nil, transport.ErrNotFound
}

func (s *TransportStore) Transition(_ context.Context, t transport.Transition) (*transport.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[t.RequestID]
	if !ok {
		return nil, transport.ErrNotFound
	}
	if r.Status != t.From {
		return nil, transport.ErrStatusChanged
	}
	if t.RequireIdleDriver && t.DriverID != nil && s.activeLocked(*t.DriverID) != nil {
		return nil, transport.ErrDriverBusy
	}

	r.Apply(t)
	return r.Clone(), nil
}

func (s *TransportStore) SetDriverLocation(_ context.Context, u transport.LocationUpdate) (*transport.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[u.RequestID]
	if !ok {
		return nil, transport.ErrNotFound
	}
	if r.Status != u.Status || !r.AssignedTo(u.DriverID) {
		return nil, transport.ErrStatusChanged
	}

	r.ApplyLocation(u)
	return r.Clone(), nil
}

func (s *TransportStore) activeLocked(driverID uuid.UUID) *transport.Request {
	for _, r := range s.requests {
		if r.AssignedTo(driverID) && r.Status.Active() {
			return r
		}
	}
	return nil
}

func (s *TransportStore) filter(keep func(r *transport.Request) bool) []*transport.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*transport.Request, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func newestFirst(rs []*transport.Request) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}
