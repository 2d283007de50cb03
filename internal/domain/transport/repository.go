package transport

import (
	"context"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/google/uuid"
)

// Repository interface
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*Request, error)

	// ListPending returns pending requests, oldest first. An empty vehicle
	// type matches all.
	ListPending(ctx context.Context, vehicleType driver.VehicleType) ([]*Request, error)

	// ListByDriver returns every request ever assigned to the driver, newest first.
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]*Request, error)

	// ActiveForDriver returns the driver's non-terminal request, or ErrNotFound.
	ActiveForDriver(ctx context.Context, driverID uuid.UUID) (*Request, error)

	// Transition atomically moves a request from t.From to t.To. It returns
	// ErrNotFound for unknown ids, ErrStatusChanged when the stored status is
	// no longer t.From and ErrDriverBusy when t.RequireIdleDriver fails.
	Transition(ctx context.Context, t Transition) (*Request, error)

	// SetDriverLocation stores a location snapshot, returning ErrStatusChanged
	// when the request moved on or was reassigned.
	SetDriverLocation(ctx context.Context, u LocationUpdate) (*Request, error)
}
