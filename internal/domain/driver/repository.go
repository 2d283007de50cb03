package driver

import (
	"context"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
)

// Repository defines the interface for driver data access
type Repository interface {
	// Create stores a new driver profile. Returns ErrAlreadyRegistered when
	// the owning user already has one.
	Create(ctx context.Context, driver *Driver) error

	// GetByID retrieves a driver by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Driver, error)

	// GetByUserID retrieves the driver profile owned by a user
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Driver, error)

	// SetVerification updates the review state. Rejection also clears availability.
	SetVerification(ctx context.Context, id uuid.UUID, v Verification) (*Driver, error)

	// SetAvailability toggles the availability flag
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Driver, error)

	// UpdateLocation stores the current location, its timestamp and geohash cell
	UpdateLocation(ctx context.Context, id uuid.UUID, loc geo.Coordinate, cell string, at time.Time) error

	// ListAvailable returns approved, available drivers matching the filter
	ListAvailable(ctx context.Context, filter Filter) ([]*Driver, error)

	// IncrementStats atomically adds one completed trip and the fare to the
	// driver's statistics.
	IncrementStats(ctx context.Context, id uuid.UUID, fare float64) error
}
