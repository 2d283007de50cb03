package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
)

// BookingLinker writes transport state onto the tour bookings table, which
// is owned by the booking service and shares this database.
type BookingLinker struct {
	db *sqlx.DB
}

// NewBookingLinker creates a new booking linker
func NewBookingLinker(db *sqlx.DB) *BookingLinker {
	return &BookingLinker{db: db}
}

// MarkTransportNeeded links a booking to the transport request serving it.
func (b *BookingLinker) MarkTransportNeeded(ctx context.Context, bookingID, requestID uuid.UUID) error {
	query := `
		UPDATE bookings
		SET transport_request_id = $2, transport_status = $3, updated_at = $4
		WHERE id = $1`

	res, err := b.db.ExecContext(ctx, query, bookingID, requestID, string(transport.StatusPending), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to link booking: %w", err)
	}
	return expectOneRow(res, ErrBookingNotFound)
}

// SyncTransportStatus copies the request status onto its booking. Bookings
// relinked to another request are left alone.
func (b *BookingLinker) SyncTransportStatus(ctx context.Context, bookingID, requestID uuid.UUID, status transport.Status) error {
	query := `
		UPDATE bookings
		SET transport_status = $3, updated_at = $4
		WHERE id = $1 AND transport_request_id = $2`

	res, err := b.db.ExecContext(ctx, query, bookingID, requestID, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to sync booking: %w", err)
	}
	return expectOneRow(res, ErrBookingNotFound)
}

// RoleElevator grants the driver role on the users table owned by the
// identity service.
type RoleElevator struct {
	db *sqlx.DB
}

// NewRoleElevator creates a new role elevator
func NewRoleElevator(db *sqlx.DB) *RoleElevator {
	return &RoleElevator{db: db}
}

// GrantDriverRole promotes a rider to driver. Admins keep their role.
func (e *RoleElevator) GrantDriverRole(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET role = CASE WHEN role = 'admin' THEN role ELSE 'driver' END, updated_at = $2
		WHERE id = $1`

	res, err := e.db.ExecContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to grant driver role: %w", err)
	}
	return expectOneRow(res, ErrUserNotFound)
}
