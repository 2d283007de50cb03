package gateway

import (
	"context"

	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
)

// BookingLinker keeps the tour booking that spawned a transport request in
// step with it. The booking service owns the data.
type BookingLinker interface {
	// MarkTransportNeeded flags the booking as waiting on requestID.
	MarkTransportNeeded(ctx context.Context, bookingID, requestID uuid.UUID) error

	// SyncTransportStatus copies a terminal request status onto the booking.
	SyncTransportStatus(ctx context.Context, bookingID, requestID uuid.UUID, status transport.Status) error
}

// NopBookingLinker ignores booking updates.
type NopBookingLinker struct{}

func (NopBookingLinker) MarkTransportNeeded(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (NopBookingLinker) SyncTransportStatus(context.Context, uuid.UUID, uuid.UUID, transport.Status) error {
	return nil
}
