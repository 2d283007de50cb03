package events

import (
	"context"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
)

// Type names a lifecycle event.
type Type string

const (
	TypeRequestCreated  Type = "transport_request.created"
	TypeStatusChanged   Type = "transport_request.status_changed"
	TypeDriverLocation  Type = "transport_request.driver_location"
	TypeDriverAvailable Type = "driver.availability_changed"
)

// Event is one message on the lifecycle stream. Consumers key on RequestID.
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Type       Type               `json:"type"`
	RequestID  uuid.UUID          `json:"request_id"`
	DriverID   *uuid.UUID         `json:"driver_id,omitempty"`
	BookingID  *uuid.UUID         `json:"booking_id,omitempty"`
	From       transport.Status   `json:"from,omitempty"`
	To         transport.Status   `json:"to,omitempty"`
	Fare       float64            `json:"fare,omitempty"`
	ETAMinutes *int               `json:"eta_minutes,omitempty"`
	Available  *bool              `json:"available,omitempty"`
	Request    *transport.Request `json:"request,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher delivers lifecycle events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// StatusChanged builds the event for a transition of r from a previous status.
func StatusChanged(r *transport.Request, from transport.Status) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeStatusChanged,
		RequestID:  r.ID,
		DriverID:   r.DriverID,
		BookingID:  r.BookingID,
		From:       from,
		To:         r.Status,
		Fare:       r.Fare(),
		Request:    r,
		OccurredAt: r.UpdatedAt,
	}
}

// RequestCreated builds the event for a new pending request.
func RequestCreated(r *transport.Request) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeRequestCreated,
		RequestID:  r.ID,
		BookingID:  r.BookingID,
		To:         r.Status,
		Fare:       r.EstimatedFare,
		Request:    r,
		OccurredAt: r.CreatedAt,
	}
}

// DriverLocation builds the event for a driver position ping on r.
func DriverLocation(r *transport.Request) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       TypeDriverLocation,
		RequestID:  r.ID,
		DriverID:   r.DriverID,
		ETAMinutes: r.ETAMinutes,
		OccurredAt: r.UpdatedAt,
	}
	if r.DriverLocationAt != nil {
		e.OccurredAt = *r.DriverLocationAt
	}
	return e
}

// DriverAvailabilityChanged builds the event for a driver going on or off duty.
func DriverAvailabilityChanged(d *driver.Driver) Event {
	id := d.ID
	available := d.IsAvailable
	return Event{
		ID:         uuid.New(),
		Type:       TypeDriverAvailable,
		DriverID:   &id,
		Available:  &available,
		OccurredAt: d.UpdatedAt,
	}
}
