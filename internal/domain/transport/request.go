package transport

import (
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
)

// Role is the already-authenticated role of the caller.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Privileged reports whether the role may act on any request.
func (r Role) Privileged() bool {
	return r == RoleAdmin
}

// Actor identifies who is calling. DriverID is set when the user owns a
// driver profile.
type Actor struct {
	UserID   uuid.UUID
	Role     Role
	DriverID *uuid.UUID
}

// Place is a coordinate with a human readable address.
type Place struct {
	geo.Coordinate
	Address string `json:"address,omitempty"`
}

// Timeline records when each status was entered. Entries are only ever added.
type Timeline map[Status]time.Time

// TimelineRequested keys the creation entry of a timeline. Every later entry
// is keyed by the status entered.
const TimelineRequested Status = "requested"

// Request is a rider's on-demand transport request
type Request struct {
	ID                 uuid.UUID          `json:"id"`
	RequesterID        uuid.UUID          `json:"requester_id"`
	BookingID          *uuid.UUID         `json:"booking_id,omitempty"`
	VehicleType        driver.VehicleType `json:"vehicle_type"`
	Pickup             Place              `json:"pickup"`
	Destination        Place              `json:"destination"`
	Passengers         int                `json:"passengers"`
	DistanceKm         float64            `json:"distance_km"`
	EstimatedFare      float64            `json:"estimated_fare"`
	FinalFare          *float64           `json:"final_fare,omitempty"`
	DurationMinutes    int                `json:"duration_minutes"`
	DriverID           *uuid.UUID         `json:"driver_id,omitempty"`
	DriverLocation     *geo.Coordinate    `json:"driver_location,omitempty"`
	DriverLocationAt   *time.Time         `json:"driver_location_at,omitempty"`
	ETAMinutes         *int               `json:"eta_minutes,omitempty"`
	Status             Status             `json:"status"`
	Timeline           Timeline           `json:"timeline"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID         `json:"cancelled_by,omitempty"`
	CancelledByRole    Role               `json:"cancelled_by_role,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Transition is a compare-and-swap status change. It only applies while the
// stored status equals From.
type Transition struct {
	RequestID uuid.UUID
	From      Status
	To        Status
	At        time.Time

	// accept only
	DriverID          *uuid.UUID
	RequireIdleDriver bool

	// completion only
	FinalFare *float64

	// cancellation only
	CancellationReason string
	CancelledBy        *uuid.UUID
	CancelledByRole    Role
}

// LocationUpdate stores a driver location snapshot. It only applies while the
// request is still assigned to DriverID and holds Status.
type LocationUpdate struct {
	RequestID  uuid.UUID
	DriverID   uuid.UUID
	Status     Status
	Location   geo.Coordinate
	At         time.Time
	ETAMinutes *int
}

// Fare is the final fare when known, the estimate otherwise.
func (r *Request) Fare() float64 {
	if r.FinalFare != nil {
		return *r.FinalFare
	}
	return r.EstimatedFare
}

// AssignedTo reports whether driverID is the assigned driver.
func (r *Request) AssignedTo(driverID uuid.UUID) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// CanBeCancelledBy reports whether actor may cancel the request.
func (r *Request) CanBeCancelledBy(a Actor) bool {
	if a.Role.Privileged() {
		return true
	}
	if a.UserID != uuid.Nil && a.UserID == r.RequesterID {
		return true
	}
	return a.DriverID != nil && r.AssignedTo(*a.DriverID)
}

// VisibleTo reports whether actor may read the request.
func (r *Request) VisibleTo(a Actor) bool {
	if r.CanBeCancelledBy(a) {
		return true
	}
	// drivers browse pending requests before claiming one
	return a.DriverID != nil && r.Status == StatusPending
}

// Apply mutates r as the store does when t succeeds. Callers must have
// checked that r.Status == t.From.
func (r *Request) Apply(t Transition) {
	r.Status = t.To
	if r.Timeline == nil {
		r.Timeline = Timeline{}
	}
	if _, seen := r.Timeline[t.To]; !seen {
		r.Timeline[t.To] = t.At
	}
	if t.DriverID != nil {
		id := *t.DriverID
		r.DriverID = &id
	}
	if t.FinalFare != nil {
		f := *t.FinalFare
		r.FinalFare = &f
	}
	if t.To == StatusCancelled {
		r.CancellationReason = t.CancellationReason
		r.CancelledBy = t.CancelledBy
		r.CancelledByRole = t.CancelledByRole
	}
	r.UpdatedAt = t.At
}

// ApplyLocation mutates r as the store does when u succeeds.
func (r *Request) ApplyLocation(u LocationUpdate) {
	loc := u.Location
	at := u.At
	r.DriverLocation = &loc
	r.DriverLocationAt = &at
	if u.ETAMinutes != nil {
		eta := *u.ETAMinutes
		r.ETAMinutes = &eta
	}
	r.UpdatedAt = u.At
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := *r
	c.Timeline = make(Timeline, len(r.Timeline))
	for k, v := range r.Timeline {
		c.Timeline[k] = v
	}
	if r.BookingID != nil {
		id := *r.BookingID
		c.BookingID = &id
	}
	if r.DriverID != nil {
		id := *r.DriverID
		c.DriverID = &id
	}
	if r.FinalFare != nil {
		f := *r.FinalFare
		c.FinalFare = &f
	}
	if r.DriverLocation != nil {
		loc := *r.DriverLocation
		c.DriverLocation = &loc
	}
	if r.DriverLocationAt != nil {
		at := *r.DriverLocationAt
		c.DriverLocationAt = &at
	}
	if r.ETAMinutes != nil {
		eta := *r.ETAMinutes
		c.ETAMinutes = &eta
	}
	if r.CancelledBy != nil {
		id := *r.CancelledBy
		c.CancelledBy = &id
	}
	return &c
}
