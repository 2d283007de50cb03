package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/gocomet/tourism-transport/internal/service/pricing"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/gocomet/tourism-transport/pkg/monitoring"
	"github.com/google/uuid"
)

// DriverDirectory is the part of the driver registry the engine needs.
type DriverDirectory interface {
	Get(ctx context.Context, driverID uuid.UUID) (*driver.Driver, error)
	UpdateLocation(ctx context.Context, driverID uuid.UUID, c geo.Coordinate) error
	RecordCompletedTrip(ctx context.Context, driverID uuid.UUID, fare float64) error
}

// Config holds lifecycle policy
type Config struct {
	// SingleActiveRequest stops a driver from accepting while another of
	// their requests is still active.
	SingleActiveRequest bool

	// PendingRadiusKm hides pending requests whose pickup is farther than
	// this from a located driver. Zero shows all.
	PendingRadiusKm float64
}

// CreateInput is a rider's transport request.
type CreateInput struct {
	RequesterID uuid.UUID
	BookingID   *uuid.UUID
	VehicleType driver.VehicleType
	Pickup      transport.Place
	Destination transport.Place
	Passengers  int
}

// Engine owns the transport request state machine. It never retries: a lost
// race surfaces to the caller as ErrConflict.
type Engine struct {
	requests transport.Repository
	drivers  DriverDirectory
	pricing  *pricing.Service
	metrics  *monitoring.Metrics
	logger   *logger.Logger
	config   Config
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = newID }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a new lifecycle engine
func NewEngine(requests transport.Repository, drivers DriverDirectory, pricingSvc *pricing.Service, log *logger.Logger, config Config, opts ...Option) *Engine {
	e := &Engine{
		requests: requests,
		drivers:  drivers,
		pricing:  pricingSvc,
		logger:   log.Named("dispatch"),
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create stores a new pending request with distance, fare and duration estimates.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*transport.Request, error) {
	if err := in.Pickup.Validate(); err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}
	if err := in.Destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if in.Passengers <= 0 {
		return nil, transport.ErrInvalidPassengers
	}

	distance := geo.DistanceKm(in.Pickup.Coordinate, in.Destination.Coordinate)
	fare := e.pricing.EstimateFare(in.VehicleType, distance)
	now := e.now()

	req := &transport.Request{
		ID:              e.newID(),
		RequesterID:     in.RequesterID,
		BookingID:       in.BookingID,
		VehicleType:     fare.VehicleType,
		Pickup:          in.Pickup,
		Destination:     in.Destination,
		Passengers:      in.Passengers,
		DistanceKm:      distance,
		EstimatedFare:   fare.Total,
		DurationMinutes: e.pricing.EstimateMinutes(fare.VehicleType, distance),
		Status:          transport.StatusPending,
		Timeline:        transport.Timeline{transport.TimelineRequested: now},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	e.logger.Info("Transport request created",
		logger.Stringer("request_id", req.ID),
		logger.String("vehicle_type", req.VehicleType.String()),
		logger.Float64("distance_km", req.DistanceKm),
		logger.Float64("estimated_fare", req.EstimatedFare),
	)
	return req, nil
}

// Accept assigns driverID to a pending request. Exactly one concurrent
// accept wins; the others get ErrConflict.
func (e *Engine) Accept(ctx context.Context, requestID, driverID uuid.UUID) (*transport.Request, error) {
	current, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status != transport.StatusPending {
		return nil, transport.ErrConflict
	}

	d, err := e.drivers.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, driver.ErrDriverNotFound) {
			return nil, transport.ErrForbidden
		}
		return nil, err
	}
	if !d.CanServe() {
		return nil, fmt.Errorf("%w: driver is not approved or not available", transport.ErrForbidden)
	}

	if e.config.SingleActiveRequest {
		if _, err := e.requests.ActiveForDriver(ctx, driverID); err == nil {
			return nil, transport.ErrDriverBusy
		} else if !errors.Is(err, transport.ErrNotFound) {
			return nil, err
		}
	}

	id := driverID
	updated, err := e.transition(ctx, transport.Transition{
		RequestID:         requestID,
		From:              transport.StatusPending,
		To:                transport.StatusAccepted,
		At:                e.now(),
		DriverID:          &id,
		RequireIdleDriver: e.config.SingleActiveRequest,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transport request accepted",
		logger.Stringer("request_id", requestID),
		logger.Stringer("driver_id", driverID),
	)
	return updated, nil
}

type advanceOptions struct {
	finalFare *float64
	reason    string
}

// AdvanceOption tunes Advance.
type AdvanceOption func(*advanceOptions)

// WithFinalFare records the fare actually charged on completion.
func WithFinalFare(fare float64) AdvanceOption {
	return func(o *advanceOptions) { o.finalFare = &fare }
}

// WithReason is the cancellation reason used when next is cancelled.
func WithReason(reason string) AdvanceOption {
	return func(o *advanceOptions) { o.reason = reason }
}

// Advance moves the request one step forward on behalf of its driver.
func (e *Engine) Advance(ctx context.Context, requestID, driverID uuid.UUID, next transport.Status, opts ...AdvanceOption) (*transport.Request, error) {
	var o advanceOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !next.Valid() {
		return nil, transport.ErrInvalidStatus
	}

	current, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if next == transport.StatusCancelled {
		id := driverID
		return e.Cancel(ctx, requestID, transport.Actor{Role: transport.RoleDriver, DriverID: &id}, o.reason)
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: %w", transport.ErrIllegalTransition, transport.ErrAlreadyTerminal)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", transport.ErrIllegalTransition, current.Status, next)
	}
	if next == transport.StatusAccepted {
		return e.Accept(ctx, requestID, driverID)
	}
	if !current.AssignedTo(driverID) {
		return nil, transport.ErrForbidden
	}

	t := transport.Transition{
		RequestID: requestID,
		From:      current.Status,
		To:        next,
		At:        e.now(),
	}
	if next == transport.StatusCompleted && o.finalFare != nil {
		if *o.finalFare < 0 {
			return nil, transport.ErrInvalidFare
		}
		t.FinalFare = o.finalFare
	}

	updated, err := e.transition(ctx, t)
	if err != nil {
		return nil, err
	}

	if updated.Status == transport.StatusCompleted {
		e.recordCompletion(ctx, updated)
	}
	return updated, nil
}

// recordCompletion updates driver statistics. A failure here leaves the
// request completed; it is logged and counted.
func (e *Engine) recordCompletion(ctx context.Context, r *transport.Request) {
	if err := e.drivers.RecordCompletedTrip(ctx, *r.DriverID, r.Fare()); err != nil {
		e.metrics.SideEffectFailed("driver_stats")
		e.logger.Error("Failed to record completed trip",
			logger.Stringer("request_id", r.ID),
			logger.Stringer("driver_id", *r.DriverID),
			logger.Float64("fare", r.Fare()),
			logger.Err(err),
		)
		return
	}

	e.logger.Info("Transport request completed",
		logger.Stringer("request_id", r.ID),
		logger.Stringer("driver_id", *r.DriverID),
		logger.Float64("fare", r.Fare()),
	)
}

// UpdateDriverLocation stores the assigned driver's position and refreshes
// the ETA: to the pickup while driver_enroute, to the destination while
// in_progress, untouched otherwise.
func (e *Engine) UpdateDriverLocation(ctx context.Context, requestID, driverID uuid.UUID, c geo.Coordinate) (*transport.Request, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	current, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !current.AssignedTo(driverID) {
		return nil, transport.ErrForbidden
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: %w", transport.ErrNotActive, transport.ErrAlreadyTerminal)
	}
	if !current.Status.Active() {
		return nil, transport.ErrNotActive
	}

	u := transport.LocationUpdate{
		RequestID: requestID,
		DriverID:  driverID,
		Status:    current.Status,
		Location:  c,
		At:        e.now(),
	}
	if target, ok := etaTarget(current); ok {
		eta := e.pricing.EstimateMinutes(current.VehicleType, geo.DistanceKm(c, target))
		u.ETAMinutes = &eta
	}

	updated, err := e.requests.SetDriverLocation(ctx, u)
	if err != nil {
		if errors.Is(err, transport.ErrStatusChanged) {
			return nil, transport.ErrConflict
		}
		return nil, err
	}

	if err := e.drivers.UpdateLocation(ctx, driverID, c); err != nil {
		e.logger.Warn("Failed to mirror driver location",
			logger.Stringer("driver_id", driverID),
			logger.Err(err),
		)
	}
	return updated, nil
}

func etaTarget(r *transport.Request) (geo.Coordinate, bool) {
	switch r.Status {
	case transport.StatusDriverEnroute:
		return r.Pickup.Coordinate, true
	case transport.StatusInProgress:
		return r.Destination.Coordinate, true
	}
	return geo.Coordinate{}, false
}

// Cancel terminates a request on behalf of its requester, its assigned
// driver or an admin.
func (e *Engine) Cancel(ctx context.Context, requestID uuid.UUID, actor transport.Actor, reason string) (*transport.Request, error) {
	current, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, transport.ErrAlreadyTerminal
	}
	if !current.CanBeCancelledBy(actor) {
		return nil, transport.ErrForbidden
	}

	t := transport.Transition{
		RequestID:          requestID,
		From:               current.Status,
		To:                 transport.StatusCancelled,
		At:                 e.now(),
		CancellationReason: reason,
		CancelledByRole:    actor.Role,
	}
	if actor.UserID != uuid.Nil {
		by := actor.UserID
		t.CancelledBy = &by
	} else if actor.DriverID != nil {
		by := *actor.DriverID
		t.CancelledBy = &by
	}

	updated, err := e.transition(ctx, t)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transport request cancelled",
		logger.Stringer("request_id", requestID),
		logger.String("from", current.Status.String()),
		logger.String("role", string(actor.Role)),
	)
	return updated, nil
}

// transition applies t and maps store outcomes to engine errors.
func (e *Engine) transition(ctx context.Context, t transport.Transition) (*transport.Request, error) {
	updated, err := e.requests.Transition(ctx, t)
	switch {
	case err == nil:
		e.metrics.Transition(t.From.String(), t.To.String())
		return updated, nil
	case errors.Is(err, transport.ErrStatusChanged):
		// someone else moved the request since we read it
		return nil, e.explainLostRace(ctx, t)
	default:
		return nil, err
	}
}

func (e *Engine) explainLostRace(ctx context.Context, t transport.Transition) error {
	if t.To == transport.StatusCancelled {
		if r, err := e.requests.GetByID(ctx, t.RequestID); err == nil && r.Status.Terminal() {
			return transport.ErrAlreadyTerminal
		}
	}
	return transport.ErrConflict
}

// Get returns a request the actor may see.
func (e *Engine) Get(ctx context.Context, requestID uuid.UUID, actor transport.Actor) (*transport.Request, error) {
	r, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.VisibleTo(actor) {
		return nil, transport.ErrForbidden
	}
	return r, nil
}

// ListForRider returns the rider's requests, newest first.
func (e *Engine) ListForRider(ctx context.Context, riderID uuid.UUID) ([]*transport.Request, error) {
	return e.requests.ListByRequester(ctx, riderID)
}

// DriverRequests is what a polling driver sees.
type DriverRequests struct {
	Pending  []*transport.Request `json:"pending"`
	Assigned []*transport.Request `json:"assigned"`
}

// ListForDriver returns pending requests for the driver's vehicle type,
// nearest pickup first when the driver's location is known, and the
// requests assigned to the driver.
func (e *Engine) ListForDriver(ctx context.Context, driverID uuid.UUID) (*DriverRequests, error) {
	d, err := e.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	pending, err := e.requests.ListPending(ctx, d.Vehicle.Type)
	if err != nil {
		return nil, err
	}
	if d.Location != nil {
		from := *d.Location
		if e.config.PendingRadiusKm > 0 {
			nearby := pending[:0]
			for _, r := range pending {
				if geo.DistanceKm(from, r.Pickup.Coordinate) <= e.config.PendingRadiusKm {
					nearby = append(nearby, r)
				}
			}
			pending = nearby
		}
		sort.SliceStable(pending, func(i, j int) bool {
			return geo.DistanceKm(from, pending[i].Pickup.Coordinate) < geo.DistanceKm(from, pending[j].Pickup.Coordinate)
		})
	}

	assigned, err := e.requests.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return &DriverRequests{Pending: pending, Assigned: assigned}, nil
}
