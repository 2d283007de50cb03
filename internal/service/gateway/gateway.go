package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gocomet/tourism-transport/internal/api/httperr"
	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/gocomet/tourism-transport/internal/events"
	"github.com/gocomet/tourism-transport/internal/service/dispatch"
	"github.com/gocomet/tourism-transport/internal/service/pricing"
	"github.com/gocomet/tourism-transport/internal/service/registry"
	apperrors "github.com/gocomet/tourism-transport/pkg/errors"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/gocomet/tourism-transport/pkg/monitoring"
	"github.com/google/uuid"
)

// Gateway is the application surface of the dispatch core. It resolves
// callers, normalizes input, runs the lifecycle engine and fans out the
// best-effort side effects (booking sync, events, metrics).
type Gateway struct {
	engine    *dispatch.Engine
	registry  *registry.Service
	pricing   *pricing.Service
	bookings  BookingLinker
	publisher events.Publisher
	metrics   *monitoring.Metrics
	newRelic  *monitoring.NewRelicApp
	logger    *logger.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithBookingLinker(b BookingLinker) Option {
	return func(g *Gateway) { g.bookings = b }
}

func WithPublisher(p events.Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithNewRelic(nr *monitoring.NewRelicApp) Option {
	return func(g *Gateway) { g.newRelic = nr }
}

// New creates a dispatch gateway
func New(engine *dispatch.Engine, reg *registry.Service, pricingSvc *pricing.Service, log *logger.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		engine:    engine,
		registry:  reg,
		pricing:   pricingSvc,
		bookings:  NopBookingLinker{},
		publisher: events.NopPublisher{},
		logger:    log.Named("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FareQuery asks for a fare. Either DistanceKm or both coordinates are required.
type FareQuery struct {
	VehicleType string
	DistanceKm  *float64
	Pickup      *geo.Coordinate
	Destination *geo.Coordinate
}

// FareEstimate is a priced distance with its travel time.
type FareEstimate struct {
	pricing.FareBreakdown
	DurationMinutes int `json:"duration_minutes"`
}

// EstimateFare prices a trip without creating anything.
func (g *Gateway) EstimateFare(ctx context.Context, q FareQuery) (est *FareEstimate, err error) {
	defer func() { g.observe("estimate_fare", err) }()

	var distance float64
	switch {
	case q.DistanceKm != nil:
		if *q.DistanceKm < 0 {
			return nil, apperrors.Validation("distance_km must not be negative", nil)
		}
		distance = *q.DistanceKm
	case q.Pickup != nil && q.Destination != nil:
		if err := q.Pickup.Validate(); err != nil {
			return nil, fmt.Errorf("pickup: %w", err)
		}
		if err := q.Destination.Validate(); err != nil {
			return nil, fmt.Errorf("destination: %w", err)
		}
		distance = geo.DistanceKm(*q.Pickup, *q.Destination)
	default:
		return nil, apperrors.Validation("distance_km or pickup and destination are required", nil)
	}

	fare := g.pricing.EstimateFare(NormalizeVehicleType(q.VehicleType), distance)
	g.metrics.FareEstimated(fare.VehicleType.String(), fare.Total)

	return &FareEstimate{
		FareBreakdown:   fare,
		DurationMinutes: g.pricing.EstimateMinutes(fare.VehicleType, distance),
	}, nil
}

// CreateRequestInput is a rider's transport request as received.
type CreateRequestInput struct {
	BookingID   *uuid.UUID
	VehicleType string
	Pickup      transport.Place
	Destination transport.Place
	Passengers  *int // defaults to 1
}

// CreateTransportRequest stores a pending request for the calling rider.
func (g *Gateway) CreateTransportRequest(ctx context.Context, actor transport.Actor, in CreateRequestInput) (r *transport.Request, err error) {
	defer func() { g.observe("create_request", err) }()

	passengers := 1
	if in.Passengers != nil {
		passengers = *in.Passengers
	}

	r, err = g.engine.Create(ctx, dispatch.CreateInput{
		RequesterID: actor.UserID,
		BookingID:   in.BookingID,
		VehicleType: NormalizeVehicleType(in.VehicleType),
		Pickup:      in.Pickup,
		Destination: in.Destination,
		Passengers:  passengers,
	})
	if err != nil {
		return nil, err
	}

	if r.BookingID != nil {
		if err := g.bookings.MarkTransportNeeded(ctx, *r.BookingID, r.ID); err != nil {
			g.sideEffectFailed("booking_link", r, err)
		}
	}
	g.newRelic.RecordRequestCreated(r.VehicleType.String(), r.DistanceKm, r.EstimatedFare)
	g.publish(ctx, events.RequestCreated(r))
	return r, nil
}

// GetRequest returns a request visible to the caller.
func (g *Gateway) GetRequest(ctx context.Context, actor transport.Actor, requestID uuid.UUID) (r *transport.Request, err error) {
	defer func() { g.observe("get_request", err) }()
	return g.engine.Get(ctx, requestID, g.resolve(ctx, actor))
}

// ListRequestsForRider returns the caller's own requests, newest first.
func (g *Gateway) ListRequestsForRider(ctx context.Context, actor transport.Actor) (list []*transport.Request, err error) {
	defer func() { g.observe("list_rider_requests", err) }()
	return g.engine.ListForRider(ctx, actor.UserID)
}

// ListRequestsForDriver returns pending requests the calling driver could
// take plus the ones assigned to them.
func (g *Gateway) ListRequestsForDriver(ctx context.Context, actor transport.Actor) (list *dispatch.DriverRequests, err error) {
	defer func() { g.observe("list_driver_requests", err) }()

	d, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return g.engine.ListForDriver(ctx, d.ID)
}

// AcceptRequest assigns the calling driver to a pending request.
func (g *Gateway) AcceptRequest(ctx context.Context, actor transport.Actor, requestID uuid.UUID) (r *transport.Request, err error) {
	defer func() { g.observe("accept_request", err) }()

	d, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	r, err = g.engine.Accept(ctx, requestID, d.ID)
	if err != nil {
		return nil, err
	}

	g.newRelic.RecordAcceptLatency(r.UpdatedAt.Sub(r.CreatedAt))
	g.statusChanged(ctx, r, transport.StatusPending)
	return r, nil
}

// AdvanceInput moves a request one step forward.
type AdvanceInput struct {
	Status    string
	FinalFare *float64 // completion only
	Reason    string   // cancellation only
}

// AdvanceRequestStatus moves a request the calling driver works on to the
// next lifecycle status.
func (g *Gateway) AdvanceRequestStatus(ctx context.Context, actor transport.Actor, requestID uuid.UUID, in AdvanceInput) (r *transport.Request, err error) {
	defer func() { g.observe("advance_request", err) }()

	next, err := transport.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	d, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var opts []dispatch.AdvanceOption
	if in.FinalFare != nil {
		opts = append(opts, dispatch.WithFinalFare(*in.FinalFare))
	}
	if in.Reason != "" {
		opts = append(opts, dispatch.WithReason(in.Reason))
	}

	r, err = g.engine.Advance(ctx, requestID, d.ID, next, opts...)
	if err != nil {
		return nil, err
	}

	g.statusChanged(ctx, r, previousStatus(r))
	return r, nil
}

// UpdateDriverLocation records the assigned driver's position on an active
// request and refreshes the ETA.
func (g *Gateway) UpdateDriverLocation(ctx context.Context, actor transport.Actor, requestID uuid.UUID, c geo.Coordinate) (r *transport.Request, err error) {
	defer func() { g.observe("update_request_location", err) }()

	d, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	r, err = g.engine.UpdateDriverLocation(ctx, requestID, d.ID, c)
	if err != nil {
		return nil, err
	}

	g.metrics.LocationUpdated()
	g.newRelic.RecordLocationUpdate()
	g.publish(ctx, events.DriverLocation(r))
	return r, nil
}

// CancelRequest cancels a request on behalf of its requester, its assigned
// driver or an admin.
func (g *Gateway) CancelRequest(ctx context.Context, actor transport.Actor, requestID uuid.UUID, reason string) (r *transport.Request, err error) {
	defer func() { g.observe("cancel_request", err) }()

	r, err = g.engine.Cancel(ctx, requestID, g.resolve(ctx, actor), reason)
	if err != nil {
		return nil, err
	}
	g.statusChanged(ctx, r, previousStatus(r))
	return r, nil
}

// ApplyInput is a driver application as received.
type ApplyInput struct {
	VehicleType string
	Plate       string
	Capacity    int
	Pricing     driver.Pricing
}

// ApplyAsDriver registers a pending driver profile for the caller.
func (g *Gateway) ApplyAsDriver(ctx context.Context, actor transport.Actor, in ApplyInput) (d *driver.Driver, err error) {
	defer func() { g.observe("apply_driver", err) }()

	vt, ok := LookupVehicleType(in.VehicleType)
	if !ok {
		return nil, driver.ErrInvalidVehicleType
	}
	return g.registry.Apply(ctx, actor.UserID, registry.Application{
		VehicleType: vt,
		Plate:       in.Plate,
		Capacity:    in.Capacity,
		Pricing:     in.Pricing,
	})
}

// VerifyDriver records an admin's review of a driver application.
func (g *Gateway) VerifyDriver(ctx context.Context, actor transport.Actor, driverID uuid.UUID, verification string) (d *driver.Driver, err error) {
	defer func() { g.observe("verify_driver", err) }()

	if !actor.Role.Privileged() {
		return nil, fmt.Errorf("%w: admin role required", transport.ErrForbidden)
	}
	v := driver.Verification(strings.ToLower(strings.TrimSpace(verification)))
	if !v.IsValid() {
		return nil, driver.ErrInvalidVerification
	}
	return g.registry.Verify(ctx, driverID, v)
}

// GetDriverForUser returns the caller's driver profile.
func (g *Gateway) GetDriverForUser(ctx context.Context, actor transport.Actor) (d *driver.Driver, err error) {
	defer func() { g.observe("get_driver", err) }()
	return g.registry.GetByUser(ctx, actor.UserID)
}

// SetDriverAvailability toggles whether the caller takes new requests.
func (g *Gateway) SetDriverAvailability(ctx context.Context, actor transport.Actor, available bool) (d *driver.Driver, err error) {
	defer func() { g.observe("set_availability", err) }()

	current, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err = g.registry.SetAvailability(ctx, current.ID, available)
	if err != nil {
		return nil, err
	}
	g.publish(ctx, events.DriverAvailabilityChanged(d))
	return d, nil
}

// UpdateDriverPosition stores the caller's location outside of any request.
func (g *Gateway) UpdateDriverPosition(ctx context.Context, actor transport.Actor, c geo.Coordinate) (d *driver.Driver, err error) {
	defer func() { g.observe("update_driver_position", err) }()

	current, err := g.driverFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := g.registry.UpdateLocation(ctx, current.ID, c); err != nil {
		return nil, err
	}
	g.metrics.LocationUpdated()
	g.newRelic.RecordLocationUpdate()
	return g.registry.Get(ctx, current.ID)
}

// NearbyQuery asks for serving drivers around a point.
type NearbyQuery struct {
	Point       geo.Coordinate
	RadiusKm    float64
	VehicleType string // empty matches any
	Limit       int
}

// FindNearbyDrivers lists approved, available drivers nearest first.
func (g *Gateway) FindNearbyDrivers(ctx context.Context, q NearbyQuery) (list []registry.Candidate, err error) {
	defer func() { g.observe("find_nearby_drivers", err) }()

	var vt driver.VehicleType
	if strings.TrimSpace(q.VehicleType) != "" {
		vt = NormalizeVehicleType(q.VehicleType)
	}
	return g.registry.FindCandidates(ctx, registry.CandidateQuery{
		Point:       q.Point,
		RadiusKm:    q.RadiusKm,
		VehicleType: vt,
		Limit:       q.Limit,
	})
}

// driverFor returns the caller's driver profile. Callers without one are
// not allowed to act as drivers.
func (g *Gateway) driverFor(ctx context.Context, actor transport.Actor) (*driver.Driver, error) {
	d, err := g.registry.GetByUser(ctx, actor.UserID)
	if errors.Is(err, driver.ErrDriverNotFound) {
		return nil, fmt.Errorf("%w: caller has no driver profile", transport.ErrForbidden)
	}
	return d, err
}

// resolve attaches the driver id of driver-role callers.
func (g *Gateway) resolve(ctx context.Context, actor transport.Actor) transport.Actor {
	if actor.DriverID != nil || actor.Role != transport.RoleDriver {
		return actor
	}
	d, err := g.registry.GetByUser(ctx, actor.UserID)
	if err != nil {
		if !errors.Is(err, driver.ErrDriverNotFound) {
			g.logger.Warn("Failed to resolve driver profile",
				logger.Stringer("user_id", actor.UserID),
				logger.Err(err),
			)
		}
		return actor
	}
	id := d.ID
	actor.DriverID = &id
	return actor
}

// statusChanged fans out a successful transition.
func (g *Gateway) statusChanged(ctx context.Context, r *transport.Request, from transport.Status) {
	g.newRelic.RecordStatusChange(r.ID.String(), from.String(), r.Status.String())
	if r.Status == transport.StatusCompleted {
		g.newRelic.RecordRequestCompleted(r.ID.String(), r.Fare(), r.DistanceKm, r.DurationMinutes)
	}
	if r.Status.Terminal() && r.BookingID != nil {
		if err := g.bookings.SyncTransportStatus(ctx, *r.BookingID, r.ID, r.Status); err != nil {
			g.sideEffectFailed("booking_sync", r, err)
		}
	}
	g.publish(ctx, events.StatusChanged(r, from))
}

func (g *Gateway) publish(ctx context.Context, e events.Event) {
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.metrics.SideEffectFailed("event")
		g.logger.Warn("Failed to publish event",
			logger.String("event_type", string(e.Type)),
			logger.Stringer("event_id", e.ID),
			logger.Err(err),
		)
	}
}

func (g *Gateway) sideEffectFailed(effect string, r *transport.Request, err error) {
	g.metrics.SideEffectFailed(effect)
	g.logger.Warn("Side effect failed",
		logger.String("effect", effect),
		logger.Stringer("request_id", r.ID),
		logger.Err(err),
	)
}

func (g *Gateway) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(httperr.FromDomain(err).Code)
	}
	g.metrics.Operation(op, outcome)
}

// previousStatus is the last lifecycle status entered before the current
// one. Statuses only move forward, so it is the latest earlier stage present
// in the timeline.
func previousStatus(r *transport.Request) transport.Status {
	prev := transport.StatusPending
	for s, ok := transport.StatusPending, true; ok; s, ok = s.Next() {
		if s == r.Status {
			break
		}
		if _, seen := r.Timeline[s]; seen {
			prev = s
		}
	}
	return prev
}
