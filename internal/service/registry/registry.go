package registry

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/google/uuid"
)

// storedCellPrecision is the geohash precision persisted with each location
// (roughly 5m cells).
const storedCellPrecision = 9

// RoleElevator grants the driver role on the user account once a driver is
// approved. It lives outside this service.
type RoleElevator interface {
	GrantDriverRole(ctx context.Context, userID uuid.UUID) error
}

// Config holds candidate search configuration
type Config struct {
	CandidateRadiusKm float64 // Initial search radius
	MaxRadiusKm       float64 // Largest radius tried when nothing is found
	MaxCandidates     int
}

// Application is a driver onboarding request.
type Application struct {
	VehicleType driver.VehicleType
	Plate       string
	Capacity    int
	Pricing     driver.Pricing
}

// CandidateQuery asks for drivers near a point.
type CandidateQuery struct {
	Point       geo.Coordinate
	RadiusKm    float64
	VehicleType driver.VehicleType
	Limit       int
}

// Candidate represents a nearby driver
type Candidate struct {
	Driver     *driver.Driver `json:"driver"`
	DistanceKm float64        `json:"distance_km"`
}

// Service is the driver registry: onboarding, verification, availability,
// location and trip statistics.
type Service struct {
	drivers  driver.Repository
	locator  Locator
	elevator RoleElevator
	logger   *logger.Logger
	config   Config
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocator mirrors driver positions into a geo index used for candidate search.
func WithLocator(l Locator) Option {
	return func(s *Service) { s.locator = l }
}

// WithRoleElevator sets the collaborator called on approval.
func WithRoleElevator(e RoleElevator) Option {
	return func(s *Service) { s.elevator = e }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new registry service
func NewService(drivers driver.Repository, log *logger.Logger, config Config, opts ...Option) *Service {
	if config.CandidateRadiusKm <= 0 {
		config.CandidateRadiusKm = 5
	}
	if config.MaxRadiusKm < config.CandidateRadiusKm {
		config.MaxRadiusKm = config.CandidateRadiusKm
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = 20
	}

	s := &Service{
		drivers: drivers,
		logger:  log.Named("registry"),
		config:  config,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply creates a pending, unavailable driver profile for userID.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, app Application) (*driver.Driver, error) {
	now := s.now()
	d := &driver.Driver{
		ID:     uuid.New(),
		UserID: userID,
		Vehicle: driver.Vehicle{
			Type:     app.VehicleType,
			Plate:    strings.TrimSpace(app.Plate),
			Capacity: app.Capacity,
		},
		Verification: driver.VerificationPending,
		IsAvailable:  false,
		Pricing:      app.Pricing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := d.IsValid(); err != nil {
		return nil, err
	}

	if err := s.drivers.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("Driver application received",
		logger.Stringer("driver_id", d.ID),
		logger.Stringer("user_id", userID),
		logger.String("vehicle_type", d.Vehicle.Type.String()),
	)
	return d, nil
}

// Verify records an admin decision. Rejection also takes the driver offline.
func (s *Service) Verify(ctx context.Context, driverID uuid.UUID, v driver.Verification) (*driver.Driver, error) {
	if !v.IsValid() {
		return nil, driver.ErrInvalidVerification
	}

	d, err := s.drivers.SetVerification(ctx, driverID, v)
	if err != nil {
		return nil, err
	}

	switch v {
	case driver.VerificationApproved:
		if s.elevator != nil {
			if err := s.elevator.GrantDriverRole(ctx, d.UserID); err != nil {
				s.logger.Warn("Failed to grant driver role",
					logger.Stringer("driver_id", d.ID),
					logger.Stringer("user_id", d.UserID),
					logger.Err(err),
				)
			}
		}
	case driver.VerificationRejected:
		s.unindex(ctx, d.ID)
	}

	s.logger.Info("Driver verification updated",
		logger.Stringer("driver_id", d.ID),
		logger.String("verification", string(v)),
	)
	return d, nil
}

// SetAvailability toggles whether the driver takes new requests. Only
// approved drivers may go available.
func (s *Service) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) (*driver.Driver, error) {
	current, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if available && !current.IsVerified() {
		return nil, driver.ErrNotVerified
	}

	d, err := s.drivers.SetAvailability(ctx, driverID, available)
	if err != nil {
		return nil, err
	}

	if available && d.Location != nil {
		s.index(ctx, d.ID, *d.Location)
	} else if !available {
		s.unindex(ctx, d.ID)
	}

	s.logger.Info("Driver availability changed",
		logger.Stringer("driver_id", d.ID),
		logger.Bool("available", available),
	)
	return d, nil
}

// UpdateLocation stores the driver's position and mirrors it into the geo index.
func (s *Service) UpdateLocation(ctx context.Context, driverID uuid.UUID, c geo.Coordinate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := s.drivers.UpdateLocation(ctx, driverID, c, geo.Cell(c, storedCellPrecision), s.now()); err != nil {
		return err
	}

	s.index(ctx, driverID, c)
	return nil
}

// FindCandidates returns approved, available drivers near q.Point, nearest
// first. The geo index and geohash cells are approximations, so every hit is
// re-checked against the haversine distance.
func (s *Service) FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error) {
	if err := q.Point.Validate(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.Limit > s.config.MaxCandidates {
		q.Limit = s.config.MaxCandidates
	}

	for _, radius := range s.searchRadii(q.RadiusKm) {
		candidates, err := s.searchRadius(ctx, q, radius)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return []Candidate{}, nil
}

// searchRadii starts at the requested radius and expands up to MaxRadiusKm
// when no explicit radius was asked for.
func (s *Service) searchRadii(requested float64) []float64 {
	if requested > 0 {
		return []float64{requested}
	}

	base := s.config.CandidateRadiusKm
	radii := []float64{base}
	for _, r := range []float64{base * 2, base * 4} {
		if r <= s.config.MaxRadiusKm {
			radii = append(radii, r)
		}
	}
	return radii
}

func (s *Service) searchRadius(ctx context.Context, q CandidateQuery, radius float64) ([]Candidate, error) {
	var (
		drivers []*driver.Driver
		err     error
	)

	if s.locator != nil {
		drivers, err = s.fromLocator(ctx, q, radius)
		if err != nil {
			s.logger.Warn("Geo index lookup failed, falling back to store",
				logger.Float64("radius_km", radius),
				logger.Err(err),
			)
			drivers = nil
		}
	}
	if drivers == nil {
		drivers, err = s.drivers.ListAvailable(ctx, driver.Filter{
			VehicleType: q.VehicleType,
			Cells:       geo.CoveringCells(q.Point, radius),
		})
		if err != nil {
			return nil, err
		}
	}

	candidates := make([]Candidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.CanServe() || d.Location == nil {
			continue
		}
		if q.VehicleType != "" && d.Vehicle.Type != q.VehicleType {
			continue
		}
		dist := geo.DistanceKm(q.Point, *d.Location)
		if dist > radius {
			continue
		}
		candidates = append(candidates, Candidate{Driver: d, DistanceKm: dist})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

func (s *Service) fromLocator(ctx context.Context, q CandidateQuery, radius float64) ([]*driver.Driver, error) {
	// over-fetch since hits of other vehicle types are dropped afterwards
	hits, err := s.locator.Nearby(ctx, q.Point, radius, q.Limit*4)
	if err != nil {
		return nil, err
	}

	out := make([]*driver.Driver, 0, len(hits))
	for _, h := range hits {
		d, err := s.drivers.GetByID(ctx, h.DriverID)
		if err != nil {
			s.logger.Debug("Indexed driver not found", logger.Stringer("driver_id", h.DriverID), logger.Err(err))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// RecordCompletedTrip adds one completed trip and its fare to the driver's stats.
func (s *Service) RecordCompletedTrip(ctx context.Context, driverID uuid.UUID, fare float64) error {
	return s.drivers.IncrementStats(ctx, driverID, fare)
}

func (s *Service) Get(ctx context.Context, driverID uuid.UUID) (*driver.Driver, error) {
	return s.drivers.GetByID(ctx, driverID)
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*driver.Driver, error) {
	return s.drivers.GetByUserID(ctx, userID)
}

func (s *Service) index(ctx context.Context, driverID uuid.UUID, c geo.Coordinate) {
	if s.locator == nil {
		return
	}
	if err := s.locator.Upsert(ctx, driverID, c); err != nil {
		s.logger.Warn("Failed to index driver location", logger.Stringer("driver_id", driverID), logger.Err(err))
	}
}

func (s *Service) unindex(ctx context.Context, driverID uuid.UUID) {
	if s.locator == nil {
		return
	}
	if err := s.locator.Remove(ctx, driverID); err != nil {
		s.logger.Warn("Failed to remove driver from index", logger.Stringer("driver_id", driverID), logger.Err(err))
	}
}
