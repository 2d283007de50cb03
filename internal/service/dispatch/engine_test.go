package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/gocomet/tourism-transport/internal/repository/memory"
	"github.com/gocomet/tourism-transport/internal/service/pricing"
	"github.com/gocomet/tourism-transport/internal/service/registry"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pickup      = geo.Coordinate{Lat: 9.0, Lng: 125.0}
	destination = geo.Coordinate{Lat: 9.05, Lng: 125.05}
	clockStart  = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	engine   *Engine
	registry *registry.Service
	requests *memory.TransportStore
	rider    uuid.UUID
}

// stepClock advances one minute per call
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := clockStart
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	requests := memory.NewTransportStore()
	reg := registry.NewService(memory.NewDriverStore(), logger.NewNop(), registry.Config{})
	engine := NewEngine(requests, reg, pricing.NewService(pricing.Config{}), logger.NewNop(), cfg, WithClock(stepClock()))
	return &fixture{engine: engine, registry: reg, requests: requests, rider: uuid.New()}
}

func (f *fixture) driver(t *testing.T, vt driver.VehicleType, at geo.Coordinate) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	d, err := f.registry.Apply(ctx, uuid.New(), registry.Application{VehicleType: vt, Plate: "TRK-" + uuid.NewString()[:4], Capacity: 3})
	require.NoError(t, err)
	_, err = f.registry.Verify(ctx, d.ID, driver.VerificationApproved)
	require.NoError(t, err)
	require.NoError(t, f.registry.UpdateLocation(ctx, d.ID, at))
	_, err = f.registry.SetAvailability(ctx, d.ID, true)
	require.NoError(t, err)
	return d.ID
}

func (f *fixture) create(t *testing.T) *transport.Request {
	t.Helper()
	r, err := f.engine.Create(context.Background(), CreateInput{
		RequesterID: f.rider,
		VehicleType: driver.VehicleTricycle,
		Pickup:      transport.Place{Coordinate: pickup, Address: "Butuan port"},
		Destination: transport.Place{Coordinate: destination, Address: "Hotel"},
		Passengers:  2,
	})
	require.NoError(t, err)
	return r
}

// walk advances r through the given statuses as driverID
func (f *fixture) walk(t *testing.T, r *transport.Request, driverID uuid.UUID, statuses ...transport.Status) *transport.Request {
	t.Helper()
	for _, s := range statuses {
		var err error
		r, err = f.engine.Advance(context.Background(), r.ID, driverID, s)
		require.NoError(t, err, "advance to %s", s)
	}
	return r
}

// TestCreate_ButuanScenario tests the worked pricing scenario end to end
func TestCreate_ButuanScenario(t *testing.T) {
	f := newFixture(t, Config{})

	r := f.create(t)

	assert.Equal(t, transport.StatusPending, r.Status)
	assert.InDelta(t, 7.81, r.DistanceKm, 0.06)
	assert.Equal(t, 110.0, r.EstimatedFare)
	assert.Equal(t, 16, r.DurationMinutes)
	assert.Nil(t, r.DriverID)
	assert.Equal(t, clockStart.Add(time.Minute), r.Timeline[transport.TimelineRequested])
	assert.Len(t, r.Timeline, 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name     string
		input    CreateInput
		expected error
	}{
		{
			name: "latitude out of range",
			input: CreateInput{
				Pickup:      transport.Place{Coordinate: geo.Coordinate{Lat: 95, Lng: 125}},
				Destination: transport.Place{Coordinate: destination},
				Passengers:  1,
			},
			expected: geo.ErrInvalidCoordinates,
		},
		{
			name: "bad destination",
			input: CreateInput{
				Pickup:      transport.Place{Coordinate: pickup},
				Destination: transport.Place{Coordinate: geo.Coordinate{Lat: 9, Lng: 200}},
				Passengers:  1,
			},
			expected: geo.ErrInvalidCoordinates,
		},
		{
			name: "no passengers",
			input: CreateInput{
				Pickup:      transport.Place{Coordinate: pickup},
				Destination: transport.Place{Coordinate: destination},
			},
			expected: transport.ErrInvalidPassengers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCreate_UnknownVehicleDefaultsToTricycle(t *testing.T) {
	f := newFixture(t, Config{})

	r, err := f.engine.Create(context.Background(), CreateInput{
		RequesterID: f.rider,
		VehicleType: "hovercraft",
		Pickup:      transport.Place{Coordinate: pickup},
		Destination: transport.Place{Coordinate: destination},
		Passengers:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, driver.VehicleTricycle, r.VehicleType)
	assert.Equal(t, 110.0, r.EstimatedFare)
}

// TestAccept_ConcurrentDriversExactlyOneWins tests the accept race
func TestAccept_ConcurrentDriversExactlyOneWins(t *testing.T) {
	f := newFixture(t, Config{SingleActiveRequest: true})
	r := f.create(t)

	const drivers = 8
	ids := make([]uuid.UUID, drivers)
	for i := range ids {
		ids[i] = f.driver(t, driver.VehicleTricycle, pickup)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		errs    []error
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(driverID uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.engine.Accept(context.Background(), r.ID, driverID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, driverID)
			} else {
				errs = append(errs, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, errs, drivers-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, transport.ErrConflict)
	}

	got, err := f.requests.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, transport.StatusAccepted, got.Status)
	assert.True(t, got.AssignedTo(winners[0]))
}

func TestAccept_Errors(t *testing.T) {
	f := newFixture(t, Config{SingleActiveRequest: true})
	ctx := context.Background()
	r := f.create(t)

	_, err := f.engine.Accept(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, transport.ErrNotFound)

	_, err = f.engine.Accept(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, transport.ErrForbidden, "unknown driver")

	offline := f.driver(t, driver.VehicleTricycle, pickup)
	_, err = f.registry.SetAvailability(ctx, offline, false)
	require.NoError(t, err)
	_, err = f.engine.Accept(ctx, r.ID, offline)
	assert.ErrorIs(t, err, transport.ErrForbidden, "unavailable driver")

	winner := f.driver(t, driver.VehicleTricycle, pickup)
	_, err = f.engine.Accept(ctx, r.ID, winner)
	require.NoError(t, err)

	late := f.driver(t, driver.VehicleTricycle, pickup)
	_, err = f.engine.Accept(ctx, r.ID, late)
	assert.ErrorIs(t, err, transport.ErrConflict)
}

func TestAccept_SingleActiveRequestPolicy(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, Config{SingleActiveRequest: true})
	d := f.driver(t, driver.VehicleTricycle, pickup)
	first, second := f.create(t), f.create(t)
	_, err := f.engine.Accept(ctx, first.ID, d)
	require.NoError(t, err)
	_, err = f.engine.Accept(ctx, second.ID, d)
	assert.ErrorIs(t, err, transport.ErrDriverBusy)

	// once the first trip ends the driver may take the next one
	f.walk(t, first, d, transport.StatusDriverEnroute, transport.StatusArrived, transport.StatusInProgress, transport.StatusCompleted)
	_, err = f.engine.Accept(ctx, second.ID, d)
	assert.NoError(t, err)

	relaxed := newFixture(t, Config{SingleActiveRequest: false})
	d = relaxed.driver(t, driver.VehicleTricycle, pickup)
	a, b := relaxed.create(t), relaxed.create(t)
	_, err = relaxed.engine.Accept(ctx, a.ID, d)
	require.NoError(t, err)
	_, err = relaxed.engine.Accept(ctx, b.ID, d)
	assert.NoError(t, err)
}

// TestAdvance_FullLifecycleUpdatesStats tests completion statistics
func TestAdvance_FullLifecycleUpdatesStats(t *testing.T) {
	f := newFixture(t, Config{SingleActiveRequest: true})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.create(t)

	r = f.walk(t, r, d, transport.StatusAccepted, transport.StatusDriverEnroute,
		transport.StatusArrived, transport.StatusInProgress, transport.StatusCompleted)

	assert.Equal(t, transport.StatusCompleted, r.Status)
	assert.Len(t, r.Timeline, 6)
	for i, s := range []transport.Status{
		transport.TimelineRequested, transport.StatusAccepted, transport.StatusDriverEnroute,
		transport.StatusArrived, transport.StatusInProgress, transport.StatusCompleted,
	} {
		assert.Equal(t, clockStart.Add(time.Duration(i+1)*time.Minute), r.Timeline[s], "timeline[%s]", s)
	}

	got, err := f.registry.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.TotalTrips)
	assert.Equal(t, 1, got.Stats.CompletedTrips)
	assert.Equal(t, 110.0, got.Stats.TotalEarnings)
}

func TestAdvance_FinalFareOverridesEstimate(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.walk(t, f.create(t), d, transport.StatusAccepted, transport.StatusDriverEnroute,
		transport.StatusArrived, transport.StatusInProgress)

	_, err := f.engine.Advance(ctx, r.ID, d, transport.StatusCompleted, WithFinalFare(-1))
	assert.ErrorIs(t, err, transport.ErrInvalidFare)

	r, err = f.engine.Advance(ctx, r.ID, d, transport.StatusCompleted, WithFinalFare(130))
	require.NoError(t, err)
	require.NotNil(t, r.FinalFare)
	assert.Equal(t, 130.0, r.Fare())

	got, err := f.registry.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 130.0, got.Stats.TotalEarnings)
}

// TestAdvance_IllegalTransitionsLeaveStateUnchanged tests skipped and reversed steps
func TestAdvance_IllegalTransitionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.walk(t, f.create(t), d, transport.StatusAccepted)

	for _, next := range []transport.Status{transport.StatusArrived, transport.StatusCompleted, transport.StatusPending, transport.StatusAccepted} {
		_, err := f.engine.Advance(ctx, r.ID, d, next)
		assert.ErrorIs(t, err, transport.ErrIllegalTransition, "accepted -> %s", next)
	}

	_, err := f.engine.Advance(ctx, r.ID, d, "teleported")
	assert.ErrorIs(t, err, transport.ErrInvalidStatus)

	got, err := f.requests.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, transport.StatusAccepted, got.Status)
	assert.Len(t, got.Timeline, 2)
}

func TestAdvance_TerminalRequest(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.walk(t, f.create(t), d, transport.StatusAccepted, transport.StatusDriverEnroute,
		transport.StatusArrived, transport.StatusInProgress, transport.StatusCompleted)

	_, err := f.engine.Advance(ctx, r.ID, d, transport.StatusInProgress)
	assert.ErrorIs(t, err, transport.ErrIllegalTransition)
	assert.ErrorIs(t, err, transport.ErrAlreadyTerminal)

	got, err := f.registry.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.TotalTrips, "stats only move once")
}

func TestAdvance_ForbiddenForOtherDriver(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	other := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.walk(t, f.create(t), d, transport.StatusAccepted)

	_, err := f.engine.Advance(ctx, r.ID, other, transport.StatusDriverEnroute)
	assert.ErrorIs(t, err, transport.ErrForbidden)

	_, err = f.engine.Advance(ctx, uuid.New(), d, transport.StatusDriverEnroute)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestAdvance_CancelledDelegatesToCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.walk(t, f.create(t), d, transport.StatusAccepted)

	r, err := f.engine.Advance(ctx, r.ID, d, transport.StatusCancelled, WithReason("flat tire"))
	require.NoError(t, err)
	assert.Equal(t, transport.StatusCancelled, r.Status)
	assert.Equal(t, "flat tire", r.CancellationReason)
	assert.Equal(t, transport.RoleDriver, r.CancelledByRole)
	require.NotNil(t, r.CancelledBy)
	assert.Equal(t, d, *r.CancelledBy)
}

// TestCancel tests permissions and terminal protection
func TestCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)

	pending := f.create(t)
	_, err := f.engine.Cancel(ctx, pending.ID, transport.Actor{UserID: uuid.New(), Role: transport.RoleRider}, "")
	assert.ErrorIs(t, err, transport.ErrForbidden)

	cancelled, err := f.engine.Cancel(ctx, pending.ID, transport.Actor{UserID: f.rider, Role: transport.RoleRider}, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, transport.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DriverID)
	assert.Equal(t, f.rider, *cancelled.CancelledBy)

	_, err = f.engine.Cancel(ctx, pending.ID, transport.Actor{UserID: f.rider, Role: transport.RoleRider}, "again")
	assert.ErrorIs(t, err, transport.ErrAlreadyTerminal)

	got, err := f.requests.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.Timeline, got.Timeline)
	assert.Equal(t, "changed plans", got.CancellationReason)

	// admins may cancel anything that is still live
	live := f.walk(t, f.create(t), d, transport.StatusAccepted, transport.StatusDriverEnroute)
	byAdmin, err := f.engine.Cancel(ctx, live.ID, transport.Actor{UserID: uuid.New(), Role: transport.RoleAdmin}, "ops")
	require.NoError(t, err)
	assert.Equal(t, transport.RoleAdmin, byAdmin.CancelledByRole)
	assert.Contains(t, byAdmin.Timeline, transport.StatusDriverEnroute)

	_, err = f.engine.Cancel(ctx, uuid.New(), transport.Actor{Role: transport.RoleAdmin}, "")
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

// TestUpdateDriverLocation_ETAPolicy tests which leg the ETA measures
func TestUpdateDriverLocation_ETAPolicy(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, pickup)
	r := f.create(t)

	_, err := f.engine.UpdateDriverLocation(ctx, r.ID, d, pickup)
	assert.ErrorIs(t, err, transport.ErrForbidden, "pending requests have no driver")

	r = f.walk(t, r, d, transport.StatusAccepted)
	ping := geo.Coordinate{Lat: 9.01, Lng: 125.0}

	updated, err := f.engine.UpdateDriverLocation(ctx, r.ID, d, ping)
	require.NoError(t, err)
	assert.Equal(t, ping, *updated.DriverLocation)
	assert.Nil(t, updated.ETAMinutes, "accepted leaves ETA untouched")

	r = f.walk(t, r, d, transport.StatusDriverEnroute)
	updated, err = f.engine.UpdateDriverLocation(ctx, r.ID, d, ping)
	require.NoError(t, err)
	require.NotNil(t, updated.ETAMinutes)
	assert.Equal(t, geo.ETAMinutes(geo.DistanceKm(ping, pickup), geo.DefaultAverageSpeedKmh), *updated.ETAMinutes)
	assert.Equal(t, 3, *updated.ETAMinutes)

	r = f.walk(t, r, d, transport.StatusArrived)
	updated, err = f.engine.UpdateDriverLocation(ctx, r.ID, d, pickup)
	require.NoError(t, err)
	assert.Equal(t, 3, *updated.ETAMinutes, "arrived keeps the previous ETA")

	r = f.walk(t, r, d, transport.StatusInProgress)
	updated, err = f.engine.UpdateDriverLocation(ctx, r.ID, d, pickup)
	require.NoError(t, err)
	assert.Equal(t, 16, *updated.ETAMinutes)

	drv, err := f.registry.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, pickup, *drv.Location)

	other := f.driver(t, driver.VehicleTricycle, pickup)
	_, err = f.engine.UpdateDriverLocation(ctx, r.ID, other, pickup)
	assert.ErrorIs(t, err, transport.ErrForbidden)

	_, err = f.engine.UpdateDriverLocation(ctx, r.ID, d, geo.Coordinate{Lat: -91})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	r = f.walk(t, r, d, transport.StatusCompleted)
	_, err = f.engine.UpdateDriverLocation(ctx, r.ID, d, pickup)
	assert.ErrorIs(t, err, transport.ErrNotActive)
	assert.ErrorIs(t, err, transport.ErrAlreadyTerminal)
}

func TestListForDriver_NearestPendingFirst(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, geo.Coordinate{Lat: 9.05, Lng: 125.05})

	farther := f.create(t)
	closer, err := f.engine.Create(ctx, CreateInput{
		RequesterID: f.rider,
		VehicleType: driver.VehicleTricycle,
		Pickup:      transport.Place{Coordinate: geo.Coordinate{Lat: 9.04, Lng: 125.04}},
		Destination: transport.Place{Coordinate: pickup},
		Passengers:  1,
	})
	require.NoError(t, err)
	_, err = f.engine.Create(ctx, CreateInput{
		RequesterID: f.rider,
		VehicleType: driver.VehicleVan,
		Pickup:      transport.Place{Coordinate: pickup},
		Destination: transport.Place{Coordinate: destination},
		Passengers:  4,
	})
	require.NoError(t, err)

	list, err := f.engine.ListForDriver(ctx, d)
	require.NoError(t, err)
	require.Len(t, list.Pending, 2)
	assert.Equal(t, closer.ID, list.Pending[0].ID)
	assert.Equal(t, farther.ID, list.Pending[1].ID)
	assert.Empty(t, list.Assigned)

	f.walk(t, closer, d, transport.StatusAccepted)
	list, err = f.engine.ListForDriver(ctx, d)
	require.NoError(t, err)
	assert.Len(t, list.Pending, 1)
	require.Len(t, list.Assigned, 1)
	assert.Equal(t, closer.ID, list.Assigned[0].ID)

	riderList, err := f.engine.ListForRider(ctx, f.rider)
	require.NoError(t, err)
	assert.Len(t, riderList, 3)
}

func TestListForDriver_PendingRadius(t *testing.T) {
	f := newFixture(t, Config{PendingRadiusKm: 5})
	ctx := context.Background()
	d := f.driver(t, driver.VehicleTricycle, geo.Coordinate{Lat: 9.05, Lng: 125.05})

	f.create(t) // pickup about 7.8 km away
	closer, err := f.engine.Create(ctx, CreateInput{
		RequesterID: f.rider,
		VehicleType: driver.VehicleTricycle,
		Pickup:      transport.Place{Coordinate: geo.Coordinate{Lat: 9.04, Lng: 125.04}},
		Destination: transport.Place{Coordinate: pickup},
		Passengers:  1,
	})
	require.NoError(t, err)

	list, err := f.engine.ListForDriver(ctx, d)
	require.NoError(t, err)
	require.Len(t, list.Pending, 1)
	assert.Equal(t, closer.ID, list.Pending[0].ID)
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	r := f.create(t)

	_, err := f.engine.Get(ctx, r.ID, transport.Actor{UserID: f.rider, Role: transport.RoleRider})
	assert.NoError(t, err)

	_, err = f.engine.Get(ctx, r.ID, transport.Actor{UserID: uuid.New(), Role: transport.RoleRider})
	assert.ErrorIs(t, err, transport.ErrForbidden)
}

type failingStats struct {
	*registry.Service
}

func (failingStats) RecordCompletedTrip(context.Context, uuid.UUID, float64) error {
	return errors.New("stats store unavailable")
}

func TestAdvance_StatsFailureKeepsCompletion(t *testing.T) {
	f := newFixture(t, Config{})
	d := f.driver(t, driver.VehicleTricycle, pickup)
	engine := NewEngine(f.requests, failingStats{f.registry}, pricing.NewService(pricing.Config{}), logger.NewNop(), Config{})

	r := f.walk(t, f.create(t), d, transport.StatusAccepted, transport.StatusDriverEnroute,
		transport.StatusArrived, transport.StatusInProgress)

	r, err := engine.Advance(context.Background(), r.ID, d, transport.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, transport.StatusCompleted, r.Status)
}
