package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(vt driver.VehicleType, v driver.Verification, available bool) *driver.Driver {
	now := time.Now().UTC()
	return &driver.Driver{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Vehicle:      driver.Vehicle{Type: vt, Plate: "ABC 123", Capacity: 3},
		Verification: v,
		IsAvailable:  available,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newPending() *transport.Request {
	now := time.Now().UTC()
	return &transport.Request{
		ID:          uuid.New(),
		RequesterID: uuid.New(),
		VehicleType: driver.VehicleTricycle,
		Passengers:  1,
		Status:      transport.StatusPending,
		Timeline:    transport.Timeline{transport.TimelineRequested: now},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestDriverStore_CreateRejectsSecondProfile tests the one profile per user rule
func TestDriverStore_CreateRejectsSecondProfile(t *testing.T) {
	store := NewDriverStore()
	ctx := context.Background()

	d := newDriver(driver.VehicleVan, driver.VerificationPending, false)
	require.NoError(t, store.Create(ctx, d))

	dup := newDriver(driver.VehicleVan, driver.VerificationPending, false)
	dup.UserID = d.UserID
	assert.ErrorIs(t, store.Create(ctx, dup), driver.ErrAlreadyRegistered)

	got, err := store.GetByUserID(ctx, d.UserID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, driver.ErrDriverNotFound)
}

func TestDriverStore_RejectionClearsAvailability(t *testing.T) {
	store := NewDriverStore()
	ctx := context.Background()

	d := newDriver(driver.VehicleVan, driver.VerificationApproved, true)
	require.NoError(t, store.Create(ctx, d))

	got, err := store.SetVerification(ctx, d.ID, driver.VerificationRejected)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.Equal(t, driver.VerificationRejected, got.Verification)
}

// TestDriverStore_ListAvailable tests filtering by serviceability, type and cell
func TestDriverStore_ListAvailable(t *testing.T) {
	store := NewDriverStore()
	ctx := context.Background()

	near := newDriver(driver.VehicleTricycle, driver.VerificationApproved, true)
	far := newDriver(driver.VehicleTricycle, driver.VerificationApproved, true)
	offline := newDriver(driver.VehicleTricycle, driver.VerificationApproved, false)
	pending := newDriver(driver.VehicleTricycle, driver.VerificationPending, true)
	van := newDriver(driver.VehicleVan, driver.VerificationApproved, true)
	for _, d := range []*driver.Driver{near, far, offline, pending, van} {
		require.NoError(t, store.Create(ctx, d))
	}

	nearLoc := geo.Coordinate{Lat: 9.0, Lng: 125.0}
	farLoc := geo.Coordinate{Lat: 14.6, Lng: 121.0}
	require.NoError(t, store.UpdateLocation(ctx, near.ID, nearLoc, geo.Cell(nearLoc, 9), time.Now()))
	require.NoError(t, store.UpdateLocation(ctx, far.ID, farLoc, geo.Cell(farLoc, 9), time.Now()))

	all, err := store.ListAvailable(ctx, driver.Filter{VehicleType: driver.VehicleTricycle})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cells, err := store.ListAvailable(ctx, driver.Filter{
		VehicleType: driver.VehicleTricycle,
		Cells:       geo.CoveringCells(nearLoc, 3),
	})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, near.ID, cells[0].ID)
}

func TestDriverStore_IncrementStatsIsAtomic(t *testing.T) {
	store := NewDriverStore()
	ctx := context.Background()
	d := newDriver(driver.VehicleTricycle, driver.VerificationApproved, true)
	require.NoError(t, store.Create(ctx, d))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementStats(ctx, d.ID, 10))
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Stats.TotalTrips)
	assert.Equal(t, 50, got.Stats.CompletedTrips)
	assert.Equal(t, 500.0, got.Stats.TotalEarnings)
}

// TestTransportStore_TransitionIsCompareAndSwap tests that only one concurrent accept wins
func TestTransportStore_TransitionIsCompareAndSwap(t *testing.T) {
	store := NewTransportStore()
	ctx := context.Background()
	r := newPending()
	require.NoError(t, store.Create(ctx, r))

	const contenders = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			driverID := uuid.New()
			_, err := store.Transition(ctx, transport.Transition{
				RequestID: r.ID,
				From:      transport.StatusPending,
				To:        transport.StatusAccepted,
				At:        time.Now(),
				DriverID:  &driverID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, transport.ErrStatusChanged) {
				lost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, lost)

	got, err := store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, transport.StatusAccepted, got.Status)
	assert.NotNil(t, got.DriverID)
}

func TestTransportStore_RequireIdleDriver(t *testing.T) {
	store := NewTransportStore()
	ctx := context.Background()
	driverID := uuid.New()

	first, second := newPending(), newPending()
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	accept := func(id uuid.UUID) error {
		_, err := store.Transition(ctx, transport.Transition{
			RequestID:         id,
			From:              transport.StatusPending,
			To:                transport.StatusAccepted,
			At:                time.Now(),
			DriverID:          &driverID,
			RequireIdleDriver: true,
		})
		return err
	}

	require.NoError(t, accept(first.ID))
	assert.ErrorIs(t, accept(second.ID), transport.ErrDriverBusy)

	active, err := store.ActiveForDriver(ctx, driverID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	pending, err := store.ListPending(ctx, driver.VehicleTricycle)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestTransportStore_SetDriverLocation(t *testing.T) {
	store := NewTransportStore()
	ctx := context.Background()
	driverID := uuid.New()
	r := newPending()
	require.NoError(t, store.Create(ctx, r))

	_, err := store.Transition(ctx, transport.Transition{
		RequestID: r.ID, From: transport.StatusPending, To: transport.StatusAccepted,
		At: time.Now(), DriverID: &driverID,
	})
	require.NoError(t, err)

	eta := 7
	got, err := store.SetDriverLocation(ctx, transport.LocationUpdate{
		RequestID:  r.ID,
		DriverID:   driverID,
		Status:     transport.StatusAccepted,
		Location:   geo.Coordinate{Lat: 9.01, Lng: 125.01},
		At:         time.Now(),
		ETAMinutes: &eta,
	})
	require.NoError(t, err)
	require.NotNil(t, got.DriverLocation)
	assert.Equal(t, 7, *got.ETAMinutes)

	// stale observed status
	_, err = store.SetDriverLocation(ctx, transport.LocationUpdate{
		RequestID: r.ID, DriverID: driverID, Status: transport.StatusArrived, At: time.Now(),
	})
	assert.ErrorIs(t, err, transport.ErrStatusChanged)

	_, err = store.SetDriverLocation(ctx, transport.LocationUpdate{RequestID: uuid.New()})
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestTransportStore_ListByRequesterNewestFirst(t *testing.T) {
	store := NewTransportStore()
	ctx := context.Background()
	rider := uuid.New()

	older, newer := newPending(), newPending()
	older.RequesterID, newer.RequesterID = rider, rider
	older.CreatedAt = newer.CreatedAt.Add(-time.Hour)
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, store.Create(ctx, newer))
	require.NoError(t, store.Create(ctx, newPending()))

	list, err := store.ListByRequester(ctx, rider)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
}
