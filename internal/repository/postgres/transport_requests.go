package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const requestColumns = `id, requester_id, booking_id, vehicle_type,
	pickup_lat, pickup_lng, pickup_address,
	destination_lat, destination_lng, destination_address,
	passengers, distance_km, estimated_fare, final_fare, duration_minutes,
	driver_id, driver_lat, driver_lng, driver_location_at, eta_minutes,
	status, timeline, cancellation_reason, cancelled_by, cancelled_by_role,
	created_at, updated_at`

const activeStatuses = `('accepted', 'driver_enroute', 'arrived', 'in_progress')`

type requestRow struct {
	ID                 uuid.UUID       `db:"id"`
	RequesterID        uuid.UUID       `db:"requester_id"`
	BookingID          uuid.NullUUID   `db:"booking_id"`
	VehicleType        string          `db:"vehicle_type"`
	PickupLat          float64         `db:"pickup_lat"`
	PickupLng          float64         `db:"pickup_lng"`
	PickupAddress      string          `db:"pickup_address"`
	DestinationLat     float64         `db:"destination_lat"`
	DestinationLng     float64         `db:"destination_lng"`
	DestinationAddress string          `db:"destination_address"`
	Passengers         int             `db:"passengers"`
	DistanceKm         float64         `db:"distance_km"`
	EstimatedFare      float64         `db:"estimated_fare"`
	FinalFare          sql.NullFloat64 `db:"final_fare"`
	DurationMinutes    int             `db:"duration_minutes"`
	DriverID           uuid.NullUUID   `db:"driver_id"`
	DriverLat          sql.NullFloat64 `db:"driver_lat"`
	DriverLng          sql.NullFloat64 `db:"driver_lng"`
	DriverLocationAt   sql.NullTime    `db:"driver_location_at"`
	ETAMinutes         sql.NullInt64   `db:"eta_minutes"`
	Status             string          `db:"status"`
	Timeline           []byte          `db:"timeline"`
	CancellationReason string          `db:"cancellation_reason"`
	CancelledBy        uuid.NullUUID   `db:"cancelled_by"`
	CancelledByRole    string          `db:"cancelled_by_role"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r requestRow) toDomain() (*transport.Request, error) {
	req := &transport.Request{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		VehicleType: driver.VehicleType(r.VehicleType),
		Pickup: transport.Place{
			Coordinate: geo.Coordinate{Lat: r.PickupLat, Lng: r.PickupLng},
			Address:    r.PickupAddress,
		},
		Destination: transport.Place{
			Coordinate: geo.Coordinate{Lat: r.DestinationLat, Lng: r.DestinationLng},
			Address:    r.DestinationAddress,
		},
		Passengers:         r.Passengers,
		DistanceKm:         r.DistanceKm,
		EstimatedFare:      r.EstimatedFare,
		DurationMinutes:    r.DurationMinutes,
		Status:             transport.Status(r.Status),
		CancellationReason: r.CancellationReason,
		CancelledByRole:    transport.Role(r.CancelledByRole),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Timeline:           transport.Timeline{},
	}

	if len(r.Timeline) > 0 {
		if err := json.Unmarshal(r.Timeline, &req.Timeline); err != nil {
			return nil, fmt.Errorf("failed to decode timeline: %w", err)
		}
	}
	if r.BookingID.Valid {
		id := r.BookingID.UUID
		req.BookingID = &id
	}
	if r.DriverID.Valid {
		id := r.DriverID.UUID
		req.DriverID = &id
	}
	if r.CancelledBy.Valid {
		id := r.CancelledBy.UUID
		req.CancelledBy = &id
	}
	if r.FinalFare.Valid {
		f := r.FinalFare.Float64
		req.FinalFare = &f
	}
	if r.DriverLat.Valid && r.DriverLng.Valid {
		req.DriverLocation = &geo.Coordinate{Lat: r.DriverLat.Float64, Lng: r.DriverLng.Float64}
	}
	if r.DriverLocationAt.Valid {
		at := r.DriverLocationAt.Time
		req.DriverLocationAt = &at
	}
	if r.ETAMinutes.Valid {
		eta := int(r.ETAMinutes.Int64)
		req.ETAMinutes = &eta
	}
	return req, nil
}

// TransportRequestRepository implements transport.Repository on PostgreSQL.
type TransportRequestRepository struct {
	db *sqlx.DB
}

func NewTransportRequestRepository(db *sqlx.DB) *TransportRequestRepository {
	return &TransportRequestRepository{db: db}
}

func (r *TransportRequestRepository) Create(ctx context.Context, req *transport.Request) error {
	timeline, err := json.Marshal(req.Timeline)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}

	query := `
		INSERT INTO transport_requests (
			id, requester_id, booking_id, vehicle_type,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			passengers, distance_km, estimated_fare, duration_minutes,
			status, timeline, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.RequesterID, req.BookingID, req.VehicleType,
		req.Pickup.Lat, req.Pickup.Lng, req.Pickup.Address,
		req.Destination.Lat, req.Destination.Lng, req.Destination.Address,
		req.Passengers, req.DistanceKm, req.EstimatedFare, req.DurationMinutes,
		req.Status, timeline, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transport request: %w", err)
	}
	return nil
}

func (r *TransportRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*transport.Request, error) {
	return r.getOne(ctx, `SELECT `+requestColumns+` FROM transport_requests WHERE id = $1`, id)
}

func (r *TransportRequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*transport.Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM transport_requests
		WHERE requester_id = $1 ORDER BY created_at DESC`, requesterID)
}

func (r *TransportRequestRepository) ListPending(ctx context.Context, vt driver.VehicleType) ([]*transport.Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM transport_requests
		WHERE status = 'pending' AND ($1::text = '' OR vehicle_type = $1::text)
		ORDER BY created_at`, string(vt))
}

func (r *TransportRequestRepository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]*transport.Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM transport_requests
		WHERE driver_id = $1 ORDER BY created_at DESC`, driverID)
}

func (r *TransportRequestRepository) ActiveForDriver(ctx context.Context, driverID uuid.UUID) (*transport.Request, error) {
	return r.getOne(ctx, `SELECT `+requestColumns+` FROM transport_requests
		WHERE driver_id = $1 AND status IN `+activeStatuses+`
		ORDER BY created_at DESC LIMIT 1`, driverID)
}

// Transition is a single conditional UPDATE. The timeline merge keeps any
// existing entry for the target status.
func (r *TransportRequestRepository) Transition(ctx context.Context, t transport.Transition) (*transport.Request, error) {
	query := `
		UPDATE transport_requests
		SET status = $3::text,
			timeline = jsonb_build_object($3::text, $4::timestamptz) || timeline,
			driver_id = COALESCE($5, driver_id),
			final_fare = COALESCE($6, final_fare),
			cancellation_reason = CASE WHEN $3::text = 'cancelled' THEN $7 ELSE cancellation_reason END,
			cancelled_by = CASE WHEN $3::text = 'cancelled' THEN $8 ELSE cancelled_by END,
			cancelled_by_role = CASE WHEN $3::text = 'cancelled' THEN $9 ELSE cancelled_by_role END,
			updated_at = $4
		WHERE id = $1 AND status = $2
		AND (NOT $10::boolean OR NOT EXISTS (
			SELECT 1 FROM transport_requests busy
			WHERE busy.driver_id = $5 AND busy.status IN ` + activeStatuses + `
		))
		RETURNING ` + requestColumns

	req, err := r.getOne(ctx, query,
		t.RequestID, t.From, t.To, t.At,
		t.DriverID, t.FinalFare,
		t.CancellationReason, t.CancelledBy, string(t.CancelledByRole),
		t.RequireIdleDriver,
	)
	switch {
	case err == nil:
		return req, nil
	case errors.Is(err, transport.ErrNotFound):
		return nil, r.explainMiss(ctx, t.RequestID, t.From, transport.ErrDriverBusy)
	case isUniqueViolation(err, "uq_transport_requests_active_driver"):
		return nil, transport.ErrDriverBusy
	default:
		return nil, err
	}
}

func (r *TransportRequestRepository) SetDriverLocation(ctx context.Context, u transport.LocationUpdate) (*transport.Request, error) {
	query := `
		UPDATE transport_requests
		SET driver_lat = $4, driver_lng = $5, driver_location_at = $6,
			eta_minutes = COALESCE($7, eta_minutes), updated_at = $6
		WHERE id = $1 AND driver_id = $2 AND status = $3
		RETURNING ` + requestColumns

	req, err := r.getOne(ctx, query,
		u.RequestID, u.DriverID, u.Status, u.Location.Lat, u.Location.Lng, u.At, u.ETAMinutes,
	)
	if errors.Is(err, transport.ErrNotFound) {
		return nil, r.explainMiss(ctx, u.RequestID, u.Status, transport.ErrStatusChanged)
	}
	return req, err
}

// explainMiss tells apart the reasons a conditional UPDATE touched no row.
// sameStatus is returned when the row still holds the expected status.
func (r *TransportRequestRepository) explainMiss(ctx context.Context, id uuid.UUID, expected transport.Status, sameStatus error) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM transport_requests WHERE id = $1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return transport.ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to read transport request status: %w", err)
	case transport.Status(status) != expected:
		return transport.ErrStatusChanged
	default:
		return sameStatus
	}
}

func (r *TransportRequestRepository) getOne(ctx context.Context, query string, args ...interface{}) (*transport.Request, error) {
	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transport.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query transport request: %w", err)
	}
	return row.toDomain()
}

func (r *TransportRequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]*transport.Request, error) {
	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transport requests: %w", err)
	}

	out := make([]*transport.Request, 0, len(rows))
	for _, row := range rows {
		req, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
