package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const driverColumns = `id, user_id, vehicle_type, vehicle_plate, vehicle_capacity,
	verification, is_available, lat, lng, location_updated_at,
	base_rate, per_km, per_minute, total_trips, completed_trips, total_earnings,
	created_at, updated_at`

type driverRow struct {
	ID                uuid.UUID       `db:"id"`
	UserID            uuid.UUID       `db:"user_id"`
	VehicleType       string          `db:"vehicle_type"`
	VehiclePlate      string          `db:"vehicle_plate"`
	VehicleCapacity   int             `db:"vehicle_capacity"`
	Verification      string          `db:"verification"`
	IsAvailable       bool            `db:"is_available"`
	Lat               sql.NullFloat64 `db:"lat"`
	Lng               sql.NullFloat64 `db:"lng"`
	LocationUpdatedAt sql.NullTime    `db:"location_updated_at"`
	BaseRate          float64         `db:"base_rate"`
	PerKm             float64         `db:"per_km"`
	PerMinute         float64         `db:"per_minute"`
	TotalTrips        int             `db:"total_trips"`
	CompletedTrips    int             `db:"completed_trips"`
	TotalEarnings     float64         `db:"total_earnings"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r driverRow) toDomain() *driver.Driver {
	d := &driver.Driver{
		ID:     r.ID,
		UserID: r.UserID,
		Vehicle: driver.Vehicle{
			Type:     driver.VehicleType(r.VehicleType),
			Plate:    r.VehiclePlate,
			Capacity: r.VehicleCapacity,
		},
		Verification: driver.Verification(r.Verification),
		IsAvailable:  r.IsAvailable,
		Pricing: driver.Pricing{
			BaseRate:  r.BaseRate,
			PerKm:     r.PerKm,
			PerMinute: r.PerMinute,
		},
		Stats: driver.Stats{
			TotalTrips:     r.TotalTrips,
			CompletedTrips: r.CompletedTrips,
			TotalEarnings:  r.TotalEarnings,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Lat.Valid && r.Lng.Valid {
		d.Location = &geo.Coordinate{Lat: r.Lat.Float64, Lng: r.Lng.Float64}
	}
	if r.LocationUpdatedAt.Valid {
		at := r.LocationUpdatedAt.Time
		d.LocationUpdatedAt = &at
	}
	return d
}

// DriverRepository implements driver.Repository on PostgreSQL.
type DriverRepository struct {
	db *sqlx.DB
}

func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

func (r *DriverRepository) Create(ctx context.Context, d *driver.Driver) error {
	query := `
		INSERT INTO drivers (
			id, user_id, vehicle_type, vehicle_plate, vehicle_capacity,
			verification, is_available, base_rate, per_km, per_minute,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.UserID, d.Vehicle.Type, d.Vehicle.Plate, d.Vehicle.Capacity,
		d.Verification, d.IsAvailable, d.Pricing.BaseRate, d.Pricing.PerKm, d.Pricing.PerMinute,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "drivers_user_id_key") {
			return driver.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to create driver: %w", err)
	}
	return nil
}

func (r *DriverRepository) GetByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

func (r *DriverRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*driver.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID)
}

func (r *DriverRepository) SetVerification(ctx context.Context, id uuid.UUID, v driver.Verification) (*driver.Driver, error) {
	query := `
		UPDATE drivers
		SET verification = $2::text,
			is_available = CASE WHEN $2::text = 'rejected' THEN FALSE ELSE is_available END,
			updated_at = $3
		WHERE id = $1
		RETURNING ` + driverColumns

	return r.getOne(ctx, query, id, v, time.Now().UTC())
}

func (r *DriverRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*driver.Driver, error) {
	query := `
		UPDATE drivers
		SET is_available = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + driverColumns

	return r.getOne(ctx, query, id, available, time.Now().UTC())
}

func (r *DriverRepository) UpdateLocation(ctx context.Context, id uuid.UUID, loc geo.Coordinate, cell string, at time.Time) error {
	query := `
		UPDATE drivers
		SET lat = $2, lng = $3, geohash = $4, location_updated_at = $5, updated_at = $5
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, loc.Lat, loc.Lng, cell, at)
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	return expectOneRow(res, driver.ErrDriverNotFound)
}

func (r *DriverRepository) ListAvailable(ctx context.Context, f driver.Filter) ([]*driver.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers
		WHERE verification = 'approved' AND is_available
		AND ($1::text = '' OR vehicle_type = $1::text)`
	args := []interface{}{string(f.VehicleType)}

	if len(f.Cells) > 0 {
		patterns := make([]string, len(f.Cells))
		for i, c := range f.Cells {
			patterns[i] = c + "%"
		}
		args = append(args, pq.Array(patterns))
		query += fmt.Sprintf(" AND geohash LIKE ANY($%d)", len(args))
	}

	query += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []driverRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}

	out := make([]*driver.Driver, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// IncrementStats bumps the trip counters in a single statement so that
// concurrent completions never lose an update.
func (r *DriverRepository) IncrementStats(ctx context.Context, id uuid.UUID, fare float64) error {
	query := `
		UPDATE drivers
		SET total_trips = total_trips + 1,
			completed_trips = completed_trips + 1,
			total_earnings = total_earnings + $2,
			updated_at = $3
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, fare, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment driver stats: %w", err)
	}
	return expectOneRow(res, driver.ErrDriverNotFound)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, args ...interface{}) (*driver.Driver, error) {
	var row driverRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, driver.ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return row.toDomain(), nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
