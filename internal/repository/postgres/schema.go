package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS drivers (
	id                  UUID PRIMARY KEY,
	user_id             UUID NOT NULL UNIQUE,
	vehicle_type        VARCHAR(32) NOT NULL,
	vehicle_plate       VARCHAR(32) NOT NULL,
	vehicle_capacity    INTEGER NOT NULL CHECK (vehicle_capacity > 0),
	verification        VARCHAR(16) NOT NULL DEFAULT 'pending',
	is_available        BOOLEAN NOT NULL DEFAULT FALSE,
	lat                 DOUBLE PRECISION,
	lng                 DOUBLE PRECISION,
	geohash             VARCHAR(12),
	location_updated_at TIMESTAMPTZ,
	base_rate           NUMERIC(10,2) NOT NULL DEFAULT 0,
	per_km              NUMERIC(10,2) NOT NULL DEFAULT 0,
	per_minute          NUMERIC(10,2) NOT NULL DEFAULT 0,
	total_trips         INTEGER NOT NULL DEFAULT 0,
	completed_trips     INTEGER NOT NULL DEFAULT 0,
	total_earnings      NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drivers_available
	ON drivers (vehicle_type, geohash)
	WHERE verification = 'approved' AND is_available;

CREATE TABLE IF NOT EXISTS transport_requests (
	id                  UUID PRIMARY KEY,
	requester_id        UUID NOT NULL,
	booking_id          UUID,
	vehicle_type        VARCHAR(32) NOT NULL,
	pickup_lat          DOUBLE PRECISION NOT NULL,
	pickup_lng          DOUBLE PRECISION NOT NULL,
	pickup_address      TEXT NOT NULL DEFAULT '',
	destination_lat     DOUBLE PRECISION NOT NULL,
	destination_lng     DOUBLE PRECISION NOT NULL,
	destination_address TEXT NOT NULL DEFAULT '',
	passengers          INTEGER NOT NULL CHECK (passengers > 0),
	distance_km         DOUBLE PRECISION NOT NULL,
	estimated_fare      NUMERIC(10,2) NOT NULL,
	final_fare          NUMERIC(10,2),
	duration_minutes    INTEGER NOT NULL,
	driver_id           UUID REFERENCES drivers(id),
	driver_lat          DOUBLE PRECISION,
	driver_lng          DOUBLE PRECISION,
	driver_location_at  TIMESTAMPTZ,
	eta_minutes         INTEGER,
	status              VARCHAR(20) NOT NULL,
	timeline            JSONB NOT NULL DEFAULT '{}'::jsonb,
	cancellation_reason TEXT NOT NULL DEFAULT '',
	cancelled_by        UUID,
	cancelled_by_role   VARCHAR(16) NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transport_requests_requester
	ON transport_requests (requester_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transport_requests_pending
	ON transport_requests (vehicle_type, created_at)
	WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_transport_requests_driver
	ON transport_requests (driver_id, created_at DESC);
`

const singleActiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS uq_transport_requests_active_driver
	ON transport_requests (driver_id)
	WHERE status IN ('accepted', 'driver_enroute', 'arrived', 'in_progress')`

const dropSingleActiveIndex = `DROP INDEX IF EXISTS uq_transport_requests_active_driver`

// MigrateOptions tunes Migrate.
type MigrateOptions struct {
	// SingleActiveRequest adds a partial unique index allowing at most one
	// active request per driver.
	SingleActiveRequest bool
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB, opts MigrateOptions) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	stmt := dropSingleActiveIndex
	if opts.SingleActiveRequest {
		stmt = singleActiveIndex
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to apply active request index: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation,
// optionally restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
