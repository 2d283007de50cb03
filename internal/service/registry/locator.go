package registry

import (
	"context"
	"fmt"

	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLocationsKey is the Redis GEO set holding driver positions.
const DefaultLocationsKey = "drivers:locations"

// Locator is a geo index of driver positions.
type Locator interface {
	Upsert(ctx context.Context, driverID uuid.UUID, c geo.Coordinate) error
	Remove(ctx context.Context, driverID uuid.UUID) error
	// Nearby returns driver ids within radiusKm, nearest first.
	Nearby(ctx context.Context, c geo.Coordinate, radiusKm float64, limit int) ([]NearbyDriver, error)
}

// NearbyDriver is one geo index hit.
type NearbyDriver struct {
	DriverID   uuid.UUID
	DistanceKm float64
}

// RedisLocator keeps driver positions in a Redis GEO set.
type RedisLocator struct {
	redis *redis.Client
	key   string
}

// NewRedisLocator creates a locator on key, or DefaultLocationsKey when empty.
func NewRedisLocator(client *redis.Client, key string) *RedisLocator {
	if key == "" {
		key = DefaultLocationsKey
	}
	return &RedisLocator{redis: client, key: key}
}

func (l *RedisLocator) Upsert(ctx context.Context, driverID uuid.UUID, c geo.Coordinate) error {
	err := l.redis.GeoAdd(ctx, l.key, &redis.GeoLocation{
		Name:      driverID.String(),
		Longitude: c.Lng,
		Latitude:  c.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index driver location: %w", err)
	}
	return nil
}

func (l *RedisLocator) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := l.redis.ZRem(ctx, l.key, driverID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove driver location: %w", err)
	}
	return nil
}

func (l *RedisLocator) Nearby(ctx context.Context, c geo.Coordinate, radiusKm float64, limit int) ([]NearbyDriver, error) {
	results, err := l.redis.GeoRadius(ctx, l.key, c.Lng, c.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Count:    limit,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby drivers: %w", err)
	}

	out := make([]NearbyDriver, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.Name)
		if err != nil {
			// foreign member in the set
			continue
		}
		out = append(out, NearbyDriver{DriverID: id, DistanceKm: r.Dist})
	}
	return out, nil
}
