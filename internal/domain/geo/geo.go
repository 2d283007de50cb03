package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	// DefaultAverageSpeedKmh is the assumed travel speed when no per-vehicle
	// speed is configured. No live traffic data is consulted.
	DefaultAverageSpeedKmh = 30.0
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks latitude and longitude ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCoordinates)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidCoordinates)
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ETAMinutes estimates whole minutes to cover distanceKm at averageSpeedKmh,
// rounded up.
func ETAMinutes(distanceKm, averageSpeedKmh float64) int {
	if distanceKm <= 0 {
		return 0
	}
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = DefaultAverageSpeedKmh
	}
	return int(math.Ceil(distanceKm / averageSpeedKmh * 60))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// KmPerDegree is the length of one degree of latitude.
const KmPerDegree = EarthRadiusKm * math.Pi / 180

const maxCellPrecision = 9

// CellSpanKm returns the north-south and east-west extent of a geohash cell
// of the given precision at latitude lat. At the equator odd precisions give
// square cells and even precisions cells twice as wide as tall.
func CellSpanKm(precision uint, lat float64) (height, width float64) {
	bits := 5 * precision
	latBits := bits / 2
	lngBits := bits - latBits
	height = 180 / math.Exp2(float64(latBits)) * KmPerDegree
	width = 360 / math.Exp2(float64(lngBits)) * KmPerDegree * math.Cos(toRadians(lat))
	return height, width
}

// PrecisionFor picks the finest geohash precision whose cell is at least
// radiusKm in both directions around lat, so that a cell plus its neighbours
// contains the whole circle. Width is taken at the poleward edge of the
// circle, where cells are narrowest.
func PrecisionFor(lat, radiusKm float64) uint {
	edge := math.Min(90, math.Abs(lat)+radiusKm/KmPerDegree)
	for p := uint(maxCellPrecision); p >= 1; p-- {
		height, width := CellSpanKm(p, edge)
		if math.Min(height, width) >= radiusKm {
			return p
		}
	}
	return 1
}

// Cell encodes c as a geohash of the given precision.
func Cell(c Coordinate, precision uint) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lng, precision)
}

// CoveringCells returns the cell containing c and its eight neighbours at a
// precision suitable for radiusKm.
func CoveringCells(c Coordinate, radiusKm float64) []string {
	center := Cell(c, PrecisionFor(c.Lat, radiusKm))
	return append([]string{center}, geohash.Neighbors(center)...)
}
