package geo

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mmcloughlin/geohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	p := Coordinate{Lat: 9.7392, Lng: 118.7353}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	points := []Coordinate{
		{Lat: 9.0, Lng: 125.0},
		{Lat: 9.05, Lng: 125.05},
		{Lat: 14.5995, Lng: 120.9842},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: -179.9},
	}

	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
		}
	}
}

func TestDistanceKm_KnownPairs(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Coordinate
		expected  float64
		tolerance float64
	}{
		{
			name:      "Butuan pickup to nearby resort",
			a:         Coordinate{Lat: 9.0, Lng: 125.0},
			b:         Coordinate{Lat: 9.05, Lng: 125.05},
			expected:  7.81,
			tolerance: 0.06,
		},
		{
			name:      "Manila to Cebu",
			a:         Coordinate{Lat: 14.5995, Lng: 120.9842},
			b:         Coordinate{Lat: 10.3157, Lng: 123.8854},
			expected:  570,
			tolerance: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DistanceKm(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestETAMinutes(t *testing.T) {
	assert.Equal(t, 16, ETAMinutes(7.81, 30))
	assert.Equal(t, 2, ETAMinutes(1, 30))
	assert.Equal(t, 60, ETAMinutes(30, 30))
	assert.Equal(t, 0, ETAMinutes(0, 30))
	assert.Equal(t, 2, ETAMinutes(1, 0), "non-positive speed falls back to the default")
}

func TestCoordinate_Validate(t *testing.T) {
	require.NoError(t, Coordinate{Lat: 90, Lng: -180}.Validate())
	require.NoError(t, Coordinate{Lat: -90, Lng: 180}.Validate())

	invalid := []Coordinate{
		{Lat: 90.0001, Lng: 0},
		{Lat: 0, Lng: -180.5},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	}
	for _, c := range invalid {
		err := c.Validate()
		assert.True(t, errors.Is(err, ErrInvalidCoordinates), "%v should be rejected", c)
	}
}

func TestCoveringCells(t *testing.T) {
	c := Coordinate{Lat: 9.0, Lng: 125.0}

	cells := CoveringCells(c, 3)
	require.Len(t, cells, 9)
	assert.Equal(t, Cell(c, PrecisionFor(c.Lat, 3)), cells[0])
	assert.Equal(t, uint(5), PrecisionFor(c.Lat, 3))
	assert.Equal(t, uint(1), PrecisionFor(c.Lat, 10000))
}

func TestCellSpanKm(t *testing.T) {
	tests := []struct {
		precision     uint
		height, width float64
	}{
		{2, 625, 1250},
		{4, 19.5, 39.1},
		{5, 4.89, 4.89},
		{6, 0.61, 1.22},
		{8, 0.0191, 0.0382},
	}

	for _, tt := range tests {
		height, width := CellSpanKm(tt.precision, 0)
		assert.InEpsilon(t, tt.height, height, 0.01, "precision %d height", tt.precision)
		assert.InEpsilon(t, tt.width, width, 0.01, "precision %d width", tt.precision)
	}

	_, width := CellSpanKm(5, 60)
	assert.InEpsilon(t, 2.445, width, 0.01, "cells narrow towards the poles")
}

func TestPrecisionFor_UsesShorterSide(t *testing.T) {
	// p6 cells are 1.22km wide but only 0.61km tall
	assert.Equal(t, uint(5), PrecisionFor(9, 1))
	// p4 cells are 19.5km tall, short of the 20km search step
	assert.Equal(t, uint(3), PrecisionFor(9, 20))
	assert.Equal(t, uint(4), PrecisionFor(9, 19))
	// at 60 degrees a p5 cell is ~2.4km wide
	assert.Equal(t, uint(5), PrecisionFor(9, 2.5))
	assert.Equal(t, uint(4), PrecisionFor(60, 2.5))
}

// TestCoveringCells_SouthEdge places the query at the southern edge of its
// cell and a point just inside the radius to the south.
func TestCoveringCells_SouthEdge(t *testing.T) {
	radius := 1.0
	box := geohash.BoundingBox(Cell(Coordinate{Lat: 9.0, Lng: 125.0}, 6))
	_, lng := box.Center()
	query := Coordinate{Lat: box.MinLat + 1e-6, Lng: lng}
	south := Coordinate{Lat: query.Lat - 0.9/KmPerDegree, Lng: lng}
	require.Less(t, DistanceKm(query, south), radius)

	stored := Cell(south, 9)
	covered := false
	for _, cell := range CoveringCells(query, radius) {
		if strings.HasPrefix(stored, cell) {
			covered = true
		}
	}
	assert.True(t, covered, "cell %s should fall inside the search cells", stored)
}
