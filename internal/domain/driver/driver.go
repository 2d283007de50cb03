package driver

import (
	"strings"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/google/uuid"
)

// VehicleType represents the type of vehicle a driver operates
type VehicleType string

const (
	VehicleTricycle   VehicleType = "tricycle"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleVan        VehicleType = "van"
	VehiclePrivateCar VehicleType = "private_car"
)

// VehicleTypes lists every supported vehicle type.
var VehicleTypes = []VehicleType{VehicleTricycle, VehicleMotorcycle, VehicleVan, VehiclePrivateCar}

// Verification is the admin review state of a driver application
type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationApproved Verification = "approved"
	VerificationRejected Verification = "rejected"
)

// Vehicle describes the vehicle registered with a driver profile
type Vehicle struct {
	Type     VehicleType `json:"type"`
	Plate    string      `json:"plate"`
	Capacity int         `json:"capacity"`
}

// Pricing is the driver's own advertised rate card.
type Pricing struct {
	BaseRate  float64 `json:"base_rate"`
	PerKm     float64 `json:"per_km"`
	PerMinute float64 `json:"per_minute"`
}

// Stats are cumulative trip statistics. They only change on trip completion.
type Stats struct {
	TotalTrips     int     `json:"total_trips"`
	CompletedTrips int     `json:"completed_trips"`
	TotalEarnings  float64 `json:"total_earnings"`
}

// Driver represents a driver profile owned by exactly one user
type Driver struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Vehicle           Vehicle         `json:"vehicle"`
	Verification      Verification    `json:"verification"`
	IsAvailable       bool            `json:"is_available"`
	Location          *geo.Coordinate `json:"location,omitempty"`
	LocationUpdatedAt *time.Time      `json:"location_updated_at,omitempty"`
	Pricing           Pricing         `json:"pricing"`
	Stats             Stats           `json:"stats"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Filter narrows ListAvailable. Zero values mean "any".
type Filter struct {
	VehicleType VehicleType
	// Cells restricts results to drivers whose stored geohash starts with
	// one of the given prefixes.
	Cells []string
	Limit int
}

// IsValid validates the vehicle type
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleTricycle, VehicleMotorcycle, VehicleVan, VehiclePrivateCar:
		return true
	}
	return false
}

func (v VehicleType) String() string {
	return string(v)
}

// IsValid validates the verification state
func (v Verification) IsValid() bool {
	switch v {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// IsValid validates a new driver profile
func (d *Driver) IsValid() error {
	if d.UserID == uuid.Nil {
		return ErrInvalidOwner
	}
	if !d.Vehicle.Type.IsValid() {
		return ErrInvalidVehicleType
	}
	if strings.TrimSpace(d.Vehicle.Plate) == "" {
		return ErrInvalidPlate
	}
	if d.Vehicle.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if !d.Verification.IsValid() {
		return ErrInvalidVerification
	}
	return nil
}

// IsVerified reports whether an admin approved the driver
func (d *Driver) IsVerified() bool {
	return d.Verification == VerificationApproved
}

// CanServe returns true if the driver can take new transport requests
func (d *Driver) CanServe() bool {
	return d.IsVerified() && d.IsAvailable
}

// SetLocation updates the driver's current location
func (d *Driver) SetLocation(c geo.Coordinate, at time.Time) {
	d.Location = &c
	d.LocationUpdatedAt = &at
	d.UpdatedAt = at
}
