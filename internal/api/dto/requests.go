package dto

import (
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/google/uuid"
)

// CoordinateRequest is a point given by a client. Pointers tell a missing
// value apart from the equator or the prime meridian.
type CoordinateRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// PlaceRequest is a coordinate with an optional address
type PlaceRequest struct {
	CoordinateRequest
	Address string `json:"address"`
}

// FareEstimateRequest asks for a fare by distance or by coordinates
type FareEstimateRequest struct {
	VehicleType string             `json:"vehicle_type"`
	DistanceKm  *float64           `json:"distance_km"`
	Pickup      *CoordinateRequest `json:"pickup"`
	Destination *CoordinateRequest `json:"destination"`
}

// CreateTransportRequest represents a rider asking for a ride
type CreateTransportRequest struct {
	BookingID   *uuid.UUID    `json:"booking_id"`
	VehicleType string        `json:"vehicle_type"`
	Pickup      *PlaceRequest `json:"pickup" binding:"required"`
	Destination *PlaceRequest `json:"destination" binding:"required"`
	Passengers  *int          `json:"passengers"`
}

// UpdateStatusRequest moves a request one lifecycle step
type UpdateStatusRequest struct {
	Status    string   `json:"status" binding:"required"`
	FinalFare *float64 `json:"final_fare"`
	Reason    string   `json:"reason"`
}

// CancelRequest represents a cancellation
type CancelRequest struct {
	Reason string `json:"reason"`
}

// AvailabilityRequest toggles whether a driver takes new requests
type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// ApplyDriverRequest represents a driver application
type ApplyDriverRequest struct {
	VehicleType string              `json:"vehicle_type" binding:"required"`
	Plate       string              `json:"plate" binding:"required"`
	Capacity    int                 `json:"capacity" binding:"required,min=1"`
	Pricing     *DriverPricingInput `json:"pricing"`
}

// DriverPricingInput is a driver's advertised rate card
type DriverPricingInput struct {
	BaseRate  float64 `json:"base_rate" binding:"min=0"`
	PerKm     float64 `json:"per_km" binding:"min=0"`
	PerMinute float64 `json:"per_minute" binding:"min=0"`
}

// VerifyDriverRequest records an admin review
type VerifyDriverRequest struct {
	Verification string `json:"verification" binding:"required"`
}

// NearbyDriversQuery is the query string of GET /v1/drivers/nearby
type NearbyDriversQuery struct {
	Lat         *float64 `form:"lat" binding:"required"`
	Lng         *float64 `form:"lng" binding:"required"`
	RadiusKm    float64  `form:"radius_km" binding:"min=0"`
	VehicleType string   `form:"vehicle_type"`
	Limit       int      `form:"limit" binding:"min=0,max=100"`
}

// Coordinate converts a bound request into a domain coordinate.
func (c CoordinateRequest) Coordinate() geo.Coordinate {
	var out geo.Coordinate
	if c.Lat != nil {
		out.Lat = *c.Lat
	}
	if c.Lng != nil {
		out.Lng = *c.Lng
	}
	return out
}

// Place converts a bound request into a domain place.
func (p *PlaceRequest) Place() transport.Place {
	if p == nil {
		return transport.Place{}
	}
	return transport.Place{Coordinate: p.Coordinate(), Address: p.Address}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
