package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/dto"
	"github.com/gocomet/tourism-transport/internal/service/gateway"
)

// EstimateFare handles POST /v1/fares/estimate
func (h *Handlers) EstimateFare(c *gin.Context) {
	var req dto.FareEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	q := gateway.FareQuery{VehicleType: req.VehicleType, DistanceKm: req.DistanceKm}
	if req.Pickup != nil && req.Destination != nil {
		pickup, destination := req.Pickup.Coordinate(), req.Destination.Coordinate()
		q.Pickup, q.Destination = &pickup, &destination
	}

	est, err := h.Gateway.EstimateFare(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// CreateTransportRequest handles POST /v1/transport-requests
func (h *Handlers) CreateTransportRequest(c *gin.Context) {
	var req dto.CreateTransportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	r, err := h.Gateway.CreateTransportRequest(c.Request.Context(), actorFrom(c), gateway.CreateRequestInput{
		BookingID:   req.BookingID,
		VehicleType: req.VehicleType,
		Pickup:      req.Pickup.Place(),
		Destination: req.Destination.Place(),
		Passengers:  req.Passengers,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListMyRequests handles GET /v1/transport-requests/mine
func (h *Handlers) ListMyRequests(c *gin.Context) {
	list, err := h.Gateway.ListRequestsForRider(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

// GetTransportRequest handles GET /v1/transport-requests/:id
func (h *Handlers) GetTransportRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	r, err := h.Gateway.GetRequest(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// AcceptTransportRequest handles POST /v1/transport-requests/:id/accept
func (h *Handlers) AcceptTransportRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	r, err := h.Gateway.AcceptRequest(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateTransportStatus handles PATCH /v1/transport-requests/:id/status
func (h *Handlers) UpdateTransportStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	r, err := h.Gateway.AdvanceRequestStatus(c.Request.Context(), actorFrom(c), id, gateway.AdvanceInput{
		Status:    req.Status,
		FinalFare: req.FinalFare,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateTransportLocation handles POST /v1/transport-requests/:id/location
func (h *Handlers) UpdateTransportLocation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	r, err := h.Gateway.UpdateDriverLocation(c.Request.Context(), actorFrom(c), id, req.Coordinate())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                 r.ID,
		"status":             r.Status,
		"driver_location":    r.DriverLocation,
		"driver_location_at": r.DriverLocationAt,
		"eta_minutes":        r.ETAMinutes,
	})
}

// CancelTransportRequest handles POST /v1/transport-requests/:id/cancel
func (h *Handlers) CancelTransportRequest(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelRequest
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid request payload", err)
			return
		}
	}

	r, err := h.Gateway.CancelRequest(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
