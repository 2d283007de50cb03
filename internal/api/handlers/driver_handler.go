package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/dto"
	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/service/gateway"
)

// ApplyAsDriver handles POST /v1/drivers
func (h *Handlers) ApplyAsDriver(c *gin.Context) {
	var req dto.ApplyDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	in := gateway.ApplyInput{VehicleType: req.VehicleType, Plate: req.Plate, Capacity: req.Capacity}
	if req.Pricing != nil {
		in.Pricing = driver.Pricing{BaseRate: req.Pricing.BaseRate, PerKm: req.Pricing.PerKm, PerMinute: req.Pricing.PerMinute}
	}

	d, err := h.Gateway.ApplyAsDriver(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GetMyDriverProfile handles GET /v1/drivers/me
func (h *Handlers) GetMyDriverProfile(c *gin.Context) {
	d, err := h.Gateway.GetDriverForUser(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListMyDriverRequests handles GET /v1/drivers/me/requests
func (h *Handlers) ListMyDriverRequests(c *gin.Context) {
	list, err := h.Gateway.ListRequestsForDriver(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SetAvailability handles PATCH /v1/drivers/me/availability
func (h *Handlers) SetAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	d, err := h.Gateway.SetDriverAvailability(c.Request.Context(), actorFrom(c), *req.Available)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateMyLocation handles POST /v1/drivers/me/location
func (h *Handlers) UpdateMyLocation(c *gin.Context) {
	var req dto.CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	d, err := h.Gateway.UpdateDriverPosition(c.Request.Context(), actorFrom(c), req.Coordinate())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"driver_id":           d.ID,
		"location":            d.Location,
		"location_updated_at": d.LocationUpdatedAt,
	})
}

// FindNearbyDrivers handles GET /v1/drivers/nearby
func (h *Handlers) FindNearbyDrivers(c *gin.Context) {
	var q dto.NearbyDriversQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "Invalid query", err)
		return
	}

	list, err := h.Gateway.FindNearbyDrivers(c.Request.Context(), gateway.NearbyQuery{
		Point:       dto.CoordinateRequest{Lat: q.Lat, Lng: q.Lng}.Coordinate(),
		RadiusKm:    q.RadiusKm,
		VehicleType: q.VehicleType,
		Limit:       q.Limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": list, "count": len(list)})
}

// VerifyDriver handles PATCH /v1/admin/drivers/:id/verification
func (h *Handlers) VerifyDriver(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.VerifyDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	d, err := h.Gateway.VerifyDriver(c.Request.Context(), actorFrom(c), id, req.Verification)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
