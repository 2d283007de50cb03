package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/handlers"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application, gatherer prometheus.Gatherer) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}
	r.Use(h.AccessLog())

	// Health check and metrics
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		v1.POST("/fares/estimate", h.EstimateFare)

		authed := v1.Group("", h.RequireActor())

		// Transport request endpoints
		requests := authed.Group("/transport-requests")
		{
			requests.POST("", h.CreateTransportRequest)
			requests.GET("/mine", h.ListMyRequests)
			requests.GET("/:id", h.GetTransportRequest)
			requests.POST("/:id/accept", h.AcceptTransportRequest)
			requests.PATCH("/:id/status", h.UpdateTransportStatus)
			requests.POST("/:id/location", h.UpdateTransportLocation)
			requests.POST("/:id/cancel", h.CancelTransportRequest)
		}

		// Driver endpoints
		drivers := authed.Group("/drivers")
		{
			drivers.POST("", h.ApplyAsDriver)
			drivers.GET("/nearby", h.FindNearbyDrivers)
			drivers.GET("/me", h.GetMyDriverProfile)
			drivers.GET("/me/requests", h.ListMyDriverRequests)
			drivers.PATCH("/me/availability", h.SetAvailability)
			drivers.POST("/me/location", h.UpdateMyLocation)
		}

		// Admin endpoints
		admin := authed.Group("/admin", h.RequireAdmin())
		{
			admin.PATCH("/drivers/:id/verification", h.VerifyDriver)
		}
	}
}
