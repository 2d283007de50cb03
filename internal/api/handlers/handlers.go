package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/dto"
	"github.com/gocomet/tourism-transport/internal/api/httperr"
	"github.com/gocomet/tourism-transport/internal/service/gateway"
	apperrors "github.com/gocomet/tourism-transport/pkg/errors"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/gocomet/tourism-transport/pkg/monitoring"
	"github.com/google/uuid"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handlers holds all handler dependencies
type Handlers struct {
	Gateway *gateway.Gateway
	Metrics *monitoring.Metrics
	Logger  *logger.Logger
	Checks  map[string]HealthCheck
}

// NewHandlers creates a new Handlers instance
func NewHandlers(gw *gateway.Gateway, metrics *monitoring.Metrics, log *logger.Logger, checks map[string]HealthCheck) *Handlers {
	return &Handlers{
		Gateway: gw,
		Metrics: metrics,
		Logger:  log.Named("http"),
		Checks:  checks,
	}
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{"status": "healthy", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// respondError writes the mapped error body. Unexpected errors are logged
// and hidden from the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := httperr.FromDomain(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
	}
	c.JSON(appErr.Status, dto.ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.respondError(c, apperrors.Validation(message, err))
}

// pathID parses a uuid path parameter, answering 400 when it is malformed.
func (h *Handlers) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.badRequest(c, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
