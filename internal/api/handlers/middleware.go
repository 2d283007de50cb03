package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/dto"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	apperrors "github.com/gocomet/tourism-transport/pkg/errors"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/google/uuid"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	actorKey = "actor"
)

// RequireActor reads the caller identity set by the upstream auth layer.
// A missing role defaults to rider.
func (h *Handlers) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(strings.TrimSpace(c.GetHeader(HeaderUserID)))
		if err != nil || userID == uuid.Nil {
			h.abort(c, apperrors.Unauthorized("missing or invalid "+HeaderUserID, err))
			return
		}

		role := transport.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		switch role {
		case "":
			role = transport.RoleRider
		case transport.RoleRider, transport.RoleDriver, transport.RoleAdmin:
		default:
			h.abort(c, apperrors.Unauthorized("invalid "+HeaderUserRole, nil))
			return
		}

		c.Set(actorKey, transport.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role.
func (h *Handlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Role.Privileged() {
			h.abort(c, apperrors.Forbidden("admin role required", nil))
			return
		}
		c.Next()
	}
}

// AccessLog logs and counts every request once it completes.
func (h *Handlers) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		h.Metrics.HTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)
		h.Logger.Info("HTTP request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Duration("latency", elapsed),
		)
	}
}

func (h *Handlers) abort(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.Status, dto.ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

func actorFrom(c *gin.Context) transport.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(transport.Actor); ok {
			return a
		}
	}
	return transport.Actor{}
}
