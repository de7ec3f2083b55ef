package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wcag-monitor/internal/api/response"
	"gorm.io/gorm"
)

const (
	serviceName    = "wcag-monitor"
	serviceVersion = "1.0.0"
	pingTimeout    = 2 * time.Second
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	Now   func() time.Time
}

// NewHealthHandler checks db and, when not nil, redis.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, Now: time.Now}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	services := gin.H{"api": "ok", "database": "ok"}
	healthy := true

	if err := h.pingDB(ctx); err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
		services["database"] = "unavailable"
		healthy = false
	}
	if h.redis != nil {
		services["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			c.Error(err).SetType(gin.ErrorTypePrivate)
			services["redis"] = "unavailable"
			healthy = false
		}
	}

	data := gin.H{"timestamp": h.Now().UTC(), "services": services}
	if !healthy {
		data["status"] = "unhealthy"
		response.Unavailable(c, "service unhealthy", data)
		return
	}
	data["status"] = "healthy"
	response.Ok(c, data)
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Info describes the service and its API entry points.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": gin.H{
			"health": "/health",
			"auth":   "/api/v1/auth",
			"tasks":  "/api/v1/tasks",
		},
	})
}
