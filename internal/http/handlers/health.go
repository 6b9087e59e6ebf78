package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler reports liveness always and readiness when db answers a ping.
// A nil db makes readiness equal to liveness.
func NewHealthHandler(db *gorm.DB) *HealthHandler { return &HealthHandler{db: db} }

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
				"message": "database unavailable",
				"code":    "db_unavailable",
			}})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
