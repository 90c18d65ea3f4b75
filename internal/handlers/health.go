package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"invoria/pkg/response"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health responds with liveness and database reachability.
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(requestContext(c))
		}
		if err != nil {
			status = "degraded"
			dbStatus = "unreachable"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	response.JSON(c, code, gin.H{
		"status":   status,
		"database": dbStatus,
	})
}
