package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/basket-service/internal/database"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string              `json:"status"`
	Database string              `json:"database"`
	Catalog  string              `json:"catalog"`
	Pool     *database.PoolStats `json:"pool,omitempty"`
}

// HealthCheck handles the health check endpoint
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}
	status := http.StatusOK

	// Check database connection
	if database.Pool() != nil {
		if err := database.Status(c.Request.Context()); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "connected"
			response.Pool = database.Stats()
		}
	} else {
		response.Database = "not configured"
	}

	// A stale snapshot is still served, so only a missing one is unhealthy.
	switch {
	case basketService == nil:
		response.Catalog = "not configured"
	case basketService.cache.Health().Ready:
		response.Catalog = "ready"
	default:
		response.Catalog = "loading"
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, response)
}
