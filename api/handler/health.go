package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/auspex/browserpool"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	PoolStats browserpool.Stats `json:"poolStats"`
	Version   string            `json:"version"`
}

// Health returns a handler for GET /api/v1/health.
//
// Reports pool occupancy and degrades status when > 80% of browsers are live.
func Health(pool *browserpool.Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats browserpool.Stats
		if pool != nil {
			stats = pool.Stats()
		}

		status := "healthy"
		if stats.Size > 0 && stats.Live > int(float64(stats.Size)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
