package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/auspex/agent"
	"github.com/use-agent/auspex/api/handler"
	"github.com/use-agent/auspex/api/middleware"
	"github.com/use-agent/auspex/browserpool"
	"github.com/use-agent/auspex/cache"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(ag *agent.Agent, cascade *scraper.Cascade, pool *browserpool.Pool, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(pool, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scrape — direct cascade fetch, no LLM.
	protected.POST("/scrape", handler.Scrape(cascade, cc))

	// Tasks — async agent runs.
	protected.POST("/tasks", handler.PostTask(ag))
	protected.GET("/tasks/:id", handler.GetTask())

	return r
}
