package router

import (
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers liveness and readiness endpoints
func (r *Router) setupHealthRoutes() {
	liveness := func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		components := gin.H{
			"realtime": gin.H{
				"status":             "ok",
				"active_connections": r.Container.Hub.ActiveConnections(),
			},
		}
		if r.Container.Breaker != nil {
			components["database_breaker"] = r.Container.Breaker.Stats()
		}

		c.JSON(200, gin.H{
			"status":     "ok",
			"version":    os.Getenv("APP_VERSION"),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"components": components,
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	}

	r.Engine.GET("/health", liveness)
	r.Engine.GET("/api/health", liveness)
	r.Engine.GET("/health/ready", r.Container.Health.ReadyHandler())
}
