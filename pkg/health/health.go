package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

const checkTimeout = 3 * time.Second

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registered struct {
	check    Check
	critical bool
}

// Checker manages health checks for the system
type Checker struct {
	checks      map[string]registered
	components  map[string]*Component
	checkPeriod time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
	grpc        *grpchealth.Server
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	if log == nil {
		log = logger.GetGlobal()
	}
	checker := &Checker{
		checks:      make(map[string]registered),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		log:         log,
	}

	checker.RegisterCheck("self", false, func(context.Context) (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registered{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// RegisterDatabaseCheck registers the critical database check
func (c *Checker) RegisterDatabaseCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("database", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Database connection failed", err
		}
		return StatusUp, "Database connection is established", nil
	})
}

// RegisterRedisCheck registers the redis check. Redis only backs the shared
// rate limit store, so an outage degrades rather than fails the service.
func (c *Checker) RegisterRedisCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("redis", false, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDegraded, "Redis is unreachable", err
		}
		return StatusUp, "Redis connection is established", nil
	})
}

// BindGRPC mirrors the overall health into a gRPC health service after every run
func (c *Checker) BindGRPC(server *grpchealth.Server) {
	c.mutex.Lock()
	c.grpc = server
	c.mutex.Unlock()
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mutex.RUnlock()

	results := make(map[string]Component, len(checks))
	for name, r := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		status, description, err := r.check(checkCtx)
		cancel()

		comp := Component{
			Name:        name,
			Status:      status,
			Critical:    r.critical,
			Description: description,
			LastChecked: time.Now(),
		}
		if err != nil {
			comp.Error = err.Error()
			c.log.Error("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			c.log.Debug("Health check completed",
				"component", name,
				"status", string(status),
			)
		}
		results[name] = comp
	}

	c.mutex.Lock()
	for name, comp := range results {
		comp := comp
		c.components[name] = &comp
	}
	server := c.grpc
	c.mutex.Unlock()

	if server != nil {
		serving := healthpb.HealthCheckResponse_SERVING
		if !c.IsSystemHealthy() {
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", serving)
	}
}

// Start runs checks immediately and then periodically until ctx is done
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns a copy of the current component states
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// IsSystemHealthy returns true if no critical component is down
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, component := range c.components {
		if component.Critical && component.Status == StatusDown {
			return false
		}
	}
	return true
}

// ReadyHandler reports component states, answering 503 when a critical component is down
func (c *Checker) ReadyHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		code := http.StatusOK
		status := "ok"
		if !c.IsSystemHealthy() {
			code = http.StatusServiceUnavailable
			status = "unavailable"
		}
		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now().UTC(),
			"components": c.GetStatus(),
		})
	}
}
