package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"conversation-analytics/backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker is short-circuiting calls
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means the circuit is closed and requests are allowed to pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means the circuit is open and requests are being short-circuited
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means the circuit is allowing a limited number of test requests
	StateHalfOpen CircuitBreakerState = "half-open"
)

// FailurePredicate decides whether an error counts against the breaker.
// Constraint and validation errors from a healthy store should not trip it.
type FailurePredicate func(error) bool

// CircuitBreaker implements the Circuit Breaker pattern
type CircuitBreaker struct {
	name             string
	state            CircuitBreakerState
	failureThreshold uint
	successThreshold uint
	retryTimeout     time.Duration
	isFailure        FailurePredicate
	mutex            sync.RWMutex
	failureCount     uint
	successCount     uint
	lastFailureTime  time.Time
	nextAttemptTime  time.Time
	now              func() time.Time
	log              *logger.Logger

	stats Stats
}

// Stats is a point-in-time view of breaker counters
type Stats struct {
	Name              string              `json:"name"`
	State             CircuitBreakerState `json:"state"`
	TotalRequests     uint64              `json:"total_requests"`
	TotalFailures     uint64              `json:"total_failures"`
	TotalSuccesses    uint64              `json:"total_successes"`
	TotalRejected     uint64              `json:"total_rejected"`
	ConsecutiveErrors uint64              `json:"consecutive_errors"`
	OpenCircuitCount  uint64              `json:"open_circuit_count"`
	LastFailureTime   time.Time           `json:"last_failure_time"`
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
	IsFailure        FailurePredicate
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     15 * time.Second,
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	isFailure := config.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CircuitBreaker{
		name:             config.Name,
		state:            StateClosed,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		retryTimeout:     config.RetryTimeout,
		isFailure:        isFailure,
		now:              time.Now,
		log:              log,
	}
}

// Execute runs fn through the circuit breaker. A cancelled caller context is
// reported as-is and is not held against the downstream.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allowRequest() {
		cb.mutex.Lock()
		cb.stats.TotalRejected++
		cb.mutex.Unlock()
		cb.log.Warn("Circuit breaker preventing request", "name", cb.name, "state", string(cb.GetState()))
		return ErrCircuitOpen
	}

	cb.mutex.Lock()
	cb.stats.TotalRequests++
	cb.mutex.Unlock()

	err := fn(ctx)

	switch {
	case err == nil:
		cb.recordSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// caller gave up
	case cb.isFailure(err):
		cb.recordFailure()
		cb.log.Warn("Circuit breaker recorded failure", "name", cb.name, "error", err.Error())
	default:
		// the store answered, so it is reachable
		cb.recordSuccess()
	}
	return err
}

// allowRequest checks if a request should be allowed to proceed
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().After(cb.nextAttemptTime) {
			cb.toHalfOpen()
			return true
		}
		return false
	case StateHalfOpen:
		return cb.successCount < cb.successThreshold
	}
	return false
}

// recordSuccess records a successful request
func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalSuccesses++
	cb.stats.ConsecutiveErrors = 0

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.toClosed()
		}
	}
}

// recordFailure records a failed request
func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalFailures++
	cb.stats.ConsecutiveErrors++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.stats.OpenCircuitCount++
	cb.nextAttemptTime = cb.now().Add(cb.retryTimeout)

	cb.log.Info("Circuit breaker opened",
		"name", cb.name,
		"failures", cb.failureCount,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0

	cb.log.Info("Circuit breaker closed", "name", cb.name)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	return cb.state
}

// Stats returns the current counters of the circuit breaker
func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	s := cb.stats
	s.Name = cb.name
	s.State = cb.state
	s.LastFailureTime = cb.lastFailureTime
	return s
}
