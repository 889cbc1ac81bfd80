// Package resilience guards calls to flaky dependencies with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	CircuitBreakerClosed   CircuitBreakerState = "closed"
	CircuitBreakerHalfOpen CircuitBreakerState = "half_open"
	CircuitBreakerOpen     CircuitBreakerState = "open"
)

func (s CircuitBreakerState) gauge() float64 {
	switch s {
	case CircuitBreakerHalfOpen:
		return 1
	case CircuitBreakerOpen:
		return 2
	}
	return 0
}

// Config tunes a CircuitBreaker
type Config struct {
	// MaxFailures consecutive failures open the circuit
	MaxFailures int
	// Timeout bounds one operation
	Timeout time.Duration
	// ResetTimeout is how long the circuit stays open before a trial call
	ResetTimeout time.Duration
}

// DefaultConfig returns the breaker settings used for object storage
func DefaultConfig() Config {
	return Config{
		MaxFailures:  5,
		Timeout:      10 * time.Second,
		ResetTimeout: 30 * time.Second,
	}
}

// CircuitBreaker fails fast after repeated errors and lets a single trial
// call through once ResetTimeout has passed.
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	mu                  sync.Mutex
	state               CircuitBreakerState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultConfig().MaxFailures
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitBreakerClosed,
	}
}

// Execute runs fn unless the circuit is open. fn gets a context bounded by
// the configured timeout.
func (b *CircuitBreaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if !b.allow() {
		metrics.StorageRequestsTotal.WithLabelValues(operation, "circuit_open").Inc()
		return ErrCircuitOpen
	}

	opCtx := ctx
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	err := fn(opCtx)
	b.record(operation, err)
	return err
}

// State returns the current state
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(CircuitBreakerClosed)
	b.consecutiveFailures = 0
	b.trialInFlight = false
}

func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitBreakerOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return false
		}
		b.setState(CircuitBreakerHalfOpen)
		b.trialInFlight = true
		return true
	case CircuitBreakerHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return true
}

func (b *CircuitBreaker) record(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
	if err == nil {
		metrics.StorageRequestsTotal.WithLabelValues(operation, "success").Inc()
		if b.state != CircuitBreakerClosed {
			logger.Info("Circuit breaker closed",
				zap.String("breaker", b.name),
				zap.String("operation", operation))
		}
		b.consecutiveFailures = 0
		b.setState(CircuitBreakerClosed)
		return
	}

	metrics.StorageRequestsTotal.WithLabelValues(operation, classifyError(err)).Inc()
	b.consecutiveFailures++

	if b.state == CircuitBreakerHalfOpen || b.consecutiveFailures >= b.config.MaxFailures {
		if b.state != CircuitBreakerOpen {
			logger.Error("Circuit breaker opened",
				zap.String("breaker", b.name),
				zap.String("operation", operation),
				zap.Int("consecutive_failures", b.consecutiveFailures),
				zap.Error(err))
		}
		b.openedAt = b.now()
		b.setState(CircuitBreakerOpen)
	}
}

func (b *CircuitBreaker) setState(s CircuitBreakerState) {
	b.state = s
	metrics.StorageCircuitState.Set(s.gauge())
}

// classifyError classifies errors for better metrics
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "network unreachable"):
		return "network"
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "dns"):
		return "dns"
	case strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "does not exist"):
		return "not_found"
	case strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "access denied"):
		return "permission"
	default:
		return "unknown"
	}
}
