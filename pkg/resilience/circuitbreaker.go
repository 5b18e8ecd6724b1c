package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nimburion/searchrepo/pkg/config"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a limited number of probe requests through
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a call.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Config configures a CircuitBreaker.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenMaxCalls bounds concurrent probe calls while half-open.
	HalfOpenMaxCalls int
	// IsFailure decides which errors count against the circuit. Defaults to every
	// error except context cancellation.
	IsFailure func(error) bool
}

// ConfigFrom maps the resilience section onto a breaker Config.
func ConfigFrom(cfg config.ResilienceConfig) Config {
	return Config{
		MaxFailures:      cfg.MaxFailures,
		ResetTimeout:     cfg.ResetTimeout,
		HalfOpenMaxCalls: cfg.HalfOpenMaxCalls,
	}
}

// CircuitBreaker stops calling a failing dependency until it had time to recover.
type CircuitBreaker struct {
	maxFailures  int
	timeout      time.Duration
	halfOpenMax  int
	isFailure    func(error) bool
	now          func() time.Time
	state        State
	failures     int
	inFlight     int
	lastFailTime time.Time
	mu           sync.Mutex
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	return &CircuitBreaker{
		maxFailures: cfg.MaxFailures,
		timeout:     cfg.ResetTimeout,
		halfOpenMax: cfg.HalfOpenMaxCalls,
		isFailure:   cfg.IsFailure,
		now:         time.Now,
		state:       StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute runs fn if the circuit allows it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	return cb.ExecuteContext(context.Background(), func(context.Context) error { return fn() })
}

// ExecuteContext runs fn if the circuit allows it. A context that is already done is
// rejected without touching the circuit.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, ok := cb.acquire()
	if !ok {
		return ErrCircuitBreakerOpen
	}

	err := fn(ctx)
	cb.record(probe, err)
	return err
}

func (cb *CircuitBreaker) acquire() (probe bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.timeout {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.inFlight = 0
	}
	if cb.inFlight >= cb.halfOpenMax {
		return false, false
	}
	cb.inFlight++
	return true, true
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.inFlight > 0 {
		cb.inFlight--
	}
	failed := err != nil && cb.isFailure(err)

	switch {
	case failed && (probe || cb.state == StateHalfOpen):
		cb.trip()
	case failed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.trip()
		}
	case err != nil:
		// Ignored errors neither count nor close a half-open circuit.
	case cb.state == StateHalfOpen || cb.state == StateClosed:
		cb.state = StateClosed
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.failures = 0
	cb.inFlight = 0
	cb.lastFailTime = cb.now()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the consecutive failure count while closed
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit and clears the counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.inFlight = 0
}
