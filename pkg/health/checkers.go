package health

import (
	"context"
	"time"

	"github.com/nimburion/searchrepo/pkg/resilience"
)

const (
	searchCheckTimeout = 5 * time.Second
	cacheCheckTimeout  = 3 * time.Second
)

// Checkable is anything with a HealthCheck, such as store.Client or cache.Store.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker calls HealthCheck on a component with its own deadline.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker wraps adapter. A non-positive timeout falls back to the search timeout.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = searchCheckTimeout
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout}
}

func NewSearchChecker(name string, client Checkable) *AdapterChecker {
	return NewAdapterChecker(name, client, searchCheckTimeout)
}

func NewCacheChecker(name string, cache Checkable) *AdapterChecker {
	return NewAdapterChecker(name, cache, cacheCheckTimeout)
}

func (c *AdapterChecker) Name() string { return c.name }

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.adapter.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "OK"}
}

// BreakerChecker maps circuit breaker state to health: closed is healthy, half-open is
// degraded and open is unhealthy.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	state := c.breaker.GetState()
	result := CheckResult{
		Metadata: map[string]interface{}{
			"state":    state.String(),
			"failures": c.breaker.GetFailures(),
		},
	}
	switch state {
	case resilience.StateOpen:
		result.Status = StatusUnhealthy
		result.Error = resilience.ErrCircuitBreakerOpen.Error()
	case resilience.StateHalfOpen:
		result.Status = StatusDegraded
		result.Message = "probing"
	default:
		result.Status = StatusHealthy
		result.Message = "OK"
	}
	return result
}
