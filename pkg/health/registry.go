// Package health aggregates the health of the search cluster, the result cache and the
// circuit breaker guarding them.
package health

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Status of a single check or of the aggregate. Unhealthy outranks degraded, which
// outranks healthy.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ErrCheckNotFound is returned by CheckOne for an unknown name.
var ErrCheckNotFound = errors.New("health check not found")

// CheckResult is the outcome of one check. The registry fills Name, Timestamp and
// Duration when the checker leaves them empty.
type CheckResult struct {
	Name      string                 `json:"name" yaml:"name"`
	Status    Status                 `json:"status" yaml:"status"`
	Message   string                 `json:"message,omitempty" yaml:"message,omitempty"`
	Error     string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration          `json:"duration" yaml:"duration"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Checker is a named health check.
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// CheckFunc adapts a function to Checker via Registry.RegisterFunc.
type CheckFunc func(ctx context.Context) CheckResult

// AggregatedResult holds every check, ordered by name, and the worst status among them.
type AggregatedResult struct {
	Status    Status        `json:"status" yaml:"status"`
	Checks    []CheckResult `json:"checks" yaml:"checks"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// IsHealthy reports whether every check is healthy.
func (r AggregatedResult) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Registry runs a set of named checks. Registering a name again replaces its checker.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	r.checkers[checker.Name()] = checker
	r.mu.Unlock()
}

func (r *Registry) RegisterFunc(name string, fn CheckFunc) {
	r.Register(funcChecker{name: name, fn: fn})
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.checkers, name)
	r.mu.Unlock()
}

// List returns the registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.checkers))
}

// Check runs every check concurrently.
func (r *Registry) Check(ctx context.Context) AggregatedResult {
	names := r.List()
	start := time.Now()
	results := make([]CheckResult, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		r.mu.RLock()
		checker, ok := r.checkers[name]
		r.mu.RUnlock()
		if !ok {
			results[i] = CheckResult{Name: name, Status: StatusUnhealthy, Error: ErrCheckNotFound.Error(), Timestamp: start}
			continue
		}
		wg.Go(func() { results[i] = run(ctx, checker) })
	}
	wg.Wait()

	overall := StatusHealthy
	for _, result := range results {
		if result.Status.rank() > overall.rank() {
			overall = result.Status
		}
	}
	return AggregatedResult{
		Status:    overall,
		Checks:    results,
		Timestamp: start,
		Duration:  time.Since(start),
	}
}

// CheckOne runs the check registered as name.
func (r *Registry) CheckOne(ctx context.Context, name string) (CheckResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return CheckResult{}, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}
	return run(ctx, checker), nil
}

func run(ctx context.Context, checker Checker) CheckResult {
	start := time.Now()
	result := checker.Check(ctx)
	if result.Name == "" {
		result.Name = checker.Name()
	}
	if result.Status == "" {
		result.Status = StatusUnhealthy
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

type funcChecker struct {
	name string
	fn   CheckFunc
}

func (c funcChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
func (c funcChecker) Name() string                          { return c.name }
