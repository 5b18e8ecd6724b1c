package health

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type mockChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return CheckResult{Name: m.name, Status: m.status}
}

func (m *mockChecker) Name() string {
	return m.name
}

func TestRegistry_RegisterAndList(t *testing.T) {
	registry := NewRegistry()
	if len(registry.List()) != 0 {
		t.Fatalf("new registry should be empty, got %v", registry.List())
	}

	registry.Register(&mockChecker{name: "search", status: StatusHealthy})
	registry.Register(&mockChecker{name: "cache", status: StatusHealthy})
	registry.Register(&mockChecker{name: "search", status: StatusUnhealthy})

	if got := registry.List(); !reflect.DeepEqual(got, []string{"cache", "search"}) {
		t.Fatalf("List() = %v", got)
	}

	result, err := registry.CheckOne(context.Background(), "search")
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if result.Status != StatusUnhealthy {
		t.Fatalf("re-registering must replace the checker, got %s", result.Status)
	}

	registry.Unregister("search")
	if _, err := registry.CheckOne(context.Background(), "search"); !errors.Is(err, ErrCheckNotFound) {
		t.Fatalf("expected ErrCheckNotFound, got %v", err)
	}
}

func TestRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{name: "empty", statuses: nil, want: StatusHealthy},
		{name: "all healthy", statuses: []Status{StatusHealthy, StatusHealthy}, want: StatusHealthy},
		{name: "degraded", statuses: []Status{StatusHealthy, StatusDegraded}, want: StatusDegraded},
		{name: "unhealthy wins", statuses: []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			for i, status := range tt.statuses {
				registry.Register(&mockChecker{name: string(rune('a' + i)), status: status})
			}
			result := registry.Check(context.Background())
			if result.Status != tt.want {
				t.Fatalf("status = %s, want %s", result.Status, tt.want)
			}
			if result.IsHealthy() != (tt.want == StatusHealthy) {
				t.Fatalf("IsHealthy() = %v", result.IsHealthy())
			}
			if len(result.Checks) != len(tt.statuses) {
				t.Fatalf("got %d results, want %d", len(result.Checks), len(tt.statuses))
			}
		})
	}
}

func TestRegistry_CheckRunsConcurrentlyInNameOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockChecker{name: "zeta", status: StatusHealthy, delay: 100 * time.Millisecond})
	registry.Register(&mockChecker{name: "alpha", status: StatusHealthy, delay: 100 * time.Millisecond})
	registry.Register(&mockChecker{name: "mid", status: StatusHealthy, delay: 100 * time.Millisecond})

	start := time.Now()
	result := registry.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("checks ran sequentially: %v", elapsed)
	}

	var names []string
	for _, check := range result.Checks {
		names = append(names, check.Name)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "mid", "zeta"}) {
		t.Fatalf("results not sorted: %v", names)
	}
}

func TestRegistry_RegisterFunc(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("custom", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Message: "slow"}
	})

	result, err := registry.CheckOne(context.Background(), "custom")
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if result.Name != "custom" || result.Status != StatusDegraded {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRegistry_CheckWithoutStatusIsUnhealthy(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("silent", func(context.Context) CheckResult { return CheckResult{} })

	result := registry.Check(context.Background())
	if result.Status != StatusUnhealthy || result.Checks[0].Status != StatusUnhealthy {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Checks[0].Name != "silent" || result.Checks[0].Timestamp.IsZero() {
		t.Fatalf("result not stamped: %+v", result.Checks[0])
	}
}
