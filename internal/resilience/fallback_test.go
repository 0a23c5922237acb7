package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("a", "primary", FallbackConfig{})
	fg.AddFallback("backup", "b")

	var used []string
	if err := fg.Execute(func(v string) error { used = append(used, v); return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(used) != 1 || used[0] != "a" {
		t.Errorf("Execute: used %v, want [a]", used)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("a", "primary", FallbackConfig{})
	fg.AddFallback("backup", "b")

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "a" {
			return "", errTest
		}
		return "from " + v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "from b" {
		t.Errorf("ExecuteWithResult: got %q, want %q", got, "from b")
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(1, "one", FallbackConfig{})
	fg.AddFallback("two", 2)

	err := fg.Execute(func(int) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("Execute: got %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Errorf("Execute: got %v, want it to wrap errTest", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	fg := NewFallbackGroup("a", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, Now: clk.Now},
	})
	fg.AddFallback("backup", "b")

	calls := map[string]int{}
	call := func(v string) error {
		calls[v]++
		if v == "a" {
			return errTest
		}
		return nil
	}
	_ = fg.Execute(call)
	_ = fg.Execute(call)

	if calls["a"] != 1 {
		t.Errorf("primary calls: got %d, want 1", calls["a"])
	}
	if calls["b"] != 2 {
		t.Errorf("backup calls: got %d, want 2", calls["b"])
	}
	if st := fg.States()["primary"]; st != StateOpen {
		t.Errorf("States[primary]: got %v, want open", st)
	}
	if !fg.Available() {
		t.Error("Available: got false with a closed backup")
	}
	if names := fg.Names(); len(names) != 2 || names[0] != "primary" {
		t.Errorf("Names: got %v", names)
	}
}

func TestFallbackGroup_Available(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("a", "only", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	_ = fg.Execute(func(string) error { return errTest })
	if fg.Available() {
		t.Error("Available: got true with every breaker open")
	}
}
