package nav

import (
	"errors"
	"testing"
)

func TestScheduleLastWins(t *testing.T) {
	var got []Route
	p := NewPending(Func(func(r Route) error {
		got = append(got, r)
		return nil
	}), nil)

	p.Schedule(RouteDashboard)
	p.Schedule(RouteAuth) // sobrescribe

	r, ok := p.Peek()
	if !ok || r != RouteAuth {
		t.Fatalf("Peek = %q, %v", r, ok)
	}

	r, ok = p.Reconcile()
	if !ok || r != RouteAuth {
		t.Fatalf("Reconcile = %q, %v", r, ok)
	}
	if len(got) != 1 || got[0] != RouteAuth {
		t.Fatalf("navigated = %v, want only the last target", got)
	}
}

func TestReconcileConsumes(t *testing.T) {
	p := NewPending(Func(func(Route) error { return nil }), nil)
	p.Schedule(RouteLearnerHome)

	if _, ok := p.Reconcile(); !ok {
		t.Fatal("first reconcile should consume the target")
	}
	if _, ok := p.Reconcile(); ok {
		t.Fatal("second reconcile should find nothing")
	}
	if _, ok := p.Peek(); ok {
		t.Fatal("Peek after consume should find nothing")
	}
}

func TestReconcileEmpty(t *testing.T) {
	p := NewPending(Func(func(Route) error { return nil }), nil)
	if r, ok := p.Reconcile(); ok || r != "" {
		t.Fatalf("Reconcile empty = %q, %v", r, ok)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	var fellBack []Route
	p := NewPending(
		Func(func(Route) error { return errors.New("router detached") }),
		Func(func(r Route) error {
			fellBack = append(fellBack, r)
			return nil
		}),
	)

	p.Schedule(RouteLearners)
	r, ok := p.Reconcile()
	if !ok || r != RouteLearners {
		t.Fatalf("Reconcile = %q, %v", r, ok)
	}
	if len(fellBack) != 1 || fellBack[0] != RouteLearners {
		t.Fatalf("fallback = %v", fellBack)
	}
}

func TestFallbackNotUsedOnSuccess(t *testing.T) {
	var fellBack int
	p := NewPending(
		Func(func(Route) error { return nil }),
		Func(func(Route) error { fellBack++; return nil }),
	)
	p.Schedule(RouteDashboard)
	p.Reconcile()
	if fellBack != 0 {
		t.Fatalf("fallback fired %d times on success", fellBack)
	}
}
