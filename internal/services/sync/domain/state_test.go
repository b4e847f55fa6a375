package domain

import "testing"

func TestState_HappyPathAdvances(t *testing.T) {
	order := []State{
		StateIdle,
		StateFetchingProducts,
		StateFetchingOrders,
		StateAggregating,
		StatePredicting,
		StatePersisting,
		StateDone,
	}
	s := StateIdle
	for _, want := range order[1:] {
		next, err := s.Advance(want)
		if err != nil {
			t.Fatalf("advance %s -> %s: %v", s, want, err)
		}
		s = next
	}
	if s != StateDone {
		t.Fatalf("expected done, got %s", s)
	}
}

func TestState_SkippingStepsIsIllegal(t *testing.T) {
	if _, err := StateFetchingProducts.Advance(StateAggregating); err == nil {
		t.Fatal("expected error when skipping fetching_orders")
	}
	if _, err := StateIdle.Advance(StateDone); err == nil {
		t.Fatal("expected error when jumping straight to done")
	}
}

func TestState_FailedReachableFromAnyNonTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateFetchingProducts, StateFetchingOrders, StateAggregating, StatePredicting, StatePersisting} {
		got, err := s.Advance(StateFailed)
		if err != nil || got != StateFailed {
			t.Fatalf("%s -> failed: got %s err %v", s, got, err)
		}
	}
}

func TestState_TerminalStatesReject(t *testing.T) {
	for _, s := range []State{StateDone, StateFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if _, err := s.Advance(StateFailed); err == nil {
			t.Fatalf("%s should reject transitions", s)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateFetchingOrders.String() != "fetching_orders" || State(99).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
