package simerrors

import (
	"fmt"
	"testing"
)

func TestClassifyWrapped(t *testing.T) {
	wrapped := fmt.Errorf("snapshot at t=42: %w", ErrOracleUnavailable)
	if got := Classify(wrapped); got != KindBackend {
		t.Fatalf("Classify() = %v, want %v", got, KindBackend)
	}
	if !Classify(wrapped).Propagates() {
		t.Fatalf("expected backend errors to propagate")
	}
}

func TestClassifyFeasibilityContained(t *testing.T) {
	err := fmt.Errorf("request 7: %w", ErrNoRouteWithinBudget)
	if got := Classify(err); got != KindFeasibility {
		t.Fatalf("Classify() = %v, want %v", got, KindFeasibility)
	}
	if Classify(err).Propagates() {
		t.Fatalf("feasibility errors must not propagate")
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := Classify(fmt.Errorf("plain")); got != KindUnknown {
		t.Fatalf("Classify() = %v, want %v", got, KindUnknown)
	}
	if got := Classify(nil); got != KindUnknown {
		t.Fatalf("Classify(nil) = %v, want %v", got, KindUnknown)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindConfig:             "config",
		KindBackend:            "backend",
		KindFeasibility:        "feasibility",
		KindStateInconsistency: "state_inconsistency",
		KindCancelled:          "cancelled",
		KindUnknown:            "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
