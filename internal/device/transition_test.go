package device

import "testing"

func TestBegin(t *testing.T) {
	for _, op := range []Op{OpAttach, OpDetach} {
		if got := Begin(op); got != StateTransitioning {
			t.Errorf("Begin(%q) = %q, want transitioning", op, got)
		}
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		op      Op
		outcome Outcome
		want    State
	}{
		{OpAttach, OutcomeSuccess, StateAttached},
		{OpAttach, OutcomeFailure, StateError},
		{OpDetach, OutcomeSuccess, StateDetached},
		{OpDetach, OutcomeFailure, StateError},
	}

	for _, tt := range tests {
		if got := Next(tt.op, tt.outcome); got != tt.want {
			t.Errorf("Next(%q, %q) = %q, want %q", tt.op, tt.outcome, got, tt.want)
		}
	}
}

func TestNext_UnknownFailsSecure(t *testing.T) {
	if got := Next(Op("eject"), OutcomeSuccess); got != StateError {
		t.Errorf("Next(unknown op) = %q, want error", got)
	}
	if got := Next(OpAttach, Outcome("maybe")); got != StateError {
		t.Errorf("Next(unknown outcome) = %q, want error", got)
	}
}
