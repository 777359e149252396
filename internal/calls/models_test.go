package calls

import "testing"

func TestStatusValuesAreNonEmpty(t *testing.T) {
	statuses := []Status{
		StatusQueued,
		StatusRinging,
		StatusInProgress,
		StatusCompleted,
		StatusBusy,
		StatusNoAnswer,
		StatusFailed,
		StatusCanceled,
	}
	for _, s := range statuses {
		if s == "" {
			t.Fatalf("expected non-empty status")
		}
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if StatusRinging.Terminal() || StatusInProgress.Terminal() || StatusQueued.Terminal() {
		t.Fatalf("live statuses must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusNoAnswer.Terminal() || !StatusCanceled.Terminal() {
		t.Fatalf("expected terminal")
	}
}

func TestAdvance_NeverUncompletes(t *testing.T) {
	if got := Advance(StatusCompleted, StatusRinging); got != StatusCompleted {
		t.Fatalf("expected completed to stick, got %q", got)
	}
	if got := Advance(StatusRinging, StatusInProgress); got != StatusInProgress {
		t.Fatalf("expected in-progress, got %q", got)
	}
	if got := Advance(StatusRinging, Status("weird")); got != StatusFailed {
		t.Fatalf("expected failed for unknown status, got %q", got)
	}
}
