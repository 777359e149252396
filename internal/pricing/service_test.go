package pricing

import (
	"testing"
	"time"
)

func TestBillableSeconds(t *testing.T) {
	// 60s increment, 0 min
	if got := billableSeconds(1, 0, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := billableSeconds(60, 0, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := billableSeconds(61, 0, 60); got != 120 {
		t.Fatalf("expected 120, got %d", got)
	}

	// min billable seconds
	if got := billableSeconds(5, 30, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
}

func TestBillableMinutesFromSeconds(t *testing.T) {
	if got := billableMinutesFromSeconds(1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(60); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(61); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestTable_Estimate(t *testing.T) {
	tbl := NewTable(nil)

	e, err := tbl.Estimate("telnyx", 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if e.BillableMinutes != 5 {
		t.Fatalf("expected 5 billable minutes, got %d", e.BillableMinutes)
	}
	if e.Cost != 0.03 {
		t.Fatalf("expected 0.03, got %v", e.Cost)
	}

	if _, err := tbl.Estimate("nope", time.Minute); err != ErrUnknownProvider {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := tbl.Estimate("twilio", -time.Second); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestTable_EstimateAllSortedAscending(t *testing.T) {
	tbl := NewTable(nil)
	got := tbl.EstimateAll([]string{"twilio", "plivo", "telnyx", "unknown"}, time.Minute)
	if len(got) != 3 {
		t.Fatalf("expected 3 estimates, got %d", len(got))
	}
	if got[0].Provider != "telnyx" || got[1].Provider != "plivo" || got[2].Provider != "twilio" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestTable_CheapestAndOverrides(t *testing.T) {
	tbl := NewTable(map[string]float64{"twilio": 0.001})
	p, ok := tbl.Cheapest([]string{"twilio", "telnyx"})
	if !ok || p != "twilio" {
		t.Fatalf("expected overridden twilio to be cheapest, got %q", p)
	}
	if _, ok := tbl.Cheapest(nil); ok {
		t.Fatalf("expected no cheapest provider for empty set")
	}
}
