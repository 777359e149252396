package reporting

import (
	"testing"
	"time"
)

func TestCampaign_RatesAndEstimate(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	now := start.Add(10 * time.Minute)

	out, err := Campaign(CampaignSnapshot{
		CampaignID:      "camp",
		Status:          "running",
		TotalContacts:   10,
		ContactStatuses: []string{"completed", "completed", "failed", "completed", "completed", "pending", "pending", "pending", "pending", "pending"},
		Completed:       5,
		Answered:        3,
		Voicemail:       1,
		Failed:          1,
		StartedAt:       &start,
	}, now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.AnswerRate != 60 {
		t.Fatalf("expected 60%% answer rate, got %v", out.AnswerRate)
	}
	if out.Progress != 50 || out.Remaining != 5 {
		t.Fatalf("unexpected progress/remaining %d/%d", out.Progress, out.Remaining)
	}
	if out.ContactsByStatus["pending"] != 5 || out.ContactsByStatus["completed"] != 4 {
		t.Fatalf("unexpected contact breakdown %v", out.ContactsByStatus)
	}
	if out.EstimatedCompletion == nil {
		t.Fatalf("expected estimated completion")
	}
	// 10 minutes for 5 contacts => 2 minutes each, 5 remaining => +10 minutes.
	if want := now.Add(10 * time.Minute); !out.EstimatedCompletion.Equal(want) {
		t.Fatalf("expected %v, got %v", want, out.EstimatedCompletion)
	}
	if out.ElapsedSeconds != 600 {
		t.Fatalf("expected 600 elapsed seconds, got %d", out.ElapsedSeconds)
	}
}

func TestCampaign_NoEstimateBeforeFirstCompletion(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	out, err := Campaign(CampaignSnapshot{CampaignID: "camp", TotalContacts: 3, StartedAt: &start}, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.EstimatedCompletion != nil {
		t.Fatalf("expected no estimate")
	}
	if out.AnswerRate != 0 {
		t.Fatalf("expected zero answer rate")
	}
}

func TestCampaign_RequiresID(t *testing.T) {
	if _, err := Campaign(CampaignSnapshot{}, time.Now()); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{4, 3, 100},
	}
	for _, c := range cases {
		if got := Progress(c.completed, c.total); got != c.want {
			t.Fatalf("Progress(%d,%d)=%d want %d", c.completed, c.total, got, c.want)
		}
	}
}

func TestQueue(t *testing.T) {
	st := Queue([]time.Duration{10 * time.Second, 20 * time.Second, 45 * time.Second})
	if st.TotalWaiting != 3 || st.AvgWaitTime != 25 || st.LongestWait != 45 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if empty := Queue(nil); empty.TotalWaiting != 0 || empty.AvgWaitTime != 0 {
		t.Fatalf("unexpected empty stats %+v", empty)
	}
}
