package reporting

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Campaign computes results for snap as of now.
//
// Estimated completion is linear: elapsed / completed * remaining, added to
// now. It is only reported while the campaign has started, has completed at
// least one contact and still has contacts remaining.
func Campaign(snap CampaignSnapshot, now time.Time) (CampaignResults, error) {
	if snap.CampaignID == "" {
		return CampaignResults{}, ErrInvalidRequest
	}
	out := CampaignResults{
		CampaignID:       snap.CampaignID,
		Status:           snap.Status,
		TotalContacts:    snap.TotalContacts,
		Completed:        snap.Completed,
		Answered:         snap.Answered,
		Voicemail:        snap.Voicemail,
		Failed:           snap.Failed,
		ContactsByStatus: map[string]int{},
	}
	for _, s := range snap.ContactStatuses {
		out.ContactsByStatus[s]++
	}
	out.Remaining = snap.TotalContacts - snap.Completed
	if out.Remaining < 0 {
		out.Remaining = 0
	}
	if snap.Completed > 0 {
		out.AnswerRate = round2(float64(snap.Answered) / float64(snap.Completed) * 100)
	}
	out.Progress = Progress(snap.Completed, snap.TotalContacts)

	if snap.StartedAt != nil {
		end := now
		if snap.CompletedAt != nil {
			end = *snap.CompletedAt
		}
		elapsed := end.Sub(*snap.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		out.ElapsedSeconds = int(elapsed.Seconds())
		if snap.Completed > 0 && out.Remaining > 0 && snap.CompletedAt == nil {
			perContact := elapsed / time.Duration(snap.Completed)
			eta := now.Add(perContact * time.Duration(out.Remaining)).UTC()
			out.EstimatedCompletion = &eta
		}
	}
	return out, nil
}

// Progress is completed/total as a whole percentage, capped at 100.
func Progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}

// Queue aggregates wait times, rounded to whole seconds.
func Queue(waits []time.Duration) QueueStats {
	out := QueueStats{TotalWaiting: len(waits)}
	if len(waits) == 0 {
		return out
	}
	var total, longest time.Duration
	for _, w := range waits {
		total += w
		if w > longest {
			longest = w
		}
	}
	out.AvgWaitTime = int(math.Round((total / time.Duration(len(waits))).Seconds()))
	out.LongestWait = int(math.Round(longest.Seconds()))
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
