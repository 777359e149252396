package calls

// Status is the carrier-agnostic status of a call.
//
// Every carrier adapter maps its own vendor strings onto this set through an
// explicit table. Anything unmapped becomes StatusFailed.
//
// Invariant: once a call is observed in a terminal status it never moves back
// to a non-terminal one (see Advance).

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further status change is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRinging, StatusInProgress, StatusCompleted,
		StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Advance returns the status a call should hold after observing next.
// A terminal status is sticky.
func Advance(current, next Status) Status {
	if current.Terminal() {
		return current
	}
	if !next.Valid() {
		return StatusFailed
	}
	return next
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)
