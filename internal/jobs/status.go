package jobs

import "fmt"

// Status represents the lifecycle state of a job application.
type Status string

// Status values persisted in the store.
const (
	StatusNew          Status = "new"
	StatusDismissed    Status = "dismissed"
	StatusSaved        Status = "saved"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
	StatusWithdrawn    Status = "withdrawn"
	StatusExpired      Status = "expired"
)

// validTransitions lists every allowed (from → to) pair. States with no
// entry have no outgoing transitions.
var validTransitions = map[Status][]Status{
	StatusNew:          {StatusDismissed, StatusSaved, StatusApplied, StatusExpired},
	StatusApplied:      {StatusInterviewing, StatusRejected, StatusWithdrawn},
	StatusInterviewing: {StatusOffer, StatusRejected, StatusWithdrawn},
	StatusOffer:        {StatusAccepted, StatusRejected, StatusWithdrawn},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusDismissed, StatusSaved, StatusApplied, StatusInterviewing,
		StatusOffer, StatusAccepted, StatusRejected, StatusWithdrawn, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// TransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func TransitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal returns true for states with no outgoing transitions.
func Terminal(s Status) bool {
	return len(validTransitions[s]) == 0
}
