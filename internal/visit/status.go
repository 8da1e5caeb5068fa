package visit

import "strings"

// Status is the persisted lifecycle state of a visit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusOverdue   Status = "overdue"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusOverdue, StatusSubmitted, StatusApproved, StatusRejected}

func (s Status) String() string { return string(s) }

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusRejected, StatusOverdue:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsOpen reports whether the visit still waits for a submission.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusOverdue
}

// CanTransitionTo checks the lifecycle graph:
//
//	pending   -> overdue, submitted, pending (admin edit)
//	overdue   -> pending (repost or admin edit), submitted
//	submitted -> approved, rejected
//	approved, rejected: terminal
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusOverdue || target == StatusSubmitted || target == StatusPending
	case StatusOverdue:
		return target == StatusPending || target == StatusSubmitted
	case StatusSubmitted:
		return target == StatusApproved || target == StatusRejected
	}
	return false
}

// ParseStatus parses a status case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.IsValid()
}
