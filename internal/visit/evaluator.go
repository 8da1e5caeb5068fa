package visit

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// RepostExtension is how far a repost pushes the deadline from the moment of repost.
const RepostExtension = 7 * day

// RepostReplayWindow is how long a repeated repost request is answered with
// the earlier result instead of a validation error.
const RepostReplayWindow = 2 * time.Minute

// IsOverdue reports whether now is strictly past the deadline. A deadline
// equal to now is not overdue. Status is not consulted; see Lapsed.
func IsOverdue(v Visit, now time.Time) bool {
	return now.After(v.Deadline)
}

// Lapsed reports whether a visit still waiting for a submission is overdue.
func Lapsed(v Visit, now time.Time) bool {
	return v.Status.IsOpen() && IsOverdue(v, now)
}

// DaysOverdue is ceil((now - deadline) / 1 day), never negative.
func DaysOverdue(v Visit, now time.Time) int {
	if !IsOverdue(v, now) {
		return 0
	}
	elapsed := now.Sub(v.Deadline)
	days := int(math.Ceil(float64(elapsed) / float64(day)))
	if days < 0 {
		return 0
	}
	return days
}

// EffectiveStatus is the status a reader should see at now: an open visit
// past its deadline reads as overdue even if the row still says pending.
func EffectiveStatus(v Visit, now time.Time) Status {
	if Lapsed(v, now) {
		return StatusOverdue
	}
	return v.Status
}

// Derive attaches the time-dependent fields to v.
func Derive(v Visit, now time.Time) View {
	view := View{Visit: v, EffectiveStatus: v.Status}
	if Lapsed(v, now) {
		view.EffectiveStatus = StatusOverdue
		view.IsOverdue = true
		view.DaysOverdue = DaysOverdue(v, now)
	}
	return view
}

// DeriveAll applies Derive to every visit in vs.
func DeriveAll(vs []Visit, now time.Time) []View {
	out := make([]View, 0, len(vs))
	for _, v := range vs {
		out = append(out, Derive(v, now))
	}
	return out
}
