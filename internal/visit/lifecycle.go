package visit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workflow functions below are pure: they take the current visit by value and
// return the next one. Persisting the result is the caller's job.

// NewVisit validates in and builds a pending visit.
func NewVisit(in CreateInput, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionCreate, s, nil).Err(); err != nil {
		return Visit{}, err
	}
	in.Place = strings.TrimSpace(in.Place)
	in.Location = strings.TrimSpace(in.Location)
	if in.Place == "" {
		return Visit{}, invalid("place", "is required")
	}
	if in.Location == "" {
		return Visit{}, invalid("location", "is required")
	}
	if !in.PostedTo.IsAssignable() {
		return Visit{}, invalid("postedTo", "%q is not an assignable designation", in.PostedTo)
	}
	if in.Deadline.IsZero() {
		return Visit{}, invalid("deadline", "is required")
	}
	if in.Deadline.Before(now) {
		return Visit{}, invalid("deadline", "cannot be in the past")
	}
	return Visit{
		ID:           uuid.NewString(),
		Place:        in.Place,
		Location:     in.Location,
		PostedTo:     in.PostedTo,
		Deadline:     in.Deadline,
		Instructions: strings.TrimSpace(in.Instructions),
		Status:       StatusPending,
		Photos:       []string{},
		CreatedBy:    s.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Edit applies an admin correction. Only visits still waiting for a
// submission can be edited, and every edit leaves the visit pending.
func Edit(v Visit, in UpdateInput, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionEdit, s, &v).Err(); err != nil {
		return v, err
	}
	if !v.Status.IsOpen() {
		return v, invalid("status", "a %s visit cannot be edited", v.Status)
	}
	if p := strings.TrimSpace(in.Place); p != "" {
		v.Place = p
	}
	if l := strings.TrimSpace(in.Location); l != "" {
		v.Location = l
	}
	if in.PostedTo != "" {
		if !in.PostedTo.IsAssignable() {
			return v, invalid("postedTo", "%q is not an assignable designation", in.PostedTo)
		}
		v.PostedTo = in.PostedTo
	}
	if !in.Deadline.IsZero() {
		v.Deadline = in.Deadline
	}
	if v.Deadline.Before(now) {
		return v, invalid("deadline", "must not be earlier than now")
	}
	if in.Instructions != nil {
		v.Instructions = strings.TrimSpace(*in.Instructions)
	}
	v.Status = StatusPending
	v.UpdatedAt = now
	return v, nil
}

// ValidateSubmission checks a report without looking at any visit. Clients
// run it before sending anything over the network.
func ValidateSubmission(in SubmitInput) error {
	if strings.TrimSpace(in.Report) == "" {
		return invalid("report", "is required")
	}
	if len(in.Photos) > MaxPhotos {
		return invalid("photos", "at most %d photos are allowed, got %d", MaxPhotos, len(in.Photos))
	}
	return nil
}

// CheckSubmit reports whether s may submit a report for v at now. It covers
// everything Submit checks except the report itself.
func CheckSubmit(v Visit, s Session, now time.Time) error {
	switch v.Status {
	case StatusSubmitted:
		return invalid("status", "visit has already been submitted")
	case StatusApproved, StatusRejected:
		return invalid("status", "visit is %s and cannot be resubmitted", v.Status)
	}
	if err := CanPerform(ActionSubmit, s, &v).Err(); err != nil {
		return err
	}
	if !s.IsAdmin() && Lapsed(v, now) {
		return deny(GuardOverdue, "deadline passed %d day(s) ago; request a repost instead", DaysOverdue(v, now))
	}
	return nil
}

// Submit records an officer's report and moves the visit to submitted.
func Submit(v Visit, in SubmitInput, s Session, now time.Time) (Visit, error) {
	if err := ValidateSubmission(in); err != nil {
		return v, err
	}
	if err := CheckSubmit(v, s, now); err != nil {
		return v, err
	}

	completedBy := strings.TrimSpace(in.SubmittedBy)
	if completedBy == "" {
		completedBy = s.Username
	}
	officer := strings.TrimSpace(in.OfficerName)
	if officer == "" {
		officer = completedBy
	}
	photos := make([]string, len(in.Photos))
	copy(photos, in.Photos)

	if loc := strings.TrimSpace(in.Location); loc != "" {
		v.Location = loc
	}
	v.Report = strings.TrimSpace(in.Report)
	v.Photos = photos
	v.CompletedBy = completedBy
	v.OfficerName = officer
	v.CompletedAt = &now
	v.Status = StatusSubmitted
	v.UpdatedAt = now
	return v, nil
}

// RequestRepost marks a lapsed visit overdue so it appears in the repost
// queue. Marking an already overdue visit again is a no-op.
func RequestRepost(v Visit, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionRequestRepost, s, &v).Err(); err != nil {
		return v, err
	}
	if v.Status == StatusOverdue {
		return v, nil
	}
	if !Lapsed(v, now) {
		return v, invalid("status", "visit is not overdue")
	}
	v.Status = StatusOverdue
	v.UpdatedAt = now
	return v, nil
}

// Repost gives an overdue visit a fresh deadline and returns it to pending.
// Without an explicit deadline the new one is now + RepostExtension, so two
// reposts in a row never stack.
func Repost(v Visit, in RepostInput, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionRepost, s, &v).Err(); err != nil {
		return v, err
	}
	if repostReplayed(v, in, now) {
		return v, nil
	}
	if !v.Status.IsOpen() || !(v.Status == StatusOverdue || Lapsed(v, now)) {
		return v, invalid("status", "only overdue visits can be reposted (status %s)", v.Status)
	}

	deadline := now.Add(RepostExtension)
	if in.NewDeadline != nil {
		if !s.IsAdmin() {
			return v, deny(GuardRole, "only an admin may choose the repost deadline")
		}
		if !in.NewDeadline.After(now) {
			return v, invalid("deadline", "new deadline must be in the future")
		}
		deadline = *in.NewDeadline
	}

	v.Deadline = deadline
	v.Status = StatusPending
	v.RepostedAt = &now
	v.UpdatedAt = now
	return v, nil
}

// repostReplayed reports whether v already carries the outcome of this
// repost request from within RepostReplayWindow, so a retry after a lost
// response succeeds without moving the deadline again.
func repostReplayed(v Visit, in RepostInput, now time.Time) bool {
	if v.Status != StatusPending || v.RepostedAt == nil || Lapsed(v, now) {
		return false
	}
	if now.Sub(*v.RepostedAt) > RepostReplayWindow {
		return false
	}
	if in.NewDeadline != nil {
		return v.Deadline.Equal(*in.NewDeadline)
	}
	return v.Deadline.Equal(v.RepostedAt.Add(RepostExtension))
}

// Approve moves a submitted visit to approved. Approving an approved visit
// returns it unchanged.
func Approve(v Visit, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionApprove, s, &v).Err(); err != nil {
		return v, err
	}
	if v.Status == StatusApproved {
		return v, nil
	}
	if v.Status != StatusSubmitted {
		return v, invalid("status", "only submitted visits can be approved (status %s)", v.Status)
	}
	uid := s.UserID
	v.Status = StatusApproved
	v.ApprovedBy = &uid
	v.ApprovedAt = &now
	v.UpdatedAt = now
	return v, nil
}

// Reject moves a submitted visit to rejected. Rejecting a rejected visit
// returns it unchanged.
func Reject(v Visit, reason string, s Session, now time.Time) (Visit, error) {
	if err := CanPerform(ActionReject, s, &v).Err(); err != nil {
		return v, err
	}
	if v.Status == StatusRejected {
		return v, nil
	}
	if v.Status != StatusSubmitted {
		return v, invalid("status", "only submitted visits can be rejected (status %s)", v.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return v, invalid("reason", "is required")
	}
	v.Status = StatusRejected
	v.RejectionReason = reason
	v.UpdatedAt = now
	return v, nil
}

// SetStatus routes a direct status change to the workflow that owns it.
func SetStatus(v Visit, target Status, s Session, now time.Time) (Visit, error) {
	switch target {
	case StatusOverdue:
		return RequestRepost(v, s, now)
	case StatusPending:
		return Repost(v, RepostInput{}, s, now)
	case StatusApproved:
		return Approve(v, s, now)
	case StatusSubmitted:
		return v, invalid("status", "use the submit operation to submit a report")
	case StatusRejected:
		return v, invalid("status", "use the reject operation with a reason")
	}
	return v, invalid("status", "unknown status %q", target)
}
