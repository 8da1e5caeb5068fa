package visit

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"go.uber.org/zap"
)

// IdentityGate confirms that employeeID is registered under position. A
// failure is an *AuthorizationError with Guard "identity".
type IdentityGate interface {
	CheckIdentity(ctx context.Context, employeeID string, position Designation) error
}

type Service interface {
	List(ctx context.Context, s Session, filter Filter) (*Page, error)
	ListOverdue(ctx context.Context, s Session) ([]View, error)
	Get(ctx context.Context, s Session, id string) (*View, error)
	Create(ctx context.Context, s Session, in CreateInput) (*View, error)
	Update(ctx context.Context, s Session, id string, in UpdateInput) (*View, error)
	PrepareSubmit(ctx context.Context, s Session, id string, employeeID string) error
	Submit(ctx context.Context, s Session, id string, in SubmitInput) (*View, error)
	SetStatus(ctx context.Context, s Session, id string, status Status) (*View, error)
	Repost(ctx context.Context, s Session, id string, in RepostInput) (*View, error)
	Approve(ctx context.Context, s Session, id string) (*View, error)
	Reject(ctx context.Context, s Session, id string, reason string) (*View, error)
	VerifyForVisit(ctx context.Context, s Session, id string, employeeID string) error
	Counts(ctx context.Context, s Session, designation Designation) (*Counts, error)
	SweepOverdue(ctx context.Context) (int64, error)
}

type service struct {
	repo      Repository
	gate      IdentityGate
	locker    Locker
	publisher Publisher
	audit     auditlog.Service
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLocker serializes mutations per visit.
func WithLocker(l Locker) Option {
	return func(s *service) { s.locker = l }
}

// WithPublisher sends lifecycle events after each change.
func WithPublisher(p Publisher) Option {
	return func(s *service) { s.publisher = p }
}

func NewService(repo Repository, gate IdentityGate, audit auditlog.Service, logger *zap.Logger, opts ...Option) Service {
	svc := &service{
		repo:      repo,
		gate:      gate,
		locker:    NopLocker(),
		publisher: NopPublisher(),
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ===== Reads =====

func (s *service) List(ctx context.Context, sess Session, filter Filter) (*Page, error) {
	scope := ScopeFor(sess)
	if scope != "" {
		if filter.PostedTo != "" && filter.PostedTo != scope {
			return nil, deny(GuardDesignation, "you can only list visits posted to %s", scope)
		}
		filter.PostedTo = scope
	}
	filter = filter.Normalize()

	now := s.now()
	visits, total, err := s.repo.List(ctx, filter, now)
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.PageSize)))
	return &Page{
		Visits:     DeriveAll(visits, now),
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *service) ListOverdue(ctx context.Context, sess Session) ([]View, error) {
	now := s.now()
	visits, err := s.repo.ListLapsed(ctx, ScopeFor(sess), now)
	if err != nil {
		return nil, err
	}
	return DeriveAll(visits, now), nil
}

func (s *service) Get(ctx context.Context, sess Session, id string) (*View, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanPerform(ActionView, sess, v).Err(); err != nil {
		return nil, err
	}
	view := Derive(*v, s.now())
	return &view, nil
}

func (s *service) Counts(ctx context.Context, sess Session, designation Designation) (*Counts, error) {
	if err := CanPerform(ActionViewCounts, sess, nil).Err(); err != nil {
		return nil, err
	}
	if scope := ScopeFor(sess); scope != "" {
		if designation != "" && designation != scope {
			return nil, deny(GuardDesignation, "you can only see counts for %s", scope)
		}
		designation = scope
	}
	c, err := s.repo.Counts(ctx, designation, s.now())
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// VerifyForVisit runs the identity gate for the visit's designation. Admins
// pass without an employee id.
func (s *service) VerifyForVisit(ctx context.Context, sess Session, id string, employeeID string) error {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := CanPerform(ActionSubmit, sess, v).Err(); err != nil {
		return err
	}
	if sess.IsAdmin() {
		return nil
	}
	err = s.gate.CheckIdentity(ctx, employeeID, v.PostedTo)
	s.record(ctx, sess, v.ID, "VISIT_IDENTITY_VERIFIED", map[string]interface{}{
		"employee_id": strings.TrimSpace(employeeID),
		"position":    v.PostedTo,
	}, err)
	return err
}

// ===== Mutations =====

func (s *service) Create(ctx context.Context, sess Session, in CreateInput) (*View, error) {
	now := s.now()
	v, err := NewVisit(in, sess, now)
	if err != nil {
		s.record(ctx, sess, "", "VISIT_CREATED", map[string]interface{}{"place": in.Place, "posted_to": in.PostedTo}, err)
		return nil, err
	}
	if err := s.repo.Create(ctx, &v); err != nil {
		return nil, err
	}
	s.record(ctx, sess, v.ID, "VISIT_CREATED", map[string]interface{}{
		"place":     v.Place,
		"posted_to": v.PostedTo,
		"deadline":  v.Deadline,
	}, nil)
	s.emit(ctx, newEvent(EventCreated, v, sess, now))

	view := Derive(v, now)
	return &view, nil
}

func (s *service) Update(ctx context.Context, sess Session, id string, in UpdateInput) (*View, error) {
	return s.mutate(ctx, sess, id, "VISIT_UPDATED", EventUpdated, func(v Visit, now time.Time) (Visit, error) {
		return Edit(v, in, sess, now)
	})
}

// PrepareSubmit runs every check Submit makes against the stored visit
// without changing it, so uploads are only accepted for a submission that
// can succeed.
func (s *service) PrepareSubmit(ctx context.Context, sess Session, id string, employeeID string) error {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckSubmit(*v, sess, s.now()); err != nil {
		return err
	}
	if sess.IsAdmin() {
		return nil
	}
	return s.gate.CheckIdentity(ctx, employeeID, v.PostedTo)
}

func (s *service) Submit(ctx context.Context, sess Session, id string, in SubmitInput) (*View, error) {
	if err := ValidateSubmission(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, sess, id, "VISIT_SUBMITTED", EventSubmitted, func(v Visit, now time.Time) (Visit, error) {
		if !sess.IsAdmin() {
			if err := CanPerform(ActionSubmit, sess, &v).Err(); err != nil {
				return v, err
			}
			if err := s.gate.CheckIdentity(ctx, in.EmployeeID, v.PostedTo); err != nil {
				return v, err
			}
		}
		return Submit(v, in, sess, now)
	})
}

func (s *service) SetStatus(ctx context.Context, sess Session, id string, status Status) (*View, error) {
	event := EventUpdated
	switch status {
	case StatusOverdue:
		event = EventRepostRequested
	case StatusPending:
		event = EventReposted
	case StatusApproved:
		event = EventApproved
	}
	return s.mutate(ctx, sess, id, "VISIT_STATUS_CHANGED", event, func(v Visit, now time.Time) (Visit, error) {
		return SetStatus(v, status, sess, now)
	})
}

func (s *service) Repost(ctx context.Context, sess Session, id string, in RepostInput) (*View, error) {
	return s.mutate(ctx, sess, id, "VISIT_REPOSTED", EventReposted, func(v Visit, now time.Time) (Visit, error) {
		return Repost(v, in, sess, now)
	})
}

func (s *service) Approve(ctx context.Context, sess Session, id string) (*View, error) {
	return s.mutate(ctx, sess, id, "VISIT_APPROVED", EventApproved, func(v Visit, now time.Time) (Visit, error) {
		return Approve(v, sess, now)
	})
}

func (s *service) Reject(ctx context.Context, sess Session, id string, reason string) (*View, error) {
	return s.mutate(ctx, sess, id, "VISIT_REJECTED", EventRejected, func(v Visit, now time.Time) (Visit, error) {
		return Reject(v, reason, sess, now)
	})
}

// SweepOverdue persists the overdue marker on every lapsed pending visit.
func (s *service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkLapsedOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("marked lapsed visits overdue", zap.Int64("count", n))
	}
	return n, nil
}

// mutate holds the visit's in-flight lock while it loads, transitions and
// saves it. Unchanged results (idempotent repeats) skip the write and the event.
func (s *service) mutate(ctx context.Context, sess Session, id, action string, event EventType, step func(Visit, time.Time) (Visit, error)) (*View, error) {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next, err := step(*current, now)
	if err != nil {
		s.record(ctx, sess, id, action, map[string]interface{}{"status": current.Status}, err)
		return nil, err
	}

	if reflect.DeepEqual(next, *current) {
		view := Derive(next, now)
		return &view, nil
	}

	if err := s.repo.Save(ctx, &next); err != nil {
		return nil, err
	}
	s.record(ctx, sess, id, action, map[string]interface{}{
		"from":     current.Status,
		"to":       next.Status,
		"deadline": next.Deadline,
	}, nil)
	s.emit(ctx, newEvent(event, next, sess, now))

	view := Derive(next, now)
	return &view, nil
}

// record writes an audit row. Failures are logged and never returned.
func (s *service) record(ctx context.Context, sess Session, visitID, action string, details map[string]interface{}, cause error) {
	if s.audit == nil {
		return
	}
	status := auditlog.StatusSuccess
	if cause != nil {
		status = auditlog.StatusFailure
		details["error"] = cause.Error()
		var authErr *AuthorizationError
		if errors.As(cause, &authErr) {
			details["guard"] = authErr.Guard
		}
	}
	uid := sess.UserID
	var vid *string
	if visitID != "" {
		vid = &visitID
	}
	if err := s.audit.LogAction(ctx, &uid, vid, action, details, sess.ClientIP, status); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// emit publishes e. Delivery failures are logged; the change is already stored.
func (s *service) emit(ctx context.Context, e Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish visit event failed",
			zap.String("type", string(e.Type)),
			zap.String("visit_id", e.VisitID),
			zap.Error(err))
	}
}
