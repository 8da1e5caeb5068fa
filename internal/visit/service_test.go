package visit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ===== Fakes =====

type fakeRepo struct {
	mu     sync.Mutex
	visits map[string]Visit
	saves  int
}

func newFakeRepo(vs ...Visit) *fakeRepo {
	r := &fakeRepo{visits: map[string]Visit{}}
	for _, v := range vs {
		r.visits[v.ID] = v
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, v *Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits[v.ID] = *v
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, &NotFoundError{Kind: "visit", ID: id}
	}
	return &v, nil
}

func (r *fakeRepo) Save(_ context.Context, v *Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.visits[v.ID] = *v
	return nil
}

func (r *fakeRepo) sorted() []Visit {
	out := make([]Visit, 0, len(r.visits))
	for _, v := range r.visits {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepo) List(_ context.Context, f Filter, now time.Time) ([]Visit, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Visit
	for _, v := range r.sorted() {
		if f.PostedTo != "" && v.PostedTo != f.PostedTo {
			continue
		}
		if f.Status != "" && EffectiveStatus(v, now) != f.Status {
			continue
		}
		out = append(out, v)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ListLapsed(_ context.Context, postedTo Designation, now time.Time) ([]Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Visit
	for _, v := range r.sorted() {
		if (postedTo == "" || v.PostedTo == postedTo) && (v.Status == StatusOverdue || Lapsed(v, now)) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeRepo) Counts(_ context.Context, postedTo Designation, now time.Time) (Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c Counts
	for _, v := range r.visits {
		if postedTo != "" && v.PostedTo != postedTo {
			continue
		}
		c.TotalVisits++
		switch EffectiveStatus(v, now) {
		case StatusSubmitted:
			c.PendingApprovals++
		case StatusApproved:
			c.ApprovedReports++
		case StatusOverdue:
			c.RepostRequests++
		}
	}
	return c, nil
}

func (r *fakeRepo) MarkLapsedOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, v := range r.visits {
		if v.Status == StatusPending && IsOverdue(v, now) {
			v.Status = StatusOverdue
			r.visits[id] = v
			n++
		}
	}
	return n, nil
}

type fakeGate struct {
	registry map[string]Designation
}

func (g fakeGate) CheckIdentity(_ context.Context, employeeID string, position Designation) error {
	d, ok := g.registry[employeeID]
	if !ok {
		return &AuthorizationError{Guard: GuardIdentity, Reason: "not_found", Message: "Employee ID not found"}
	}
	if d != position {
		return &AuthorizationError{Guard: GuardIdentity, Reason: "wrong_position", Message: "Employee is not a " + string(position)}
	}
	return nil
}

type auditEntry struct {
	action string
	status string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAudit) LogAction(_ context.Context, _ *uint, _ *string, action string, _ map[string]interface{}, _ string, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, status: status})
	return nil
}

func (a *fakeAudit) GetAuditLogs(context.Context, auditlog.AuditLogFilter) (*auditlog.PaginatedAuditLogs, error) {
	return &auditlog.PaginatedAuditLogs{}, nil
}

func (a *fakeAudit) GetAuditLogByID(context.Context, uint) (*auditlog.AuditLogResponse, error) {
	return nil, errors.New("not implemented")
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) { return nil, ErrInFlight }

type fixture struct {
	repo  *fakeRepo
	audit *fakeAudit
	pub   *fakePublisher
	svc   Service
}

func newFixture(t *testing.T, vs ...Visit) *fixture {
	t.Helper()
	f := &fixture{
		repo:  newFakeRepo(vs...),
		audit: &fakeAudit{},
		pub:   &fakePublisher{},
	}
	gate := fakeGate{registry: map[string]Designation{
		"TAH001": DesignationTahsildar,
		"BDO001": DesignationBDO,
	}}
	f.svc = NewService(f.repo, gate, f.audit, zap.NewNop(),
		WithClock(func() time.Time { return testNow }),
		WithPublisher(f.pub))
	return f
}

func visitWithID(id string, postedTo Designation, status Status, deadline time.Time) Visit {
	v := pendingVisit(deadline)
	v.ID = id
	v.PostedTo = postedTo
	v.Status = status
	return v
}

// ===== Tests =====

func TestServiceListScopesUsers(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)),
		visitWithID("b", DesignationBDO, StatusPending, testNow.Add(day)),
		visitWithID("c", DesignationTahsildar, StatusPending, testNow.Add(-day)),
	)
	ctx := context.Background()

	page, err := f.svc.List(ctx, tahsildar, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, defaultPageSize, page.PageSize)
	for _, v := range page.Visits {
		assert.Equal(t, DesignationTahsildar, v.PostedTo)
	}

	_, err = f.svc.List(ctx, tahsildar, Filter{PostedTo: DesignationBDO})
	requireDenied(t, err, GuardDesignation)

	page, err = f.svc.List(ctx, collector, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	page, err = f.svc.List(ctx, admin, Filter{Status: StatusOverdue})
	require.NoError(t, err)
	require.Len(t, page.Visits, 1)
	assert.Equal(t, "c", page.Visits[0].ID)
	assert.True(t, page.Visits[0].IsOverdue)
	assert.Equal(t, 1, page.Visits[0].DaysOverdue)
}

func TestServiceGet(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	ctx := context.Background()

	view, err := f.svc.Get(ctx, tahsildar, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", view.ID)

	_, err = f.svc.Get(ctx, bdo, "a")
	requireDenied(t, err, GuardDesignation)

	_, err = f.svc.Get(ctx, admin, "missing")
	assert.True(t, IsNotFound(err))
}

func TestServiceCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, admin, CreateInput{
		Place:    "Ration Shop 14",
		Location: "Krishnagiri",
		PostedTo: DesignationDSO,
		Deadline: testNow.Add(2 * day),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
	assert.Len(t, f.repo.visits, 1)
	assert.Equal(t, []EventType{EventCreated}, f.pub.types())
	assert.Equal(t, []auditEntry{{"VISIT_CREATED", auditlog.StatusSuccess}}, f.audit.entries)

	_, err = f.svc.Create(ctx, tahsildar, CreateInput{Place: "x", Location: "y", PostedTo: DesignationDSO, Deadline: testNow.Add(day)})
	requireDenied(t, err, GuardRole)
	assert.Len(t, f.repo.visits, 1)
	assert.Equal(t, auditlog.StatusFailure, f.audit.entries[1].status)
}

func TestServiceSubmitChecksIdentity(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, tahsildar, "a", SubmitInput{Report: "done", EmployeeID: "BDO001"})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, GuardIdentity, authErr.Guard)
	assert.Equal(t, "wrong_position", authErr.Reason)
	assert.Equal(t, StatusPending, f.repo.visits["a"].Status)

	_, err = f.svc.Submit(ctx, tahsildar, "a", SubmitInput{Report: "done", EmployeeID: "TAH999"})
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "not_found", authErr.Reason)

	view, err := f.svc.Submit(ctx, tahsildar, "a", SubmitInput{Report: "done", EmployeeID: "TAH001"})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, view.Status)
	assert.Equal(t, []EventType{EventSubmitted}, f.pub.types())
}

func TestServicePrepareSubmit(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)),
		visitWithID("b", DesignationTahsildar, StatusApproved, testNow.Add(day)),
	)
	ctx := context.Background()

	assert.NoError(t, f.svc.PrepareSubmit(ctx, tahsildar, "a", "TAH001"))
	assert.NoError(t, f.svc.PrepareSubmit(ctx, admin, "a", ""))
	requireDenied(t, f.svc.PrepareSubmit(ctx, tahsildar, "a", "BDO001"), GuardIdentity)
	requireDenied(t, f.svc.PrepareSubmit(ctx, bdo, "a", "BDO001"), GuardDesignation)
	requireValidation(t, f.svc.PrepareSubmit(ctx, tahsildar, "b", "TAH001"), "status")

	var nf *NotFoundError
	assert.ErrorAs(t, f.svc.PrepareSubmit(ctx, tahsildar, "missing", "TAH001"), &nf)
	assert.Zero(t, f.repo.saves)
	assert.Empty(t, f.pub.types())
}

func TestServiceRepostRetryIsIdempotent(t *testing.T) {
	v := visitWithID("a", DesignationTahsildar, StatusOverdue, testNow.Add(-2*day))
	f := newFixture(t, v)
	ctx := context.Background()

	first, err := f.svc.Repost(ctx, tahsildar, "a", RepostInput{})
	require.NoError(t, err)
	again, err := f.svc.Repost(ctx, tahsildar, "a", RepostInput{})
	require.NoError(t, err)

	assert.True(t, again.Deadline.Equal(first.Deadline))
	assert.Equal(t, 1, f.repo.saves)
	assert.Equal(t, []EventType{EventReposted}, f.pub.types())
}

func TestServiceSubmitRejectsBadReportBeforeLoading(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), tahsildar, "missing", SubmitInput{Report: ""})
	requireValidation(t, err, "report")
}

func TestServiceApproveRepeatSkipsWrite(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusSubmitted, testNow.Add(day)))
	ctx := context.Background()

	first, err := f.svc.Approve(ctx, admin, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, first.Status)

	second, err := f.svc.Approve(ctx, admin, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, second.Status)

	assert.Equal(t, 1, f.repo.saves)
	assert.Equal(t, []EventType{EventApproved}, f.pub.types())
}

func TestServiceRepostFlow(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(-2*day)))
	ctx := context.Background()

	view, err := f.svc.SetStatus(ctx, tahsildar, "a", StatusOverdue)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, view.Status)

	overdue, err := f.svc.ListOverdue(ctx, tahsildar)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	view, err = f.svc.Repost(ctx, tahsildar, "a", RepostInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, view.Status)
	assert.False(t, view.IsOverdue)
	assert.True(t, view.Deadline.Equal(testNow.Add(RepostExtension)))

	assert.Equal(t, []EventType{EventRepostRequested, EventReposted}, f.pub.types())
}

func TestServiceRejectsWhileInFlight(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusSubmitted, testNow.Add(day)))
	svc := NewService(f.repo, fakeGate{}, f.audit, zap.NewNop(), WithLocker(busyLocker{}))

	_, err := svc.Approve(context.Background(), admin, "a")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, StatusSubmitted, f.repo.visits["a"].Status)
}

func TestServiceVerifyForVisit(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationBDO, StatusPending, testNow.Add(day)))
	ctx := context.Background()

	assert.NoError(t, f.svc.VerifyForVisit(ctx, bdo, "a", "BDO001"))
	assert.NoError(t, f.svc.VerifyForVisit(ctx, admin, "a", ""))
	requireDenied(t, f.svc.VerifyForVisit(ctx, bdo, "a", "TAH001"), GuardIdentity)
	requireDenied(t, f.svc.VerifyForVisit(ctx, tahsildar, "a", "TAH001"), GuardDesignation)
}

func TestServiceCounts(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusSubmitted, testNow.Add(day)),
		visitWithID("b", DesignationTahsildar, StatusPending, testNow.Add(-day)),
		visitWithID("c", DesignationBDO, StatusApproved, testNow.Add(day)),
	)
	ctx := context.Background()

	c, err := f.svc.Counts(ctx, tahsildar, "")
	require.NoError(t, err)
	assert.Equal(t, Counts{TotalVisits: 2, PendingApprovals: 1, RepostRequests: 1}, *c)

	_, err = f.svc.Counts(ctx, tahsildar, DesignationBDO)
	requireDenied(t, err, GuardDesignation)

	c, err = f.svc.Counts(ctx, admin, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, c.TotalVisits)
	assert.EqualValues(t, 1, c.ApprovedReports)
}

func TestServiceSweepOverdue(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(-time.Minute)),
		visitWithID("b", DesignationTahsildar, StatusPending, testNow),
		visitWithID("c", DesignationTahsildar, StatusSubmitted, testNow.Add(-day)),
	)
	n, err := f.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, StatusOverdue, f.repo.visits["a"].Status)
	assert.Equal(t, StatusPending, f.repo.visits["b"].Status)
}

func TestRunOverdueSweeperStopsOnCancel(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(-time.Minute)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunOverdueSweeper(ctx, f.svc, time.Hour, zap.NewNop())
		close(done)
	}()

	require.Eventually(t, func() bool {
		v, _ := f.repo.GetByID(context.Background(), "a")
		return v.Status == StatusOverdue
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
