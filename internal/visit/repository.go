package visit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	Save(ctx context.Context, v *Visit) error
	List(ctx context.Context, filter Filter, now time.Time) ([]Visit, int64, error)
	ListLapsed(ctx context.Context, postedTo Designation, now time.Time) ([]Visit, error)
	Counts(ctx context.Context, postedTo Designation, now time.Time) (Counts, error)
	MarkLapsedOverdue(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, v *Visit) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*Visit, error) {
	var v Visit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Kind: "visit", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Save writes every column. Concurrent writers resolve last-write-wins.
func (r *repository) Save(ctx context.Context, v *Visit) error {
	res := r.db.WithContext(ctx).Model(&Visit{}).Where("id = ?", v.ID).Select("*").Updates(v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Kind: "visit", ID: v.ID}
	}
	return nil
}

// scoped restricts q to one designation when postedTo is set.
func scoped(q *gorm.DB, postedTo Designation) *gorm.DB {
	if postedTo != "" {
		return q.Where("posted_to = ?", postedTo)
	}
	return q
}

// withEffectiveStatus filters on the status a reader sees at now, so a
// pending row past its deadline counts as overdue.
func withEffectiveStatus(q *gorm.DB, status Status, now time.Time) *gorm.DB {
	switch status {
	case "":
		return q
	case StatusOverdue:
		return q.Where("(status = ? OR (status = ? AND deadline < ?))", StatusOverdue, StatusPending, now)
	case StatusPending:
		return q.Where("status = ? AND deadline >= ?", StatusPending, now)
	default:
		return q.Where("status = ?", status)
	}
}

func (r *repository) List(ctx context.Context, filter Filter, now time.Time) ([]Visit, int64, error) {
	filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(&Visit{})
	query = scoped(query, filter.PostedTo)
	query = withEffectiveStatus(query, filter.Status, now)
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var visits []Visit
	offset := (filter.Page - 1) * filter.PageSize
	err := query.Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&visits).Error
	if err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

func (r *repository) ListLapsed(ctx context.Context, postedTo Designation, now time.Time) ([]Visit, error) {
	query := scoped(r.db.WithContext(ctx).Model(&Visit{}), postedTo)
	query = withEffectiveStatus(query, StatusOverdue, now)

	var visits []Visit
	if err := query.Order("deadline ASC").Find(&visits).Error; err != nil {
		return nil, err
	}
	return visits, nil
}

func (r *repository) Counts(ctx context.Context, postedTo Designation, now time.Time) (Counts, error) {
	var c Counts
	base := func() *gorm.DB {
		return scoped(r.db.WithContext(ctx).Model(&Visit{}), postedTo)
	}

	if err := base().Count(&c.TotalVisits).Error; err != nil {
		return c, err
	}
	if err := base().Where("status = ?", StatusSubmitted).Count(&c.PendingApprovals).Error; err != nil {
		return c, err
	}
	if err := base().Where("status = ?", StatusApproved).Count(&c.ApprovedReports).Error; err != nil {
		return c, err
	}
	if err := withEffectiveStatus(base(), StatusOverdue, now).Count(&c.RepostRequests).Error; err != nil {
		return c, err
	}
	return c, nil
}

// MarkLapsedOverdue persists the overdue marker on pending visits whose
// deadline has passed and returns how many rows changed.
func (r *repository) MarkLapsedOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Visit{}).
		Where("status = ? AND deadline < ?", StatusPending, now).
		Updates(map[string]interface{}{"status": StatusOverdue, "updated_at": now})
	return res.RowsAffected, res.Error
}
