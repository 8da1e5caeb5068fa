package employee

import (
	"context"
	"errors"

	"github.com/sharath018/field-visit-backend/internal/visit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	FindByEmployeeID(ctx context.Context, employeeID string) (*Employee, error)
	Upsert(ctx context.Context, employees []Employee) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByEmployeeID(ctx context.Context, employeeID string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).Where("UPPER(employee_id) = UPPER(?)", employeeID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &visit.NotFoundError{Kind: "employee", ID: employeeID}
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert inserts employees, leaving existing ids untouched.
func (r *repository) Upsert(ctx context.Context, employees []Employee) error {
	if len(employees) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "employee_id"}}, DoNothing: true}).
		Create(&employees).Error
}
