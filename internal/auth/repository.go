package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByLogin(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, userID uint) (User, error)
	ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, exceptID uint) (bool, error)
	Update(ctx context.Context, user *User) error
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByLogin matches the identifier against email or username.
func (r *repository) FindByLogin(ctx context.Context, identifier string) (*User, error) {
	var u User
	id := strings.TrimSpace(identifier)
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?) OR username = ?", id, id).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &u, err
}

func (r *repository) FindByID(ctx context.Context, userID uint) (User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user, ErrUserNotFound
	}
	return user, err
}

func (r *repository) ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("UPPER(employee_id) = UPPER(?)", strings.TrimSpace(employeeID)).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ExistsByUsernameOrEmail(ctx context.Context, username, email string, exceptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND id <> ?", username, email, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
