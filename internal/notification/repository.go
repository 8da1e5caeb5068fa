package notification

import (
	"context"
	"errors"
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Repository interface {
	CreateInApp(ctx context.Context, n *InAppNotification) error
	ListInAppByUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkInAppAsRead(ctx context.Context, id uint, userID uint) error
	MarkAllAsRead(ctx context.Context, userID uint) error

	SaveDeviceToken(ctx context.Context, token *DeviceToken) error
	RemoveDeviceToken(ctx context.Context, userID uint, token string) error
	DeactivateTokens(ctx context.Context, tokens []string) error
	TokensForUsers(ctx context.Context, userIDs []uint) ([]string, error)

	// Recipient lookup against the users table.
	ActiveUserIDsByDesignation(ctx context.Context, d visit.Designation) ([]uint, error)
	ActiveAdminIDs(ctx context.Context) ([]uint, error)
	EmailsForUsers(ctx context.Context, userIDs []uint) ([]string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateInApp(ctx context.Context, n *InAppNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *repository) ListInAppByUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error) {
	var items []InAppNotification
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at DESC").Find(&items).Error
	return items, err
}

func (r *repository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (r *repository) MarkInAppAsRead(ctx context.Context, id uint, userID uint) error {
	res := r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *repository) MarkAllAsRead(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// SaveDeviceToken reassigns an existing token to the caller and reactivates it.
func (r *repository) SaveDeviceToken(ctx context.Context, token *DeviceToken) error {
	token.IsActive = true
	token.LastUsedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_type", "is_active", "last_used_at", "updated_at"}),
	}).Create(token).Error
}

func (r *repository) RemoveDeviceToken(ctx context.Context, userID uint, token string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&DeviceToken{}).Error
}

func (r *repository) DeactivateTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&DeviceToken{}).
		Where("token IN ?", tokens).
		Update("is_active", false).Error
}

func (r *repository) TokensForUsers(ctx context.Context, userIDs []uint) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []string
	err := r.db.WithContext(ctx).Model(&DeviceToken{}).
		Where("user_id IN ? AND is_active = ?", userIDs, true).
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *repository) ActiveUserIDsByDesignation(ctx context.Context, d visit.Designation) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Table("users").
		Where("designation = ? AND status = ? AND LOWER(role) <> ?", d, "active", "admin").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ActiveAdminIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Table("users").
		Where("LOWER(role) = ? AND status = ?", "admin", "active").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) EmailsForUsers(ctx context.Context, userIDs []uint) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var emails []string
	err := r.db.WithContext(ctx).Table("users").
		Where("id IN ? AND status = ? AND email <> ?", userIDs, "active", "").
		Pluck("email", &emails).Error
	return emails, err
}
