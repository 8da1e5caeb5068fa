package notification

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CategoryAssignment = "assignment"
	CategoryReview     = "review"
	CategoryRepost     = "repost"
	CategorySystem     = "system"
)

// InAppNotification is a per-user bell notification.
type InAppNotification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"userId"`
	VisitID   *string        `gorm:"type:uuid;index" json:"visitId,omitempty"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Category  string         `gorm:"size:30;not null" json:"category"`
	Data      datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool           `gorm:"default:false" json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (InAppNotification) TableName() string {
	return "in_app_notifications"
}

// DeviceToken is an FCM registration token belonging to a user's device.
type DeviceToken struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	Token      string    `gorm:"size:255;not null;uniqueIndex" json:"token"`
	DeviceType string    `gorm:"size:20" json:"deviceType"`
	IsActive   bool      `gorm:"default:true" json:"isActive"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (DeviceToken) TableName() string {
	return "fcm_device_tokens"
}

// Message is one notification addressed to a set of users.
type Message struct {
	Recipients []uint
	VisitID    string
	Title      string
	Body       string
	Category   string
	Data       map[string]string
	// Email also mails the message to each recipient's account address.
	Email bool
}
