package auth

import (
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

// User is an officer or administrator account.
type User struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Username     string            `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email        string            `gorm:"size:150;uniqueIndex;not null" json:"email"`
	PasswordHash string            `gorm:"not null" json:"-"`
	Role         string            `gorm:"size:20;not null" json:"role"`
	Designation  visit.Designation `gorm:"size:100;not null;index" json:"designation"`
	EmployeeID   string            `gorm:"size:20;uniqueIndex;not null" json:"employeeId"`
	Status       string            `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// Session is the lifecycle view of this account.
func (u User) Session() visit.Session {
	return visit.NewSession(u.ID, u.Username, u.Role, u.Designation, u.EmployeeID)
}

// Payload is the user object returned to clients.
func (u User) Payload() map[string]interface{} {
	return map[string]interface{}{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"role":        visit.NormalizeRole(u.Role).Label(),
		"designation": u.Designation,
		"employeeId":  u.EmployeeID,
	}
}
