package employee

import (
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

// Employee is an entry in the government employee registry.
type Employee struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	EmployeeID string            `gorm:"size:20;uniqueIndex;not null" json:"employeeId"`
	FullName   string            `gorm:"size:150;not null" json:"fullName"`
	Position   visit.Designation `gorm:"size:100;not null;index" json:"position"`
	Department string            `gorm:"size:150" json:"department,omitempty"`
	Active     bool              `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (Employee) TableName() string {
	return "employees"
}

// Reason codes returned by the verification gate.
const (
	ReasonMalformed     = "malformed_input"
	ReasonNotFound      = "not_found"
	ReasonWrongPosition = "wrong_position"
	ReasonInactive      = "inactive"
)

// Verification is the outcome of checking an employee id.
type Verification struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}
