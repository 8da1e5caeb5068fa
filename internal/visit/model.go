package visit

import (
	"time"

	"gorm.io/datatypes"
)

// MaxPhotos is the most photos a single report may carry.
const MaxPhotos = 5

// Visit is a field inspection assignment.
type Visit struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Place        string      `gorm:"size:255;not null" json:"place"`
	Location     string      `gorm:"size:512;not null" json:"location"`
	PostedTo     Designation `gorm:"size:100;not null;index" json:"postedTo"`
	Deadline     time.Time   `gorm:"not null;index" json:"deadline"`
	Instructions string      `gorm:"type:text" json:"instructions,omitempty"`
	Status       Status      `gorm:"size:20;not null;default:'pending';index" json:"status"`

	CompletedBy string                      `gorm:"size:100" json:"completedBy,omitempty"`
	OfficerName string                      `gorm:"size:150" json:"officerName,omitempty"`
	Report      string                      `gorm:"type:text" json:"report,omitempty"`
	Photos      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"photos"`
	CompletedAt *time.Time                  `json:"completedAt,omitempty"`

	ApprovedBy      *uint      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`
	RepostedAt      *time.Time `json:"repostedAt,omitempty"`

	CreatedBy uint      `gorm:"index" json:"createdBy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName overrides table name for Visit
func (Visit) TableName() string {
	return "visits"
}

// View is a Visit with the fields derived at read time.
type View struct {
	Visit
	EffectiveStatus Status `json:"effectiveStatus"`
	IsOverdue       bool   `json:"isOverdue"`
	DaysOverdue     int    `json:"daysOverdue"`
}

// Filter narrows a visit listing.
type Filter struct {
	PostedTo Designation
	Status   Status
	// From and To bound created_at when set.
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize fills paging defaults.
func (f Filter) Normalize() Filter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// Page is one page of a listing.
type Page struct {
	Visits     []View `json:"visits"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// Counts are the dashboard totals.
type Counts struct {
	TotalVisits      int64 `json:"totalVisits"`
	PendingApprovals int64 `json:"pendingApprovals"`
	ApprovedReports  int64 `json:"approvedReports"`
	RepostRequests   int64 `json:"repostRequests"`
}

// CreateInput carries the fields of a new visit.
type CreateInput struct {
	Place        string
	Location     string
	PostedTo     Designation
	Deadline     time.Time
	Instructions string
}

// UpdateInput carries an admin edit. Zero fields keep the stored value.
type UpdateInput struct {
	Place        string
	Location     string
	PostedTo     Designation
	Deadline     time.Time
	Instructions *string
}

// SubmitInput is an officer's completion report. A non-empty Location
// replaces the visit's location with where the officer actually reported from.
type SubmitInput struct {
	Report      string
	Photos      []string
	SubmittedBy string
	OfficerName string
	EmployeeID  string
	Location    string
}

// RepostInput optionally overrides the repost deadline.
type RepostInput struct {
	NewDeadline *time.Time
}
