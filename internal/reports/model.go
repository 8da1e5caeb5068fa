package reports

import (
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

const (
	DateRangeDaily   = "daily"
	DateRangeWeekly  = "weekly"
	DateRangeMonthly = "monthly"
	DateRangeYearly  = "yearly"
	DateRangeCustom  = "custom"
	// DateRangeAll disables date filtering.
	DateRangeAll = "all"

	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

const (
	mimeCSV   = "text/csv"
	mimeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF   = "application/pdf"
)

// RegisterRequest selects the visits that go into a register export.
type RegisterRequest struct {
	PostedTo  visit.Designation
	Status    visit.Status
	DateRange string
	StartDate string
	EndDate   string
	Format    string
}

// RegisterRow is one line of the visit register.
type RegisterRow struct {
	ID          string     `json:"id"`
	Place       string     `json:"place"`
	Location    string     `json:"location"`
	PostedTo    string     `json:"postedTo"`
	Deadline    time.Time  `json:"deadline"`
	Status      string     `json:"status"`
	DaysOverdue int        `json:"daysOverdue"`
	CompletedBy string     `json:"completedBy,omitempty"`
	OfficerName string     `json:"officerName,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func rowFromView(v visit.View) RegisterRow {
	return RegisterRow{
		ID:          v.ID,
		Place:       v.Place,
		Location:    v.Location,
		PostedTo:    string(v.PostedTo),
		Deadline:    v.Deadline,
		Status:      string(v.EffectiveStatus),
		DaysOverdue: v.DaysOverdue,
		CompletedBy: v.CompletedBy,
		OfficerName: v.OfficerName,
		CompletedAt: v.CompletedAt,
		CreatedAt:   v.CreatedAt,
	}
}

// File is a rendered export.
type File struct {
	Data        []byte
	Filename    string
	ContentType string
}
