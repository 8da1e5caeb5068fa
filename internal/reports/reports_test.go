package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

func TestGetDateRange(t *testing.T) {
	from, to, err := GetDateRange(DateRangeDaily, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 12, 23, 59, 59, 0, time.UTC), to)

	from, _, err = GetDateRange(DateRangeWeekly, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), from)

	from, to, err = GetDateRange(DateRangeMonthly, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), to)

	from, to, err = GetDateRange(DateRangeYearly, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, int(from.Month()))
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), to)

	from, to, err = GetDateRange(DateRangeAll, "", "", now)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	from, to, err = GetDateRange(DateRangeCustom, "2025-01-01", "2025-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC), to)

	_, _, err = GetDateRange(DateRangeCustom, "2025-01-31", "2025-01-01", now)
	assert.Error(t, err)
	_, _, err = GetDateRange(DateRangeCustom, "2025-01-31", "", now)
	assert.Error(t, err)
	_, _, err = GetDateRange(DateRangeCustom, "31-01-2025", "2025-02-01", now)
	assert.Error(t, err)

	weeklyFrom, _, _ := GetDateRange(DateRangeWeekly, "", "", now)
	fallbackFrom, _, err := GetDateRange("fortnightly", "", "", now)
	require.NoError(t, err)
	assert.Equal(t, weeklyFrom, fallbackFrom)
}

func sampleRows() []RegisterRow {
	completed := now.Add(-time.Hour)
	return []RegisterRow{
		{ID: "a", Place: "Taluk Office, Hosur", Location: "Hosur", PostedTo: string(visit.DesignationTahsildar),
			Deadline: now, Status: "submitted", CompletedBy: "priya", OfficerName: "S. Priya", CompletedAt: &completed, CreatedAt: now},
		{ID: "b", Place: "PHC", Location: "Bagalur", PostedTo: string(visit.DesignationDDHS),
			Deadline: now.Add(-48 * time.Hour), Status: "overdue", DaysOverdue: 2, CreatedAt: now},
	}
}

func TestRegisterCSV(t *testing.T) {
	f, err := NewExporter().Register(FormatCSV, sampleRows(), now)
	require.NoError(t, err)
	assert.Equal(t, "visit_register_20250312_153000.csv", f.Filename)
	assert.Equal(t, mimeCSV, f.ContentType)

	records, err := csv.NewReader(bytes.NewReader(f.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, registerHeaders, records[0])
	assert.Equal(t, "Taluk Office, Hosur", records[1][1])
	assert.Equal(t, "2", records[2][6])
	assert.Equal(t, "", records[2][9])
}

func TestRegisterExcel(t *testing.T) {
	f, err := NewExporter().Register(FormatExcel, sampleRows(), now)
	require.NoError(t, err)
	assert.Equal(t, mimeExcel, f.ContentType)

	book, err := excelize.OpenReader(bytes.NewReader(f.Data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Visit Register")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Place", rows[0][1])
	assert.Equal(t, "PHC", rows[2][1])
	assert.Equal(t, []string{"Visit Register"}, book.GetSheetList())
}

func TestRegisterPDFAndUnsupported(t *testing.T) {
	f, err := NewExporter().Register(FormatPDF, sampleRows(), now)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(f.Data, []byte("%PDF")))

	_, err = NewExporter().Register("docx", sampleRows(), now)
	assert.Error(t, err)
}

func TestVisitPDF(t *testing.T) {
	v := visit.Derive(visit.Visit{
		ID:       "a",
		Place:    "Government Hospital, Hosur",
		Location: "Hosur",
		PostedTo: visit.DesignationDDHS,
		Deadline: now.Add(-30 * time.Hour),
		Status:   visit.StatusPending,
	}, now)

	f, err := NewExporter().VisitPDF(v, now)
	require.NoError(t, err)
	assert.Equal(t, "visit_government-hospital-hosur_20250312.pdf", f.Filename)
	assert.Equal(t, mimePDF, f.ContentType)
	assert.True(t, bytes.HasPrefix(f.Data, []byte("%PDF")))
}

func TestSlugAndTruncate(t *testing.T) {
	assert.Equal(t, "ration-shop-14", slug("  Ration Shop #14 "))
	assert.Equal(t, "visit", slug("!!!"))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}

// ===== Service =====

type stubVisits struct {
	visit.Service
	views   []visit.View
	filters []visit.Filter
}

func (s *stubVisits) List(_ context.Context, _ visit.Session, f visit.Filter) (*visit.Page, error) {
	s.filters = append(s.filters, f)
	start := (f.Page - 1) * f.PageSize
	end := start + f.PageSize
	if start > len(s.views) {
		start = len(s.views)
	}
	if end > len(s.views) {
		end = len(s.views)
	}
	pages := (len(s.views) + f.PageSize - 1) / f.PageSize
	return &visit.Page{Visits: s.views[start:end], Total: int64(len(s.views)), Page: f.Page, PageSize: f.PageSize, TotalPages: pages}, nil
}

func (s *stubVisits) Get(_ context.Context, _ visit.Session, id string) (*visit.View, error) {
	for _, v := range s.views {
		if v.ID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, &visit.NotFoundError{Kind: "visit", ID: id}
}

func manyViews(n int) []visit.View {
	out := make([]visit.View, n)
	for i := range out {
		out[i] = visit.Derive(visit.Visit{
			ID:       fmt.Sprintf("v-%03d", i),
			Place:    "Site",
			PostedTo: visit.DesignationBDO,
			Deadline: now.Add(time.Hour),
			Status:   visit.StatusPending,
		}, now)
	}
	return out
}

func TestRegisterRowsPagesThroughVisits(t *testing.T) {
	stub := &stubVisits{views: manyViews(230)}
	svc := NewService(stub, NewExporter(), nil, zap.NewNop())
	admin := visit.NewSession(1, "admin", "Admin", "", "")

	rows, err := svc.RegisterRows(context.Background(), admin, RegisterRequest{DateRange: DateRangeAll, Status: visit.StatusPending})
	require.NoError(t, err)
	assert.Len(t, rows, 230)
	require.Len(t, stub.filters, 3)
	assert.Equal(t, visit.StatusPending, stub.filters[0].Status)
	assert.True(t, stub.filters[0].From.IsZero())

	_, err = svc.RegisterRows(context.Background(), admin, RegisterRequest{Status: "archived"})
	var valErr *visit.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "status", valErr.Field)

	_, err = svc.RegisterRows(context.Background(), admin, RegisterRequest{DateRange: DateRangeCustom})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "date_range", valErr.Field)
}

func TestExportRegisterRejectsUnknownFormat(t *testing.T) {
	svc := NewService(&stubVisits{views: manyViews(2)}, NewExporter(), nil, zap.NewNop())
	admin := visit.NewSession(1, "admin", "Admin", "", "")

	_, err := svc.ExportRegister(context.Background(), admin, RegisterRequest{DateRange: DateRangeAll, Format: "docx"})
	var valErr *visit.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "format", valErr.Field)

	f, err := svc.ExportRegister(context.Background(), admin, RegisterRequest{DateRange: DateRangeAll, Format: FormatCSV})
	require.NoError(t, err)
	assert.NotEmpty(t, f.Data)
}

func TestExportVisitChecksPolicy(t *testing.T) {
	views := manyViews(1)
	svc := NewService(&stubVisits{views: views}, NewExporter(), nil, zap.NewNop())
	ctx := context.Background()

	officer := visit.NewSession(5, "tah", "User", visit.DesignationTahsildar, "TAH201")
	_, err := svc.ExportVisit(ctx, officer, views[0].ID)
	var authErr *visit.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, visit.GuardDesignation, authErr.Guard)

	collector := visit.NewSession(6, "dc", "User", visit.DesignationCollector, "DC001")
	f, err := svc.ExportVisit(ctx, collector, views[0].ID)
	require.NoError(t, err)
	assert.Equal(t, mimePDF, f.ContentType)

	_, err = svc.ExportVisit(ctx, collector, "missing")
	assert.True(t, visit.IsNotFound(err))
}
