package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/xuri/excelize/v2"
)

// Exporter renders visits into downloadable files.
type Exporter interface {
	Register(format string, rows []RegisterRow, generatedAt time.Time) (*File, error)
	VisitPDF(v visit.View, generatedAt time.Time) (*File, error)
}

type exporter struct{}

func NewExporter() Exporter {
	return &exporter{}
}

var registerHeaders = []string{
	"ID", "Place", "Location", "Posted To", "Deadline", "Status",
	"Days Overdue", "Completed By", "Officer", "Completed At", "Created At",
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

func (r RegisterRow) record() []string {
	completedAt := ""
	if r.CompletedAt != nil {
		completedAt = r.CompletedAt.Format(dateTimeLayout)
	}
	return []string{
		r.ID,
		r.Place,
		r.Location,
		r.PostedTo,
		r.Deadline.Format(dateLayout),
		r.Status,
		strconv.Itoa(r.DaysOverdue),
		r.CompletedBy,
		r.OfficerName,
		completedAt,
		r.CreatedAt.Format(dateTimeLayout),
	}
}

func (e *exporter) Register(format string, rows []RegisterRow, generatedAt time.Time) (*File, error) {
	stamp := generatedAt.Format("20060102_150405")
	var (
		data []byte
		err  error
		file = &File{}
	)
	switch format {
	case FormatCSV:
		data, err = registerCSV(rows)
		file.Filename, file.ContentType = fmt.Sprintf("visit_register_%s.csv", stamp), mimeCSV
	case FormatExcel:
		data, err = registerExcel(rows)
		file.Filename, file.ContentType = fmt.Sprintf("visit_register_%s.xlsx", stamp), mimeExcel
	case FormatPDF:
		data, err = registerPDF(rows, generatedAt)
		file.Filename, file.ContentType = fmt.Sprintf("visit_register_%s.pdf", stamp), mimePDF
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	file.Data = data
	return file, nil
}

func registerCSV(rows []RegisterRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(registerHeaders); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func registerExcel(rows []RegisterRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Visit Register"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range registerHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(registerHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	for rIdx, r := range rows {
		for cIdx, val := range r.record() {
			cell, err := excelize.CoordinatesToCellName(cIdx+1, rIdx+2)
			if err != nil {
				return nil, err
			}
			var v interface{} = val
			if cIdx == 6 {
				v = r.DaysOverdue
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "D", 30)
	_ = f.SetColWidth(sheet, "E", "K", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func registerPDF(rows []RegisterRow, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Visit Register")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s, %d visits", generatedAt.Format(dateTimeLayout), len(rows)))
	pdf.Ln(10)

	headers := []string{"Place", "Location", "Posted To", "Deadline", "Status", "Days Overdue", "Completed By"}
	widths := []float64{50, 55, 60, 25, 22, 23, 40}

	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		cells := []string{
			truncate(r.Place, 32),
			truncate(r.Location, 36),
			truncate(r.PostedTo, 40),
			r.Deadline.Format(dateLayout),
			r.Status,
			strconv.Itoa(r.DaysOverdue),
			truncate(r.CompletedBy, 24),
		}
		for i, val := range cells {
			align := "L"
			if i >= 3 && i <= 5 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, tr(val), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VisitPDF renders one visit as "Visit Details - {place}" with its
// information, report and photo references.
func (e *exporter) VisitPDF(v visit.View, generatedAt time.Time) (*File, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Visit Details - "+v.Place, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, tr("Visit Details - "+v.Place), "", "L", false)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, "Generated "+generatedAt.Format(dateTimeLayout))
	pdf.Ln(10)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(9)
	}
	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, tr(value), "", "L", false)
	}

	section("Visit Information")
	field("Place", v.Place)
	field("Location", v.Location)
	field("Posted To", string(v.PostedTo))
	field("Deadline", v.Deadline.Format(dateLayout))
	status := string(v.EffectiveStatus)
	if v.DaysOverdue > 0 {
		status = fmt.Sprintf("%s (%d days overdue)", status, v.DaysOverdue)
	}
	field("Status", status)
	field("Instructions", v.Instructions)
	field("Completed By", v.CompletedBy)
	field("Officer Name", v.OfficerName)
	if v.CompletedAt != nil {
		field("Completed At", v.CompletedAt.Format(dateTimeLayout))
	}
	if v.ApprovedAt != nil {
		field("Approved At", v.ApprovedAt.Format(dateTimeLayout))
	}
	if v.RejectionReason != "" {
		field("Rejection Reason", v.RejectionReason)
	}
	pdf.Ln(4)

	section("Report")
	pdf.SetFont("Arial", "", 10)
	report := strings.TrimSpace(v.Report)
	if report == "" {
		report = "No report submitted."
	}
	pdf.MultiCell(0, 6, tr(report), "", "L", false)
	pdf.Ln(4)

	section(fmt.Sprintf("Photos (%d)", len(v.Photos)))
	pdf.SetFont("Arial", "", 10)
	if len(v.Photos) == 0 {
		pdf.Cell(0, 6, "No photos attached.")
		pdf.Ln(6)
	}
	for i, p := range v.Photos {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, p)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &File{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("visit_%s_%s.pdf", slug(v.Place), generatedAt.Format("20060102")),
		ContentType: mimePDF,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "visit"
	}
	return out
}
