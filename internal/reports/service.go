package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
)

// Registers are capped so a single export cannot walk the whole table.
const maxRegisterRows = 5000

type Service interface {
	// RegisterRows returns the rows a register export would contain.
	RegisterRows(ctx context.Context, s visit.Session, req RegisterRequest) ([]RegisterRow, error)
	ExportRegister(ctx context.Context, s visit.Session, req RegisterRequest) (*File, error)
	ExportVisit(ctx context.Context, s visit.Session, id string) (*File, error)
}

type service struct {
	visits   visit.Service
	exporter Exporter
	audit    auditlog.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(visits visit.Service, exporter Exporter, audit auditlog.Service, logger *zap.Logger) Service {
	return &service{visits: visits, exporter: exporter, audit: audit, logger: logger, now: time.Now}
}

func (s *service) RegisterRows(ctx context.Context, sess visit.Session, req RegisterRequest) ([]RegisterRow, error) {
	if req.Status != "" && !req.Status.IsValid() {
		return nil, &visit.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", req.Status)}
	}
	from, to, err := GetDateRange(req.DateRange, req.StartDate, req.EndDate, s.now())
	if err != nil {
		return nil, &visit.ValidationError{Field: "date_range", Message: err.Error()}
	}

	filter := visit.Filter{
		PostedTo: req.PostedTo,
		Status:   req.Status,
		From:     from,
		To:       to,
		Page:     1,
		PageSize: 100,
	}
	var rows []RegisterRow
	for {
		page, err := s.visits.List(ctx, sess, filter)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Visits {
			rows = append(rows, rowFromView(v))
		}
		if filter.Page >= page.TotalPages || len(rows) >= maxRegisterRows {
			break
		}
		filter.Page++
	}
	if len(rows) > maxRegisterRows {
		rows = rows[:maxRegisterRows]
	}
	return rows, nil
}

func (s *service) ExportRegister(ctx context.Context, sess visit.Session, req RegisterRequest) (*File, error) {
	rows, err := s.RegisterRows(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	file, err := s.exporter.Register(req.Format, rows, s.now())
	if err != nil {
		return nil, &visit.ValidationError{Field: "format", Message: err.Error()}
	}
	s.record(ctx, sess, nil, "VISIT_REGISTER_EXPORTED", map[string]interface{}{
		"format":     req.Format,
		"rows":       len(rows),
		"posted_to":  req.PostedTo,
		"status":     req.Status,
		"date_range": req.DateRange,
	})
	return file, nil
}

func (s *service) ExportVisit(ctx context.Context, sess visit.Session, id string) (*File, error) {
	v, err := s.visits.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := visit.CanPerform(visit.ActionExport, sess, &v.Visit).Err(); err != nil {
		return nil, err
	}
	file, err := s.exporter.VisitPDF(*v, s.now())
	if err != nil {
		return nil, fmt.Errorf("render visit %s: %w", id, err)
	}
	s.record(ctx, sess, &v.ID, "VISIT_EXPORTED", map[string]interface{}{"format": FormatPDF})
	return file, nil
}

func (s *service) record(ctx context.Context, sess visit.Session, visitID *string, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	uid := sess.UserID
	if err := s.audit.LogAction(ctx, &uid, visitID, action, details, sess.ClientIP, auditlog.StatusSuccess); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
