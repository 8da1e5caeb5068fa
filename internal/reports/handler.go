package reports

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{service: s, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if visit.StatusCode(err) == http.StatusInternalServerError {
		h.logger.Error("report request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	visit.WriteError(c, err)
}

func sendFile(c *gin.Context, f *File) {
	c.Header("Content-Disposition", "attachment; filename=\""+f.Filename+"\"")
	c.Header("Content-Length", strconv.Itoa(len(f.Data)))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

// VisitRegister godoc
// @Summary Visit register
// @Description Without format the rows are returned as JSON; with format=csv|excel|pdf a file is downloaded.
// @Tags Reports
// @Produce json
// @Param posted_to query string false "Designation"
// @Param status query string false "Effective status"
// @Param date_range query string false "daily|weekly|monthly|yearly|custom|all (default all)"
// @Param start_date query string false "YYYY-MM-DD, custom range"
// @Param end_date query string false "YYYY-MM-DD, custom range"
// @Param format query string false "csv|excel|pdf"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /api/v1/reports/visits [get]
func (h *Handler) VisitRegister(c *gin.Context) {
	sess, ok := visit.SessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	req := RegisterRequest{
		DateRange: c.DefaultQuery("date_range", DateRangeAll),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Format:    c.Query("format"),
	}
	if raw := c.Query("posted_to"); raw != "" {
		d, valid := visit.ParseDesignation(raw)
		if !valid {
			visit.WriteError(c, &visit.ValidationError{Field: "posted_to", Message: "unknown designation " + strconv.Quote(raw)})
			return
		}
		req.PostedTo = d
	}
	if raw := c.Query("status"); raw != "" {
		st, valid := visit.ParseStatus(raw)
		if !valid {
			visit.WriteError(c, &visit.ValidationError{Field: "status", Message: "unknown status " + strconv.Quote(raw)})
			return
		}
		req.Status = st
	}

	if req.Format == "" {
		rows, err := h.service.RegisterRows(c.Request.Context(), sess, req)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
		return
	}

	file, err := h.service.ExportRegister(c.Request.Context(), sess, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendFile(c, file)
}

// ExportVisit godoc
// @Summary Download one visit as PDF
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Visit ID"
// @Success 200 {file} binary
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /api/v1/visits/{id}/export [get]
func (h *Handler) ExportVisit(c *gin.Context) {
	sess, ok := visit.SessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	file, err := h.service.ExportVisit(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	sendFile(c, file)
}
