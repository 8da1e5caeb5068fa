package visit

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service   Service
	uploadDir string
	logger    *zap.Logger
}

func NewHandler(s Service, uploadDir string, logger *zap.Logger) *Handler {
	return &Handler{service: s, uploadDir: uploadDir, logger: logger}
}

// ===== Requests =====

type createVisitRequest struct {
	Place        string `json:"place" binding:"required" example:"Government Hospital, Hosur"`
	Location     string `json:"location" binding:"required" example:"Hosur, Krishnagiri"`
	PostedTo     string `json:"postedTo" binding:"required,designation" example:"Tahsildar"`
	Deadline     string `json:"deadline" binding:"required" example:"2025-03-31"`
	Instructions string `json:"instructions" example:"Inspect drug stock registers"`
}

type updateVisitRequest struct {
	Place        string  `json:"place"`
	Location     string  `json:"location"`
	PostedTo     string  `json:"postedTo" binding:"omitempty,designation"`
	Deadline     string  `json:"deadline"`
	Instructions *string `json:"instructions"`
}

type submitVisitRequest struct {
	Report      string   `json:"report" binding:"required"`
	Photos      []string `json:"photos"`
	SubmittedBy string   `json:"submittedBy"`
	OfficerName string   `json:"officerName"`
	EmployeeID  string   `json:"employeeId"`
	Location    string   `json:"location" example:"12.7409, 77.8253"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required" example:"overdue"`
}

type repostRequest struct {
	Deadline string `json:"deadline" example:"2025-04-07"`
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ParseDeadline accepts RFC 3339 timestamps and plain dates (midnight UTC).
func ParseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("deadline", "use YYYY-MM-DD or RFC 3339, got %q", raw)
}

func (h *Handler) session(c *gin.Context) (Session, bool) {
	sess, ok := SessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return sess, ok
}

func (h *Handler) fail(c *gin.Context, err error) {
	if StatusCode(err) == http.StatusInternalServerError {
		h.logger.Error("visit request failed",
			zap.String("path", c.FullPath()),
			zap.String("visit_id", c.Param("id")),
			zap.Error(err))
	}
	WriteError(c, err)
}

// ===== Reads =====

// ListVisits godoc
// @Summary List visits
// @Description Visits visible to the caller. Users only see their own designation unless they are the District Collector.
// @Tags Visits
// @Produce json
// @Param posted_to query string false "Designation filter"
// @Param status query string false "pending, overdue, submitted, approved, rejected"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} Page
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/v1/visits [get]
func (h *Handler) ListVisits(c *gin.Context) {
	h.list(c, c.Query("status"))
}

// ListPending godoc
// @Summary List pending visits
// @Tags Visits
// @Produce json
// @Success 200 {object} Page
// @Router /api/v1/visits/pending [get]
func (h *Handler) ListPending(c *gin.Context) {
	h.list(c, string(StatusPending))
}

// ListSubmitted godoc
// @Summary List submitted visits awaiting approval
// @Tags Visits
// @Produce json
// @Success 200 {object} Page
// @Router /api/v1/visits/submitted [get]
func (h *Handler) ListSubmitted(c *gin.Context) {
	h.list(c, string(StatusSubmitted))
}

// ListApproved godoc
// @Summary List approved visits
// @Tags Visits
// @Produce json
// @Success 200 {object} Page
// @Router /api/v1/visits/approved [get]
func (h *Handler) ListApproved(c *gin.Context) {
	h.list(c, string(StatusApproved))
}

func (h *Handler) list(c *gin.Context, rawStatus string) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var filter Filter
	if rawStatus != "" {
		status, valid := ParseStatus(rawStatus)
		if !valid {
			WriteError(c, invalid("status", "unknown status %q", rawStatus))
			return
		}
		filter.Status = status
	}
	if raw := c.Query("posted_to"); raw != "" {
		d, valid := ParseDesignation(raw)
		if !valid {
			WriteError(c, invalid("posted_to", "unknown designation %q", raw))
			return
		}
		filter.PostedTo = d
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", c.DefaultQuery("limit", "20")))

	page, err := h.service.List(c.Request.Context(), sess, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListOverdue godoc
// @Summary Overdue visits eligible for repost
// @Tags Visits
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/visits/overdue [get]
func (h *Handler) ListOverdue(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	views, err := h.service.ListOverdue(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": views, "total": len(views)})
}

// GetVisit godoc
// @Summary Get a visit
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} View
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/visits/{id} [get]
func (h *Handler) GetVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Counts godoc
// @Summary Dashboard counts
// @Tags Visits
// @Produce json
// @Param designation query string false "Designation (admins and the District Collector only)"
// @Success 200 {object} Counts
// @Router /api/v1/visits/counts [get]
func (h *Handler) Counts(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var designation Designation
	if raw := c.Query("designation"); raw != "" {
		d, valid := ParseDesignation(raw)
		if !valid {
			WriteError(c, invalid("designation", "unknown designation %q", raw))
			return
		}
		designation = d
	}
	counts, err := h.service.Counts(c.Request.Context(), sess, designation)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// VerifyEmployee godoc
// @Summary Identity gate before submitting a report
// @Description Confirms the employee id is registered under the visit's designation.
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Param employee_id query string true "Employee ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/visits/{id}/verify-employee [get]
func (h *Handler) VerifyEmployee(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	err := h.service.VerifyForVisit(c.Request.Context(), sess, c.Param("id"), c.Query("employee_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Employee verified"})
}

// ===== Mutations =====

// CreateVisit godoc
// @Summary Post a new visit
// @Tags Visits
// @Accept json
// @Produce json
// @Param request body createVisitRequest true "Visit"
// @Success 201 {object} View
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/v1/visits [post]
func (h *Handler) CreateVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req createVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deadline, err := ParseDeadline(req.Deadline)
	if err != nil {
		WriteError(c, err)
		return
	}
	postedTo, _ := ParseDesignation(req.PostedTo)

	view, err := h.service.Create(c.Request.Context(), sess, CreateInput{
		Place:        req.Place,
		Location:     req.Location,
		PostedTo:     postedTo,
		Deadline:     deadline,
		Instructions: req.Instructions,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateVisit godoc
// @Summary Edit a visit
// @Description Admin correction of a pending or overdue visit. The visit is left pending.
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param request body updateVisitRequest true "Fields to change"
// @Success 200 {object} View
// @Router /api/v1/visits/{id} [put]
func (h *Handler) UpdateVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req updateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := UpdateInput{
		Place:        req.Place,
		Location:     req.Location,
		Instructions: req.Instructions,
	}
	if req.PostedTo != "" {
		in.PostedTo, _ = ParseDesignation(req.PostedTo)
	}
	if req.Deadline != "" {
		deadline, err := ParseDeadline(req.Deadline)
		if err != nil {
			WriteError(c, err)
			return
		}
		in.Deadline = deadline
	}

	view, err := h.service.Update(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitVisit godoc
// @Summary Submit a visit report
// @Description JSON body with photo references, or multipart/form-data with up to 5 "photos" files.
// @Description An optional "location" replaces the visit location with where the officer reported from.
// @Tags Visits
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} View
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/visits/{id}/submit [post]
func (h *Handler) SubmitVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var (
		in     SubmitInput
		staged *stagedPhotos
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		parsed, photos, err := h.submitFromForm(c, sess)
		if err != nil {
			h.fail(c, err)
			return
		}
		in, staged = parsed, photos
	} else {
		var req submitVisitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in = SubmitInput(req)
	}

	view, err := h.service.Submit(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		staged.discard()
		h.fail(c, err)
		return
	}
	if err := staged.commit(); err != nil {
		h.logger.Error("move submitted photos into place", zap.String("visit_id", view.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, view)
}

// submitFromForm reads a multipart submission. Photos are written to a
// staging directory only after the submission has passed every check, and
// reach uploadDir/visits/<id> through commit.
func (h *Handler) submitFromForm(c *gin.Context, sess Session) (SubmitInput, *stagedPhotos, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return SubmitInput{}, nil, invalid("form", "invalid multipart body: %v", err)
	}
	in := SubmitInput{
		Report:      c.PostForm("report"),
		SubmittedBy: c.PostForm("submittedBy"),
		OfficerName: c.PostForm("officerName"),
		EmployeeID:  c.PostForm("employeeId"),
		Location:    c.PostForm("location"),
	}

	files := form.File["photos"]
	in.Photos = make([]string, len(files))
	if err := ValidateSubmission(in); err != nil {
		return in, nil, err
	}
	if err := h.service.PrepareSubmit(c.Request.Context(), sess, c.Param("id"), in.EmployeeID); err != nil {
		return in, nil, err
	}
	if len(files) == 0 {
		return in, nil, nil
	}

	visitID := filepath.Base(c.Param("id"))
	staged := &stagedPhotos{
		dir:   filepath.Join(h.uploadDir, "visits", stagingDir, uuid.NewString()),
		final: filepath.Join(h.uploadDir, "visits", visitID),
	}
	if err := os.MkdirAll(staged.dir, os.ModePerm); err != nil {
		return in, nil, fmt.Errorf("create staging dir: %w", err)
	}
	for i, file := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, filepath.Join(staged.dir, name)); err != nil {
			staged.discard()
			return in, nil, fmt.Errorf("save photo: %w", err)
		}
		staged.names = append(staged.names, name)
		in.Photos[i] = "/uploads/visits/" + visitID + "/" + name
	}
	return in, staged, nil
}

const stagingDir = ".staging"

// stagedPhotos are uploads held in a per-request staging directory until
// the submission that references them is stored. A nil value is a no-op.
type stagedPhotos struct {
	dir   string
	final string
	names []string
}

func (p *stagedPhotos) commit() error {
	if p == nil {
		return nil
	}
	defer os.RemoveAll(p.dir)
	if err := os.MkdirAll(p.final, os.ModePerm); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	for _, name := range p.names {
		if err := os.Rename(filepath.Join(p.dir, name), filepath.Join(p.final, name)); err != nil {
			return fmt.Errorf("move photo %s: %w", name, err)
		}
	}
	return nil
}

func (p *stagedPhotos) discard() {
	if p == nil {
		return
	}
	_ = os.RemoveAll(p.dir)
}

// SetStatus godoc
// @Summary Direct status change
// @Description "overdue" requests a repost, "pending" reposts, "approved" approves.
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param request body statusRequest true "Target status"
// @Success 200 {object} View
// @Router /api/v1/visits/{id}/status [patch]
func (h *Handler) SetStatus(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, valid := ParseStatus(req.Status)
	if !valid {
		WriteError(c, invalid("status", "unknown status %q", req.Status))
		return
	}
	view, err := h.service.SetStatus(c.Request.Context(), sess, c.Param("id"), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RepostVisit godoc
// @Summary Repost an overdue visit
// @Description Resets the visit to pending with a deadline 7 days from now, or the given deadline (admin only).
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param request body repostRequest false "Optional deadline"
// @Success 200 {object} View
// @Router /api/v1/visits/{id}/repost [patch]
func (h *Handler) RepostVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req repostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var in RepostInput
	if req.Deadline != "" {
		deadline, err := ParseDeadline(req.Deadline)
		if err != nil {
			WriteError(c, err)
			return
		}
		in.NewDeadline = &deadline
	}

	view, err := h.service.Repost(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ApproveVisit godoc
// @Summary Approve a submitted report
// @Description Approving an approved visit again succeeds without changes.
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} View
// @Router /api/v1/visits/{id}/approve [post]
func (h *Handler) ApproveVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	view, err := h.service.Approve(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RejectVisit godoc
// @Summary Reject a submitted report
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param request body rejectRequest true "Reason"
// @Success 200 {object} View
// @Router /api/v1/visits/{id}/reject [post]
func (h *Handler) RejectVisit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.service.Reject(c.Request.Context(), sess, c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
