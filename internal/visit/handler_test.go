package visit

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := RegisterValidators(v); err != nil {
			panic(err)
		}
	}
}

func newTestRouter(svc Service, uploadDir string, sess *Session) *gin.Engine {
	h := NewHandler(svc, uploadDir, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if sess != nil {
			c.Set(SessionKey, *sess)
		}
		c.Next()
	})
	g := r.Group("/api/v1/visits")
	g.GET("", h.ListVisits)
	g.GET("/pending", h.ListPending)
	g.GET("/overdue", h.ListOverdue)
	g.GET("/counts", h.Counts)
	g.POST("", h.CreateVisit)
	g.GET("/:id", h.GetVisit)
	g.PUT("/:id", h.UpdateVisit)
	g.POST("/:id/submit", h.SubmitVisit)
	g.PATCH("/:id/status", h.SetStatus)
	g.PATCH("/:id/repost", h.RepostVisit)
	g.POST("/:id/approve", h.ApproveVisit)
	g.POST("/:id/reject", h.RejectVisit)
	g.GET("/:id/verify-employee", h.VerifyEmployee)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestParseDeadline(t *testing.T) {
	d, err := ParseDeadline("2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDeadline("2025-03-31T17:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, 12, d.UTC().Hour())

	_, err = ParseDeadline("31/03/2025")
	requireValidation(t, err, "deadline")
}

func TestHandlerRequiresSession(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f.svc, t.TempDir(), nil)

	w := doJSON(r, http.MethodGet, "/api/v1/visits", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerListAndGet(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(-day)),
		visitWithID("b", DesignationBDO, StatusPending, testNow.Add(day)),
	)
	r := newTestRouter(f.svc, t.TempDir(), &tahsildar)

	w := doJSON(r, http.MethodGet, "/api/v1/visits?status=overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Visits, 1)
	assert.Equal(t, "a", page.Visits[0].ID)
	assert.True(t, page.Visits[0].IsOverdue)

	w = doJSON(r, http.MethodGet, "/api/v1/visits?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", decodeBody(t, w)["field"])

	w = doJSON(r, http.MethodGet, "/api/v1/visits/b", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, GuardDesignation, decodeBody(t, w)["guard"])

	w = doJSON(r, http.MethodGet, "/api/v1/visits/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/visits/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["total"])
}

func TestHandlerCreateVisit(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f.svc, t.TempDir(), &admin)

	w := doJSON(r, http.MethodPost, "/api/v1/visits", gin.H{
		"place":    "Government Hospital",
		"location": "Hosur",
		"postedTo": "DDHS",
		"deadline": "2025-03-20",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, string(DesignationDDHS), body["postedTo"])
	assert.Equal(t, "pending", body["status"])

	w = doJSON(r, http.MethodPost, "/api/v1/visits", gin.H{
		"place":    "Government Hospital",
		"location": "Hosur",
		"postedTo": "Village Officer",
		"deadline": "2025-03-20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/visits", gin.H{
		"place":    "Government Hospital",
		"location": "Hosur",
		"postedTo": "District Collector",
		"deadline": "2025-03-20",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "postedTo", decodeBody(t, w)["field"])
}

func TestHandlerUserCannotCreate(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f.svc, t.TempDir(), &tahsildar)

	w := doJSON(r, http.MethodPost, "/api/v1/visits", gin.H{
		"place": "x", "location": "y", "postedTo": "BDO", "deadline": "2025-03-20",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, GuardRole, decodeBody(t, w)["guard"])
}

func TestHandlerSubmitJSON(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	r := newTestRouter(f.svc, t.TempDir(), &tahsildar)

	w := doJSON(r, http.MethodPost, "/api/v1/visits/a/submit", gin.H{
		"report": "Checked", "employeeId": "BDO001",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, GuardIdentity, body["guard"])
	assert.Equal(t, "wrong_position", body["reason"])
	assert.NotEmpty(t, body["message"])

	w = doJSON(r, http.MethodPost, "/api/v1/visits/a/submit", gin.H{
		"report": "Checked", "employeeId": "TAH001", "photos": []string{"/uploads/x.jpg"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "submitted", decodeBody(t, w)["status"])
}

func multipartSubmit(t *testing.T, fields map[string]string, photos int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i := 0; i < photos; i++ {
		fw, err := mw.CreateFormFile("photos", "site.JPG")
		require.NoError(t, err)
		_, err = fw.Write([]byte("jpeg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandlerSubmitMultipart(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	r := newTestRouter(f.svc, dir, &tahsildar)

	body, ct := multipartSubmit(t, map[string]string{"report": "Checked", "employeeId": "TAH001"}, MaxPhotos+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits/a/submit", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err := os.Stat(filepath.Join(dir, "visits", "a"))
	assert.True(t, os.IsNotExist(err))

	body, ct = multipartSubmit(t, map[string]string{"report": "Checked", "employeeId": "TAH001"}, 2)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/visits/a/submit", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Photos, 2)
	for _, p := range view.Photos {
		assert.True(t, strings.HasPrefix(p, "/uploads/visits/a/"), p)
		assert.True(t, strings.HasSuffix(p, ".jpg"), p)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "visits", "a"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func postMultipart(r http.Handler, path string, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerSubmitMultipartRejectedLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusApproved, testNow.Add(day)),
		visitWithID("b", DesignationTahsildar, StatusPending, testNow.Add(day)),
	)
	fields := map[string]string{"report": "Checked", "employeeId": "BDO001"}

	body, ct := multipartSubmit(t, fields, 3)
	w := postMultipart(newTestRouter(f.svc, dir, &bdo), "/api/v1/visits/b/submit", body, ct)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body, ct = multipartSubmit(t, map[string]string{"report": "Checked", "employeeId": "TAH001"}, 3)
	w = postMultipart(newTestRouter(f.svc, dir, &tahsildar), "/api/v1/visits/a/submit", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartSubmit(t, fields, 2)
	w = postMultipart(newTestRouter(f.svc, dir, &bdo), "/api/v1/visits/does-not-exist/submit", body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 0, countFiles(t, dir))
	_, err := os.Stat(filepath.Join(dir, "visits", "does-not-exist"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, StatusApproved, f.repo.visits["a"].Status)
}

func TestHandlerSubmitMultipartFailureDiscardsStagedPhotos(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	gate := fakeGate{registry: map[string]Designation{"TAH001": DesignationTahsildar}}
	busy := NewService(f.repo, gate, f.audit, zap.NewNop(),
		WithClock(func() time.Time { return testNow }),
		WithLocker(busyLocker{}))

	body, ct := multipartSubmit(t, map[string]string{"report": "Checked", "employeeId": "TAH001"}, 2)
	w := postMultipart(newTestRouter(busy, dir, &tahsildar), "/api/v1/visits/a/submit", body, ct)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, countFiles(t, dir))
	assert.Equal(t, StatusPending, f.repo.visits["a"].Status)
}

func TestHandlerSubmitMultipartLocation(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(day)))
	r := newTestRouter(f.svc, dir, &tahsildar)

	body, ct := multipartSubmit(t, map[string]string{
		"report": "Checked", "employeeId": "TAH001", "location": "Hosur Taluk Office",
	}, 1)
	w := postMultipart(r, "/api/v1/visits/a/submit", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Hosur Taluk Office", decodeBody(t, w)["location"])
	assert.Equal(t, 1, countFiles(t, dir))
	assert.Equal(t, 1, countFiles(t, filepath.Join(dir, "visits", "a")))
}

func TestHandlerStatusAndRepost(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusPending, testNow.Add(-day)))
	r := newTestRouter(f.svc, t.TempDir(), &tahsildar)

	w := doJSON(r, http.MethodPatch, "/api/v1/visits/a/status", gin.H{"status": "submitted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPatch, "/api/v1/visits/a/status", gin.H{"status": "overdue"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "overdue", decodeBody(t, w)["status"])

	w = doJSON(r, http.MethodPatch, "/api/v1/visits/a/repost", gin.H{"deadline": "2025-04-30"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPatch, "/api/v1/visits/a/repost", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, false, body["isOverdue"])
}

func TestHandlerApproveRejectAndConflict(t *testing.T) {
	f := newFixture(t,
		visitWithID("a", DesignationTahsildar, StatusSubmitted, testNow.Add(day)),
		visitWithID("b", DesignationTahsildar, StatusSubmitted, testNow.Add(day)),
	)
	r := newTestRouter(f.svc, t.TempDir(), &admin)

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/api/v1/visits/a/approve", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "approved", decodeBody(t, w)["status"])
	}

	w := doJSON(r, http.MethodPost, "/api/v1/visits/b/reject", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/visits/b/reject", gin.H{"reason": "No photos"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No photos", decodeBody(t, w)["rejectionReason"])

	busy := NewService(f.repo, fakeGate{}, f.audit, zap.NewNop(), WithLocker(busyLocker{}))
	w = doJSON(newTestRouter(busy, t.TempDir(), &admin), http.MethodPost, "/api/v1/visits/a/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerCountsAndVerify(t *testing.T) {
	f := newFixture(t, visitWithID("a", DesignationTahsildar, StatusSubmitted, testNow.Add(day)))
	r := newTestRouter(f.svc, t.TempDir(), &tahsildar)

	w := doJSON(r, http.MethodGet, "/api/v1/visits/counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["pendingApprovals"])

	w = doJSON(r, http.MethodGet, "/api/v1/visits/counts?designation=BDO", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/visits/a/verify-employee?employee_id=TAH001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
