package reports

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReportsRouter(stub *stubVisits, sess visit.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(stub, NewExporter(), nil, zap.NewNop()), zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(visit.SessionKey, sess)
		c.Next()
	})
	r.GET("/reports/visits", h.VisitRegister)
	r.GET("/visits/:id/export", h.ExportVisit)
	return r
}

func TestVisitRegisterHandler(t *testing.T) {
	admin := visit.NewSession(1, "admin", "Admin", "", "")
	r := newReportsRouter(&stubVisits{views: manyViews(3)}, admin)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/visits?posted_to=BDO", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data  []RegisterRow `json:"data"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/visits?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mimeCSV, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=\"visit_register_"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/visits?status=archived", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/visits?format=docx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportVisitHandler(t *testing.T) {
	views := manyViews(1)
	officer := visit.NewSession(2, "bdo", "User", visit.DesignationBDO, "BDO301")
	r := newReportsRouter(&stubVisits{views: views}, officer)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visits/"+views[0].ID+"/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mimePDF, w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visits/nope/export", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
