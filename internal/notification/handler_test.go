package notification

import (
	"context"
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

func newNotificationRouter(svc Service, sess *visit.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, nil, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if sess != nil {
			c.Set(visit.SessionKey, *sess)
		}
		c.Next()
	})
	g := r.Group("/notifications")
	g.GET("", h.List)
	g.GET("/stream", h.Stream)
	g.PATCH("/:id/read", h.MarkRead)
	g.POST("/read-all", h.MarkAllRead)
	g.POST("/devices", h.RegisterDevice)
	g.DELETE("/devices", h.RemoveDevice)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerListAndRead(t *testing.T) {
	_, _, _, svc := newTestService()
	require.NoError(t, svc.HandleVisitEvent(context.Background(), event(visit.EventCreated, 1)))
	sess := visit.NewSession(10, "priya", "User", visit.DesignationTahsildar, "TAH201")
	r := newNotificationRouter(svc, &sess)

	w := serve(r, http.MethodGet, "/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data   []InAppNotification `json:"data"`
		Unread int64               `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.EqualValues(t, 1, body.Unread)
	assert.Equal(t, CategoryAssignment, body.Data[0].Category)

	w = serve(r, http.MethodPatch, "/notifications/999/read", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(r, http.MethodPatch, "/notifications/abc/read", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/notifications/read-all", "")
	assert.Equal(t, http.StatusOK, w.Code)
	count, err := svc.UnreadCount(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandlerDevices(t *testing.T) {
	repo, _, _, svc := newTestService()
	sess := visit.NewSession(10, "priya", "User", visit.DesignationTahsildar, "TAH201")
	r := newNotificationRouter(svc, &sess)

	w := serve(r, http.MethodPost, "/notifications/devices", `{"token":"tok-1","deviceType":"pager"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/notifications/devices", `{"token":"tok-1","deviceType":"android"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"tok-1"}, repo.tokens[10])

	w = serve(r, http.MethodDelete, "/notifications/devices", `{"token":"tok-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.tokens[10])
}

func TestHandlerStreamNeedsRedis(t *testing.T) {
	_, _, _, svc := newTestService()
	sess := visit.NewSession(10, "priya", "User", visit.DesignationTahsildar, "TAH201")

	w := serve(newNotificationRouter(svc, &sess), http.MethodGet, "/notifications/stream", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(newNotificationRouter(svc, nil), http.MethodGet, "/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
