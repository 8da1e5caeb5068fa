package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	redis   *redis.Client
	logger  *zap.Logger
}

// NewHandler wires the notification endpoints. rdb may be nil, in which case
// the live stream is unavailable.
func NewHandler(s Service, rdb *redis.Client, logger *zap.Logger) *Handler {
	return &Handler{service: s, redis: rdb, logger: logger}
}

type deviceTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceType string `json:"deviceType" binding:"omitempty,oneof=android ios web" example:"android"`
}

func session(c *gin.Context) (visit.Session, bool) {
	sess, ok := visit.SessionFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return sess, ok
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/notifications [get]
func (h *Handler) List(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	unread := c.Query("unread") == "true"

	items, err := h.service.ListInApp(c.Request.Context(), sess.UserID, unread, limit)
	if err != nil {
		h.logger.Error("list notifications", zap.Uint("user_id", sess.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), sess.UserID)
	if err != nil {
		h.logger.Warn("count unread notifications", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "unread": count})
}

// MarkRead godoc
// @Summary Mark one notification read
// @Tags Notifications
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /api/v1/notifications/{id}/read [patch]
func (h *Handler) MarkRead(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.service.MarkAsRead(c.Request.Context(), sess.UserID, uint(id)); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllRead godoc
// @Summary Mark all my notifications read
// @Tags Notifications
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/notifications/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if err := h.service.MarkAllAsRead(c.Request.Context(), sess.UserID); err != nil {
		h.logger.Error("mark all notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterDevice godoc
// @Summary Register an FCM device token
// @Tags Notifications
// @Accept json
// @Param request body deviceTokenRequest true "Device token"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/notifications/devices [post]
func (h *Handler) RegisterDevice(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.RegisterDevice(c.Request.Context(), sess.UserID, req.Token, req.DeviceType); err != nil {
		visit.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// RemoveDevice godoc
// @Summary Unregister an FCM device token
// @Tags Notifications
// @Accept json
// @Param request body deviceTokenRequest true "Device token"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/notifications/devices [delete]
func (h *Handler) RemoveDevice(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.RemoveDevice(c.Request.Context(), sess.UserID, req.Token); err != nil {
		h.logger.Error("remove device token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stream godoc
// @Summary Live in-app notifications (server-sent events)
// @Tags Notifications
// @Produce text/event-stream
// @Security BearerAuth
// @Router /api/v1/notifications/stream [get]
func (h *Handler) Stream(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live notifications are not enabled"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	sub := h.redis.Subscribe(ctx, UserChannel(sess.UserID))
	defer sub.Close()

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	flusher.Flush()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = c.Writer.Write([]byte("event: inapp\ndata: " + msg.Payload + "\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
