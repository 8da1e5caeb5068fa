package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Broadcaster fans a payload out to live subscribers of a channel.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload []byte) error
}

type redisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster publishes over Redis pub/sub. A nil client yields a
// broadcaster that drops everything.
func NewRedisBroadcaster(client *redis.Client) Broadcaster {
	if client == nil {
		return nopBroadcaster{}
	}
	return &redisBroadcaster{client: client}
}

func (b *redisBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, string, []byte) error { return nil }

// UserChannel is the pub/sub channel carrying one user's in-app notifications.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

type Service interface {
	HandleVisitEvent(ctx context.Context, e visit.Event) error
	Notify(ctx context.Context, m Message) error

	ListInApp(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkAsRead(ctx context.Context, userID, id uint) error
	MarkAllAsRead(ctx context.Context, userID uint) error

	RegisterDevice(ctx context.Context, userID uint, token, deviceType string) error
	RemoveDevice(ctx context.Context, userID uint, token string) error
}

// Mailer sends one plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Option func(*service)

// WithMailer enables the email channel for messages flagged Email.
func WithMailer(m Mailer) Option {
	return func(s *service) { s.mailer = m }
}

type service struct {
	repo   Repository
	bus    Broadcaster
	push   Pusher
	mailer Mailer
	logger *zap.Logger
}

func NewService(repo Repository, bus Broadcaster, push Pusher, logger *zap.Logger, opts ...Option) Service {
	s := &service{repo: repo, bus: bus, push: push, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleVisitEvent turns a lifecycle event into notifications. Officers of
// the assigned designation hear about assignment and review outcomes; admins
// hear about submissions and repost requests.
func (s *service) HandleVisitEvent(ctx context.Context, e visit.Event) error {
	m, toAdmins, ok := messageFor(e)
	if !ok {
		return nil
	}

	var (
		ids []uint
		err error
	)
	if toAdmins {
		ids, err = s.repo.ActiveAdminIDs(ctx)
	} else {
		ids, err = s.repo.ActiveUserIDsByDesignation(ctx, e.PostedTo)
	}
	if err != nil {
		return fmt.Errorf("resolve recipients for %s: %w", e.Type, err)
	}

	// The actor already knows.
	m.Recipients = without(ids, e.ActorID)
	return s.Notify(ctx, m)
}

func messageFor(e visit.Event) (m Message, toAdmins bool, ok bool) {
	m = Message{
		VisitID: e.VisitID,
		Data: map[string]string{
			"visitId":   e.VisitID,
			"eventType": string(e.Type),
			"status":    string(e.Status),
		},
	}
	deadline := e.Deadline.Format("02 Jan 2006")

	switch e.Type {
	case visit.EventCreated:
		m.Title = "New visit assigned"
		m.Body = fmt.Sprintf("Inspect %s by %s.", e.Place, deadline)
		m.Category = CategoryAssignment
		m.Email = true
	case visit.EventUpdated:
		m.Title = "Visit updated"
		m.Body = fmt.Sprintf("Details for %s changed. Deadline %s.", e.Place, deadline)
		m.Category = CategoryAssignment
	case visit.EventReposted:
		m.Title = "Visit reposted"
		m.Body = fmt.Sprintf("%s is open again until %s.", e.Place, deadline)
		m.Category = CategoryRepost
	case visit.EventApproved:
		m.Title = "Visit report approved"
		m.Body = fmt.Sprintf("Your report for %s was approved by %s.", e.Place, e.Actor)
		m.Category = CategoryReview
		m.Email = true
	case visit.EventRejected:
		m.Title = "Visit report rejected"
		m.Body = fmt.Sprintf("Your report for %s was rejected.", e.Place)
		m.Category = CategoryReview
		m.Email = true
	case visit.EventSubmitted:
		m.Title = "Visit report submitted"
		m.Body = fmt.Sprintf("%s submitted the report for %s.", e.Actor, e.Place)
		m.Category = CategoryReview
		toAdmins = true
	case visit.EventRepostRequested:
		m.Title = "Repost requested"
		m.Body = fmt.Sprintf("%s asked to reopen overdue visit %s.", e.Actor, e.Place)
		m.Category = CategoryRepost
		toAdmins = true
	default:
		return m, false, false
	}
	return m, toAdmins, true
}

// Notify stores one in-app row per recipient, broadcasts it, then pushes to
// registered devices. Email goes out in the background. Delivery failures
// after the insert are only logged.
func (s *service) Notify(ctx context.Context, m Message) error {
	if len(m.Recipients) == 0 {
		return nil
	}
	data, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	var visitID *string
	if m.VisitID != "" {
		visitID = &m.VisitID
	}

	for _, uid := range m.Recipients {
		n := &InAppNotification{
			UserID:   uid,
			VisitID:  visitID,
			Title:    m.Title,
			Message:  m.Body,
			Category: m.Category,
			Data:     datatypes.JSON(data),
		}
		if err := s.repo.CreateInApp(ctx, n); err != nil {
			return fmt.Errorf("store notification for user %d: %w", uid, err)
		}
		payload, _ := json.Marshal(n)
		if err := s.bus.Broadcast(ctx, UserChannel(uid), payload); err != nil {
			s.logger.Warn("broadcast notification", zap.Uint("user_id", uid), zap.Error(err))
		}
	}

	if m.Email && s.mailer != nil {
		go s.sendEmails(context.WithoutCancel(ctx), m)
	}

	tokens, err := s.repo.TokensForUsers(ctx, m.Recipients)
	if err != nil {
		s.logger.Warn("load device tokens", zap.Error(err))
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}
	stale, err := s.push.Push(ctx, tokens, m.Title, m.Body, m.Data)
	if err != nil {
		s.logger.Warn("push notification", zap.String("title", m.Title), zap.Error(err))
	}
	if len(stale) > 0 {
		if err := s.repo.DeactivateTokens(ctx, stale); err != nil {
			s.logger.Warn("deactivate stale tokens", zap.Error(err))
		}
	}
	return nil
}

func (s *service) sendEmails(ctx context.Context, m Message) {
	addrs, err := s.repo.EmailsForUsers(ctx, m.Recipients)
	if err != nil {
		s.logger.Warn("load recipient emails", zap.Error(err))
		return
	}
	for _, to := range addrs {
		if err := s.mailer.Send(ctx, to, m.Title, m.Body); err != nil {
			s.logger.Warn("send notification email", zap.String("to", to), zap.Error(err))
		}
	}
}

func (s *service) ListInApp(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListInAppByUser(ctx, userID, unreadOnly, limit)
}

func (s *service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *service) MarkAsRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkInAppAsRead(ctx, id, userID)
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *service) RegisterDevice(ctx context.Context, userID uint, token, deviceType string) error {
	if token == "" {
		return &visit.ValidationError{Field: "token", Message: "device token is required"}
	}
	return s.repo.SaveDeviceToken(ctx, &DeviceToken{UserID: userID, Token: token, DeviceType: deviceType})
}

func (s *service) RemoveDevice(ctx context.Context, userID uint, token string) error {
	return s.repo.RemoveDeviceToken(ctx, userID, token)
}

func without(ids []uint, skip uint) []uint {
	out := ids[:0:0]
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
