package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// FCM caps multicast at 500 tokens per request.
const fcmBatchSize = 500

// Pusher delivers device push notifications. It returns the tokens FCM
// reported as unregistered so callers can deactivate them.
type Pusher interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]string) (stale []string, err error)
}

type fcmPusher struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCMPusher wraps an FCM client. A nil client yields a pusher that drops
// everything.
func NewFCMPusher(client *messaging.Client, logger *zap.Logger) Pusher {
	if client == nil {
		return nopPusher{}
	}
	return &fcmPusher{client: client, logger: logger}
}

func (f *fcmPusher) Push(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var stale []string
	failed := 0
	for i := 0; i < len(tokens); i += fcmBatchSize {
		end := i + fcmBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[i:end]

		resp, err := f.client.SendEachForMulticast(ctx, buildMulticast(batch, title, body, data))
		if err != nil {
			f.logger.Warn("fcm batch failed", zap.Int("tokens", len(batch)), zap.Error(err))
			failed += len(batch)
			continue
		}
		for idx, r := range resp.Responses {
			if r.Success {
				continue
			}
			failed++
			if messaging.IsUnregistered(r.Error) {
				stale = append(stale, batch[idx])
			}
		}
	}
	if failed > 0 {
		return stale, fmt.Errorf("fcm: %d/%d sends failed", failed, len(tokens))
	}
	return stale, nil
}

func buildMulticast(tokens []string, title, body string, data map[string]string) *messaging.MulticastMessage {
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "visit_updates",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", Badge: &badge},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
				Icon:  "/icon-192x192.png",
			},
		},
	}
}

type nopPusher struct{}

func (nopPusher) Push(context.Context, []string, string, string, map[string]string) ([]string, error) {
	return nil, nil
}
