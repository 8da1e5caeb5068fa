package utils

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sharath018/field-visit-backend/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// InitFirebase returns an FCM client, or nil when push is not configured.
// A missing credentials file disables push without failing startup.
func InitFirebase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*messaging.Client, error) {
	path := cfg.FCMCredentialsPath
	if path == "" {
		logger.Info("firebase disabled: FCM_CREDENTIALS_PATH not set")
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("firebase credentials file not found, push disabled", zap.String("path", path))
		return nil, nil
	}
	if cfg.FCMProjectID == "" {
		return nil, fmt.Errorf("FCM_PROJECT_ID is required when FCM_CREDENTIALS_PATH is set")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FCMProjectID}, option.WithCredentialsFile(path))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	logger.Info("firebase messaging ready", zap.String("project", cfg.FCMProjectID))
	return client, nil
}
