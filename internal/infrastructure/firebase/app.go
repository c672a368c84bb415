// Package firebase bootstraps the Firebase Admin SDK and exposes the clients
// the service uses: Firestore for storage, Auth for ID tokens and Messaging
// for push notifications.
package firebase

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"repairhub/pkg/config"
	"repairhub/pkg/logger"
)

type App struct {
	app     *fbapp.App
	project string
	opts    []option.ClientOption
}

// ClientOptions picks credentials from FIREBASE_SERVICE_ACCOUNT_JSON, then
// FIREBASE_SERVICE_ACCOUNT_PATH, then application default credentials.
func ClientOptions(cfg *config.Config) ([]option.ClientOption, error) {
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))}, nil
	}

	if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); err != nil {
			return nil, fmt.Errorf("service account file %s: %w", cfg.FirebaseServiceAccountPath, err)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)}, nil
	}

	logger.Info("Using application default credentials for Firebase")
	return nil, nil
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}

	return &App{app: app, project: cfg.FirebaseProject, opts: opts}, nil
}

func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, a.project, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

func (a *App) Auth(ctx context.Context) (*FirebaseAuthClient, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Auth: %w", err)
	}
	return NewFirebaseAuthClient(client), nil
}

func (a *App) Messaging(ctx context.Context) (*messaging.Client, error) {
	client, err := a.app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Messaging: %w", err)
	}
	return client, nil
}
