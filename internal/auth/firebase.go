package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/aetherium-labs/aetherium-backend/config"
)

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/devstorage.full_control",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ClientOptions resolves service-account credentials: inline JSON first, then
// a credentials file, otherwise Application Default Credentials.
func ClientOptions(ctx context.Context, cfg *config.FirebaseConfig) ([]option.ClientOption, error) {
	switch {
	case cfg.CredentialsJSON != "":
		creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), firebaseScopes...)
		if err != nil {
			return nil, fmt.Errorf("parse FIREBASE_CREDENTIALS_JSON: %w", err)
		}
		return []option.ClientOption{option.WithCredentials(creds)}, nil
	case cfg.CredentialsPath != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsPath)}, nil
	default:
		return nil, nil
	}
}

// InitializeFirebase initializes the Firebase Admin SDK app shared by Auth,
// Firestore and Storage.
func InitializeFirebase(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	opts, err := ClientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fbCfg := &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}
