package invitations

import (
	"context"
	"errors"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/aetherium-labs/aetherium-backend/internal/users"
)

// Resolver maps an email address to a user id.
type Resolver interface {
	ResolveUID(ctx context.Context, email string) (string, error)
}

// EmailLookup is the subset of the Firebase auth client used here.
type EmailLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error)
}

type FirebaseResolver struct {
	client EmailLookup
}

func NewFirebaseResolver(client EmailLookup) *FirebaseResolver {
	return &FirebaseResolver{client: client}
}

func (r *FirebaseResolver) ResolveUID(ctx context.Context, email string) (string, error) {
	u, err := r.client.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if u == nil || u.UserInfo == nil || u.UID == "" {
		return "", ErrUserNotFound
	}
	return u.UID, nil
}

// DirectoryResolver looks the address up among users that have signed in.
type DirectoryResolver struct {
	users users.Repository
}

func NewDirectoryResolver(repo users.Repository) *DirectoryResolver {
	return &DirectoryResolver{users: repo}
}

func (r *DirectoryResolver) ResolveUID(ctx context.Context, email string) (string, error) {
	u, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return u.FirebaseUID, nil
}
