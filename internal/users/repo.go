package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	FirebaseUID string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Repository upserts the caller's profile on every authenticated request.
// Empty fields in UpsertUser never overwrite stored values.
type Repository interface {
	EnsureUser(ctx context.Context, u UpsertUser) (*User, error)
	Get(ctx context.Context, uid string) (*User, error)
	// GetByEmail finds a user that has signed in at least once.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PostgresRepo stores users in the users table.
type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) EnsureUser(ctx context.Context, u UpsertUser) (*User, error) {
	if u.FirebaseUID == "" {
		return nil, fmt.Errorf("firebase_uid required")
	}

	const q = `
insert into users (firebase_uid, email, display_name, photo_url, last_seen_at)
values ($1, $2, $3, $4, now())
on conflict (firebase_uid) do update
set
  email = coalesce(nullif(excluded.email, ''), users.email),
  display_name = coalesce(nullif(excluded.display_name, ''), users.display_name),
  photo_url = coalesce(nullif(excluded.photo_url, ''), users.photo_url),
  last_seen_at = now()
returning firebase_uid, email, display_name, photo_url, created_at, last_seen_at;
`
	var out User
	err := r.db.QueryRow(ctx, q, u.FirebaseUID, u.Email, u.DisplayName, u.PhotoURL).
		Scan(&out.FirebaseUID, &out.Email, &out.DisplayName, &out.PhotoURL, &out.CreatedAt, &out.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, uid string) (*User, error) {
	const q = `
select firebase_uid, email, display_name, photo_url, created_at, last_seen_at
from users where firebase_uid = $1;
`
	var out User
	err := r.db.QueryRow(ctx, q, uid).
		Scan(&out.FirebaseUID, &out.Email, &out.DisplayName, &out.PhotoURL, &out.CreatedAt, &out.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
select firebase_uid, email, display_name, photo_url, created_at, last_seen_at
from users where lower(email) = lower($1)
order by last_seen_at desc
limit 1;
`
	var out User
	err := r.db.QueryRow(ctx, q, strings.TrimSpace(email)).
		Scan(&out.FirebaseUID, &out.Email, &out.DisplayName, &out.PhotoURL, &out.CreatedAt, &out.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// FirestoreRepo stores profiles in the users/{uid} document.
type FirestoreRepo struct {
	client *firestore.Client
}

func NewFirestoreRepo(client *firestore.Client) *FirestoreRepo {
	return &FirestoreRepo{client: client}
}

type userDoc struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	PhotoURL    string    `firestore:"photoURL"`
	CreatedAt   time.Time `firestore:"createdAt"`
	LastSeenAt  time.Time `firestore:"lastSeenAt"`
}

func (r *FirestoreRepo) EnsureUser(ctx context.Context, u UpsertUser) (*User, error) {
	if u.FirebaseUID == "" {
		return nil, fmt.Errorf("firebase_uid required")
	}
	ref := r.client.Collection("users").Doc(u.FirebaseUID)
	now := time.Now().UTC()

	var out *User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var doc userDoc
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			doc.CreatedAt = now
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}
		if u.Email != "" {
			doc.Email = u.Email
		}
		if u.DisplayName != "" {
			doc.DisplayName = u.DisplayName
		}
		if u.PhotoURL != "" {
			doc.PhotoURL = u.PhotoURL
		}
		doc.LastSeenAt = now

		out = &User{
			FirebaseUID: u.FirebaseUID,
			Email:       doc.Email,
			DisplayName: doc.DisplayName,
			PhotoURL:    doc.PhotoURL,
			CreatedAt:   doc.CreatedAt,
			LastSeenAt:  doc.LastSeenAt,
		}
		// Merge keeps the projects/clients/invitations subcollections and any foreign fields.
		return tx.Set(ref, map[string]interface{}{
			"email":       doc.Email,
			"displayName": doc.DisplayName,
			"photoURL":    doc.PhotoURL,
			"createdAt":   doc.CreatedAt,
			"lastSeenAt":  doc.LastSeenAt,
		}, firestore.MergeAll)
	})
	if err != nil {
		return nil, fmt.Errorf("firestore ensure user: %w", err)
	}
	return out, nil
}

func (r *FirestoreRepo) Get(ctx context.Context, uid string) (*User, error) {
	snap, err := r.client.Collection("users").Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("firestore get user: %w", err)
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &User{
		FirebaseUID: uid,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		CreatedAt:   doc.CreatedAt,
		LastSeenAt:  doc.LastSeenAt,
	}, nil
}

// GetByEmail matches the stored address exactly.
func (r *FirestoreRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	iter := r.client.Collection("users").Where("email", "==", strings.TrimSpace(email)).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore find user: %w", err)
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &User{
		FirebaseUID: snap.Ref.ID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		CreatedAt:   doc.CreatedAt,
		LastSeenAt:  doc.LastSeenAt,
	}, nil
}

// MemoryRepo is used for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) EnsureUser(ctx context.Context, u UpsertUser) (*User, error) {
	if u.FirebaseUID == "" {
		return nil, fmt.Errorf("firebase_uid required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cur, ok := r.users[u.FirebaseUID]
	if !ok {
		cur = User{FirebaseUID: u.FirebaseUID, CreatedAt: now}
	}
	if u.Email != "" {
		cur.Email = u.Email
	}
	if u.DisplayName != "" {
		cur.DisplayName = u.DisplayName
	}
	if u.PhotoURL != "" {
		cur.PhotoURL = u.PhotoURL
	}
	cur.LastSeenAt = now
	r.users[u.FirebaseUID] = cur
	out := cur
	return &out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, uid string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.TrimSpace(email)
	for _, u := range r.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
