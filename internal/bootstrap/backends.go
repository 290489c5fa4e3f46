package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aetherium-labs/aetherium-backend/config"
	"github.com/aetherium-labs/aetherium-backend/internal/assets"
	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/events"
	"github.com/aetherium-labs/aetherium-backend/internal/invitations"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/repository"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/blob"
	"github.com/aetherium-labs/aetherium-backend/internal/users"
)

// Backends holds the clients and repositories selected by configuration.
type Backends struct {
	Firebase   *firebase.App
	AuthClient *fbauth.Client
	Firestore  *firestore.Client
	Pool       *pgxpool.Pool
	DB         *sql.DB
	Redis      *redis.Client

	Projects    repository.Repository
	Users       users.Repository
	Assets      assets.Repository
	Invitations invitations.Repository
	Resolver    invitations.Resolver
	Blobs       blob.Store
	Bus         events.Bus
}

// OpenBackends connects every configured backend. On error, whatever was
// already opened is closed.
func OpenBackends(ctx context.Context, cfg *config.Config) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if cfg.NeedsFirebaseApp() {
		if b.Firebase, err = auth.InitializeFirebase(ctx, &cfg.Firebase); err != nil {
			return nil, err
		}
		if cfg.Server.AuthMode == "firebase" {
			if b.AuthClient, err = b.Firebase.Auth(ctx); err != nil {
				return nil, fmt.Errorf("firebase auth: %w", err)
			}
		}
	}

	if err = b.openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err = b.openBlobs(ctx, cfg); err != nil {
		return nil, err
	}

	if b.Redis, err = OpenRedis(ctx, &cfg.Redis); err != nil {
		return nil, err
	}
	if b.Redis != nil {
		b.Bus = events.NewRedisBus(b.Redis)
	} else {
		b.Bus = events.NewLocalBus()
	}

	if b.AuthClient != nil {
		b.Resolver = invitations.NewFirebaseResolver(b.AuthClient)
	} else {
		b.Resolver = invitations.NewDirectoryResolver(b.Users)
	}
	return b, nil
}

func (b *Backends) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case "firestore":
		fs, err := b.Firebase.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("firestore: %w", err)
		}
		b.Firestore = fs
		b.Projects = repository.NewFirestoreRepository(fs)
		b.Users = users.NewFirestoreRepo(fs)
		b.Assets = assets.NewFirestoreRepo(fs)
		b.Invitations = invitations.NewFirestoreRepo(fs)
	case "postgres":
		pool, db, err := OpenDB(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		b.Pool, b.DB = pool, db
		b.Projects = repository.NewPostgresRepository(db)
		b.Users = users.NewPostgresRepo(pool)
		b.Assets = assets.NewPostgresRepo(db)
		b.Invitations = invitations.NewPostgresRepo(db)
	case "memory":
		b.Projects = repository.NewMemoryRepository()
		b.Users = users.NewMemoryRepo()
		b.Assets = assets.NewMemoryRepo()
		b.Invitations = invitations.NewMemoryRepo()
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.Storage.Backend)
	}
	return nil
}

func (b *Backends) openBlobs(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.BlobBackend {
	case "firebase":
		client, err := b.Firebase.Storage(ctx)
		if err != nil {
			return fmt.Errorf("firebase storage: %w", err)
		}
		bucket, err := client.Bucket(cfg.Firebase.StorageBucket)
		if err != nil {
			return fmt.Errorf("firebase bucket: %w", err)
		}
		b.Blobs = blob.NewFirebaseStore(bucket, cfg.Firebase.StorageBucket)
	case "s3":
		s, err := blob.NewS3Store(ctx, blob.S3Options{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.S3Endpoint,
		})
		if err != nil {
			return err
		}
		b.Blobs = s
	case "memory":
		b.Blobs = blob.NewMemoryStore()
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", cfg.Storage.BlobBackend)
	}
	return nil
}

// Close releases every open client.
func (b *Backends) Close() error {
	var errs []error
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.Firestore != nil {
		errs = append(errs, b.Firestore.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	return errors.Join(errs...)
}
