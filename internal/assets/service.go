package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/blob"
)

// maxAssetBytes caps decoded uploads.
const maxAssetBytes = 50 << 20

type Service struct {
	repo  Repository
	blobs blob.Store
	now   func() time.Time
}

func NewService(repo Repository, blobs blob.Store) *Service {
	return &Service{repo: repo, blobs: blobs, now: time.Now}
}

func assetPath(ownerID, clientID, id, ext string) string {
	return fmt.Sprintf("users/%s/clients/%s/design_assets/%s.%s", ownerID, clientID, id, ext)
}

// Upload decodes dataURI, stores the bytes and records the asset document.
// If the document write fails the uploaded object is removed again.
func (s *Service) Upload(ctx context.Context, ownerID, clientID string, kind Kind, dataURI, prompt string) (*DesignAsset, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || strings.Contains(clientID, "/") {
		return nil, fmt.Errorf("%w: bad client id", ErrInvalid)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind must be image, video or audio", ErrInvalid)
	}
	d, err := media.DecodeDataURI(dataURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(d.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalid)
	}
	if len(d.Data) > maxAssetBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalid, maxAssetBytes)
	}
	contentType := d.BaseType()
	if !kind.matches(contentType) {
		return nil, fmt.Errorf("%w: %s is not %s media", ErrInvalid, contentType, kind)
	}

	id := uuid.NewString()
	path := assetPath(ownerID, clientID, id, media.ExtensionFor(contentType))
	url, err := s.blobs.Put(ctx, path, d.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload design asset: %w", err)
	}

	a := &DesignAsset{
		ID:          id,
		OwnerID:     ownerID,
		ClientID:    clientID,
		Kind:        kind,
		URL:         url,
		Path:        path,
		Prompt:      prompt,
		ContentType: contentType,
		SizeBytes:   int64(len(d.Data)),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if derr := s.blobs.Delete(ctx, path); derr != nil {
			logging.FromContext(ctx).LogWarnf("upload_design_asset", "orphaned object %s: %v", path, derr)
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, ownerID, clientID string) ([]DesignAsset, error) {
	return s.repo.List(ctx, ownerID, clientID)
}

// Delete removes the document and then the stored bytes. A missing object is ignored.
func (s *Service) Delete(ctx context.Context, ownerID, clientID, id string) error {
	a, err := s.repo.Get(ctx, ownerID, clientID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, clientID, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, a.Path); err != nil && !errors.Is(err, blob.ErrNotFound) {
		logging.FromContext(ctx).LogWarnf("delete_design_asset", "object %s not removed: %v", a.Path, err)
	}
	return nil
}
