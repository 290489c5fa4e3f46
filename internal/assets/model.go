// Package assets stores generated or uploaded design media per client.
package assets

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("design asset not found")
	ErrInvalid  = errors.New("invalid design asset")
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo || k == KindAudio
}

// matches reports whether a media type belongs to the kind.
func (k Kind) matches(mediaType string) bool {
	return k.Valid() && strings.HasPrefix(strings.ToLower(mediaType), string(k)+"/")
}

// DesignAsset is stored at users/{uid}/clients/{clientId}/design_assets/{id};
// the bytes live in the blob store under Path.
type DesignAsset struct {
	ID          string    `json:"id" firestore:"-"`
	OwnerID     string    `json:"ownerId" firestore:"ownerId"`
	ClientID    string    `json:"clientId" firestore:"clientId"`
	Kind        Kind      `json:"kind" firestore:"kind"`
	URL         string    `json:"url" firestore:"url"`
	Path        string    `json:"path" firestore:"path"`
	Prompt      string    `json:"prompt,omitempty" firestore:"prompt"`
	ContentType string    `json:"contentType" firestore:"contentType"`
	SizeBytes   int64     `json:"sizeBytes" firestore:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}
