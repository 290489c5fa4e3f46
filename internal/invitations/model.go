// Package invitations lets a project owner invite other users as collaborators.
package invitations

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("invitation not found")
	ErrInvalid          = errors.New("invalid invitation")
	ErrUserNotFound     = errors.New("no user with that email")
	ErrDuplicate        = errors.New("invitation already pending")
	ErrAlreadyResponded = errors.New("invitation already answered")
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Invitation lives under the invitee: users/{inviteeId}/invitations/{id}.
type Invitation struct {
	ID           string     `json:"id" firestore:"-"`
	ProjectID    string     `json:"projectId" firestore:"projectId"`
	ProjectName  string     `json:"projectName" firestore:"projectName"`
	OwnerID      string     `json:"ownerId" firestore:"ownerId"`
	InviteeID    string     `json:"inviteeId" firestore:"inviteeId"`
	InviteeEmail string     `json:"inviteeEmail" firestore:"inviteeEmail"`
	Status       string     `json:"status" firestore:"status"`
	CreatedAt    time.Time  `json:"createdAt" firestore:"createdAt"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty" firestore:"respondedAt"`
}
