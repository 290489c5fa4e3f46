package invitations

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Repository = (*FirestoreRepo)(nil)

type FirestoreRepo struct {
	client *firestore.Client
}

func NewFirestoreRepo(client *firestore.Client) *FirestoreRepo {
	return &FirestoreRepo{client: client}
}

func (r *FirestoreRepo) col(inviteeID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(inviteeID).Collection("invitations")
}

func decode(snap *firestore.DocumentSnapshot) (*Invitation, error) {
	var inv Invitation
	if err := snap.DataTo(&inv); err != nil {
		return nil, fmt.Errorf("decode invitation %s: %w", snap.Ref.ID, err)
	}
	inv.ID = snap.Ref.ID
	return &inv, nil
}

func (r *FirestoreRepo) Create(ctx context.Context, inv *Invitation) error {
	_, err := r.col(inv.InviteeID).Doc(inv.ID).Create(ctx, inv)
	return err
}

func (r *FirestoreRepo) Get(ctx context.Context, inviteeID, id string) (*Invitation, error) {
	snap, err := r.col(inviteeID).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(snap)
}

func (r *FirestoreRepo) List(ctx context.Context, inviteeID string) ([]Invitation, error) {
	iter := r.col(inviteeID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]Invitation, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		inv, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *FirestoreRepo) HasPending(ctx context.Context, inviteeID, ownerID, projectID string) (bool, error) {
	iter := r.col(inviteeID).
		Where("ownerId", "==", ownerID).
		Where("projectId", "==", projectID).
		Where("status", "==", StatusPending).
		Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FirestoreRepo) Respond(ctx context.Context, inviteeID, id, newStatus string, at time.Time) (*Invitation, error) {
	ref := r.col(inviteeID).Doc(id)
	var out *Invitation
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		inv, err := decode(snap)
		if err != nil {
			return err
		}
		if inv.Status != StatusPending {
			return ErrAlreadyResponded
		}
		inv.Status = newStatus
		inv.RespondedAt = &at
		out = inv
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: newStatus},
			{Path: "respondedAt", Value: at},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
