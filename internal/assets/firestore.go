package assets

import (
	"context"
	"fmt"

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

func (r *FirestoreRepo) col(ownerID, clientID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(ownerID).
		Collection("clients").Doc(clientID).
		Collection("design_assets")
}

func (r *FirestoreRepo) Create(ctx context.Context, a *DesignAsset) error {
	if _, err := r.col(a.OwnerID, a.ClientID).Doc(a.ID).Create(ctx, a); err != nil {
		return fmt.Errorf("create design asset: %w", err)
	}
	return nil
}

func (r *FirestoreRepo) Get(ctx context.Context, ownerID, clientID, id string) (*DesignAsset, error) {
	snap, err := r.col(ownerID, clientID).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(snap)
}

func decode(snap *firestore.DocumentSnapshot) (*DesignAsset, error) {
	var a DesignAsset
	if err := snap.DataTo(&a); err != nil {
		return nil, fmt.Errorf("decode design asset %s: %w", snap.Ref.ID, err)
	}
	a.ID = snap.Ref.ID
	return &a, nil
}

func (r *FirestoreRepo) List(ctx context.Context, ownerID, clientID string) ([]DesignAsset, error) {
	iter := r.col(ownerID, clientID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]DesignAsset, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		a, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *FirestoreRepo) Delete(ctx context.Context, ownerID, clientID, id string) error {
	_, err := r.col(ownerID, clientID).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}
