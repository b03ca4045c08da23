package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pricingextractor/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreTracker keeps one document per analysis, keyed by request id.
type FirestoreTracker struct {
	coll *firestore.CollectionRef
}

func NewFirestoreTracker(client *firestore.Client, collection string) *FirestoreTracker {
	return &FirestoreTracker{coll: client.Collection(collection)}
}

func (t *FirestoreTracker) Start(ctx context.Context, a *models.Analysis) error {
	if _, err := t.coll.Doc(a.RequestID).Set(ctx, a); err != nil {
		return fmt.Errorf("failed to create analysis document: %w", err)
	}
	return nil
}

func (t *FirestoreTracker) Advance(ctx context.Context, requestID string, u models.StatusUpdate) error {
	if _, err := t.coll.Doc(requestID).Update(ctx, firestoreUpdates(u)); err != nil {
		return fmt.Errorf("failed to update analysis status to %s: %w", u.Status, err)
	}
	return nil
}

func firestoreUpdates(u models.StatusUpdate) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: string(u.Status)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if u.PageCount > 0 {
		updates = append(updates, firestore.Update{Path: "pageCount", Value: u.PageCount})
	}
	if u.SchemaValid != nil {
		updates = append(updates, firestore.Update{Path: "schemaValid", Value: *u.SchemaValid})
	}
	if u.ErrorKind != "" {
		updates = append(updates, firestore.Update{Path: "errorKind", Value: u.ErrorKind})
	}
	if u.ErrorDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: u.ErrorDetails})
	}
	return updates
}
