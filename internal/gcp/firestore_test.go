package gcp

import (
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/stretchr/testify/assert"
)

func updatePaths(updates []firestore.Update) map[string]any {
	out := make(map[string]any, len(updates))
	for _, u := range updates {
		out[u.Path] = u.Value
	}
	return out
}

func TestFirestoreUpdatesOnlySetsChangedFields(t *testing.T) {
	got := updatePaths(firestoreUpdates(models.StatusUpdate{Status: models.StatusRasterized, PageCount: 3}))
	assert.Equal(t, "RASTERIZED", got["status"])
	assert.Equal(t, 3, got["pageCount"])
	assert.Contains(t, got, "updatedAt")
	assert.NotContains(t, got, "schemaValid")
	assert.NotContains(t, got, "errorKind")
}

func TestFirestoreUpdatesFailure(t *testing.T) {
	valid := false
	got := updatePaths(firestoreUpdates(models.StatusUpdate{
		Status:       models.StatusFailed,
		SchemaValid:  &valid,
		ErrorKind:    "StorageError",
		ErrorDetails: "upload failed",
	}))
	assert.Equal(t, "FAILED", got["status"])
	assert.Equal(t, false, got["schemaValid"])
	assert.Equal(t, "StorageError", got["errorKind"])
	assert.Equal(t, "upload failed", got["errorDetails"])
}
