package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// NewStorageClient creates the process-wide Cloud Storage client.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return client, nil
}

// BucketStore stores page images in one bucket and signs read-only URLs for
// them. It satisfies publish.BlobStore.
type BucketStore struct {
	bucket         *storage.BucketHandle
	name           string
	googleAccessID string
	writeTimeout   time.Duration
}

// NewBucketStore wraps bucket. googleAccessID is the service account used for
// signing when the ambient credentials carry no private key; empty means
// detect it from the environment.
func NewBucketStore(client *storage.Client, bucket, googleAccessID string) *BucketStore {
	return &BucketStore{
		bucket:         client.Bucket(bucket),
		name:           bucket,
		googleAccessID: googleAccessID,
		writeTimeout:   50 * time.Second,
	}
}

// Upload writes data to name only if the object does not exist yet.
func (s *BucketStore) Upload(ctx context.Context, name, contentType string, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	w := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", classifyStorageError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", classifyStorageError(err))
	}
	return nil
}

// SignedURL mints a V4 GET URL for name valid for expiry.
func (s *BucketStore) SignedURL(name string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
	}
	if s.googleAccessID != "" {
		opts.GoogleAccessID = s.googleAccessID
	}
	url, err := s.bucket.SignedURL(name, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign gs://%s/%s: %w", s.name, name, err)
	}
	return url, nil
}

func (s *BucketStore) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, name)
}

func classifyStorageError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %v", publish.ErrObjectExists, err)
	}
	return err
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not a failure: re-delivered events produce the same result.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		slog.Error("Failed to copy content to GCS object", "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if errors.Is(classifyStorageError(err), publish.ErrObjectExists) {
			slog.Info("SKIPPING: Object already exists.", "object", objectName)
			return nil
		}
		slog.Error("Failed to close GCS writer", "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// Objects reads uploaded PDFs and writes analysis results for the storage
// trigger.
type Objects struct {
	client *storage.Client
}

func NewObjects(client *storage.Client) *Objects {
	return &Objects{client: client}
}

// Reader opens gs://bucket/object. The caller closes it.
func (o *Objects) Reader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	gcsReader, err := o.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	return gcsReader, nil
}

func (o *Objects) SaveAtomically(ctx context.Context, bucket, object, contentType string, content []byte) error {
	return SaveToGCSAtomically(ctx, o.client.Bucket(bucket), object, contentType, content)
}
