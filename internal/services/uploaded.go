package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/gcp"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/upload"
	"github.com/google/uuid"
)

// ObjectStore is the storage the upload trigger reads from and writes to.
type ObjectStore interface {
	Reader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	SaveAtomically(ctx context.Context, bucket, object, contentType string, content []byte) error
}

type UploadedConfig struct {
	ResultsBucket  string
	TempDir        string
	MaxUploadBytes int64
	Timeout        time.Duration
}

// UploadedFunction analyses PDFs as they land in a bucket and stores one
// <object>.json per source object in the results bucket.
type UploadedFunction struct {
	analyser *Analyser
	objects  ObjectStore
	config   UploadedConfig
}

func NewUploadedFunction(a *Analyser, objects ObjectStore, cfg UploadedConfig) *UploadedFunction {
	return &UploadedFunction{analyser: a, objects: objects, config: cfg}
}

// NewUploadedFromConfig builds the analyser and a storage client once per
// instance.
func NewUploadedFromConfig(ctx context.Context, cfg *config.Config) (*UploadedFunction, error) {
	if err := cfg.ValidateTrigger(); err != nil {
		return nil, err
	}
	a, err := NewAnalyserFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		a.Close()
		return nil, apperr.Configuration("services.NewUploadedFromConfig", err)
	}
	a.closers = append(a.closers, storageClient)

	f := NewUploadedFunction(a, gcp.NewObjects(storageClient), UploadedConfig{
		ResultsBucket:  cfg.Trigger.ResultsBucket,
		TempDir:        cfg.Server.TempDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Timeout:        cfg.Server.RequestTimeout,
	})
	slog.Info("Upload trigger initialized.", "resultsBucket", cfg.Trigger.ResultsBucket)
	return f, nil
}

// ResultObjectName is where the extraction for object is stored.
func ResultObjectName(object string) string {
	return object + ".json"
}

// Process handles one object-finalized event. Objects that are not PDFs are
// skipped and yield a nil result.
func (f *UploadedFunction) Process(ctx context.Context, e models.GCSEvent) (*models.UploadedResult, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("SKIPPING: Object is not a PDF.", "contentType", e.ContentType)
		return nil, nil
	}
	logCtx.Info("Processing new GCS object.")

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	doc, err := f.download(ctx, e)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return nil, err
	}
	defer doc.Close()

	requestID := uuid.NewString()
	source := fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name)
	outcome, err := f.analyser.Process(ctx, doc, requestID, source)
	if err != nil {
		return nil, err
	}

	resultName := ResultObjectName(e.Name)
	if err := f.objects.SaveAtomically(ctx, f.config.ResultsBucket, resultName, "application/json", []byte(outcome.Result.Raw)); err != nil {
		logCtx.Error("Failed to save extraction result", "error", err)
		return nil, apperr.Storage("uploaded.save", err)
	}
	f.analyser.MarkResponded(ctx, requestID)

	out := &models.UploadedResult{
		RequestID:    requestID,
		Status:       string(models.StatusResponded),
		OutputGCSUri: fmt.Sprintf("gs://%s/%s", f.config.ResultsBucket, resultName),
	}
	logCtx.Info("Extraction saved.", "requestId", requestID, "output", out.OutputGCSUri)
	return out, nil
}

func (f *UploadedFunction) download(ctx context.Context, e models.GCSEvent) (*upload.Document, error) {
	r, err := f.objects.Reader(ctx, e.Bucket, e.Name)
	if err != nil {
		return nil, apperr.Storage("uploaded.download", err)
	}
	defer r.Close()
	return upload.Spool(r, f.config.TempDir, path.Base(e.Name), f.config.MaxUploadBytes)
}
