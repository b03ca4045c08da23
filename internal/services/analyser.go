package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/claude"
	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/extract"
	"github.com/Lllllllleong/pricingextractor/internal/gcp"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/Lllllllleong/pricingextractor/internal/rasterize"
	"github.com/Lllllllleong/pricingextractor/internal/retry"
	"github.com/Lllllllleong/pricingextractor/internal/upload"
)

// Rasterizer renders a spooled PDF.
type Rasterizer interface {
	RasterizeFile(ctx context.Context, path string) ([]rasterize.Page, error)
}

// Tracker records the state machine of each analysis.
type Tracker interface {
	Start(ctx context.Context, a *models.Analysis) error
	Advance(ctx context.Context, requestID string, u models.StatusUpdate) error
}

type noopTracker struct{}

func (noopTracker) Start(context.Context, *models.Analysis) error { return nil }
func (noopTracker) Advance(context.Context, string, models.StatusUpdate) error { return nil }

// Outcome is a successful analysis, ready to be returned to the caller.
type Outcome struct {
	RequestID string
	PageCount int
	Result    *extract.Result
}

// Analyser runs one uploaded PDF through rasterize, publish and extract.
type Analyser struct {
	rasterizer Rasterizer
	publisher  publish.Publisher
	requester  *extract.Requester
	tracker    Tracker
	closers    []io.Closer
}

// NewAnalyser wires the stages together. A nil tracker disables tracking.
func NewAnalyser(r Rasterizer, p publish.Publisher, req *extract.Requester, t Tracker) *Analyser {
	if t == nil {
		t = noopTracker{}
	}
	return &Analyser{rasterizer: r, publisher: p, requester: req, tracker: t}
}

// NewAnalyserFromConfig builds the real clients once. Call Close on shutdown.
func NewAnalyserFromConfig(ctx context.Context, cfg *config.Config) (*Analyser, error) {
	a := &Analyser{tracker: noopTracker{}}

	chat, err := newChatModel(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.requester = extract.NewRequester(chat, cfg.LLMMaxAttempts)
	a.rasterizer = rasterize.New(rasterize.Options{DPI: cfg.Raster.DPI, Workers: cfg.Raster.Workers})

	var store publish.BlobStore
	if cfg.Publish.Mode == publish.ModeRemote {
		storageClient, err := gcp.NewStorageClient(ctx)
		if err != nil {
			a.Close()
			return nil, apperr.Configuration("services.NewAnalyserFromConfig", err)
		}
		a.closers = append(a.closers, storageClient)
		store = gcp.NewBucketStore(storageClient, cfg.Publish.Bucket, cfg.Publish.GoogleAccessID)
	}
	a.publisher, err = publish.New(cfg.Publish.Mode, store, publish.RemoteOptions{
		Prefix:      cfg.Publish.Prefix,
		URLExpiry:   cfg.Publish.URLExpiry,
		SignURLs:    cfg.Publish.SignURLs,
		Concurrency: cfg.Publish.UploadConcurrency,
		Retry:       retry.DefaultPolicy,
	})
	if err != nil {
		a.Close()
		return nil, apperr.Configuration("services.NewAnalyserFromConfig", err)
	}

	if cfg.Firestore.Collection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			a.Close()
			return nil, apperr.Configuration("services.NewAnalyserFromConfig", err)
		}
		a.closers = append(a.closers, firestoreClient)
		a.tracker = gcp.NewFirestoreTracker(firestoreClient, cfg.Firestore.Collection)
	}

	slog.Info("Analyser initialized.",
		"provider", cfg.Provider,
		"model", chat.Name(),
		"publishMode", cfg.Publish.Mode,
		"tracking", cfg.Firestore.Collection != "",
	)
	return a, nil
}

func newChatModel(ctx context.Context, cfg *config.Config, a *Analyser) (extract.ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		chat, err := claude.New(claude.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		})
		if err != nil {
			return nil, apperr.Configuration("services.newChatModel", err)
		}
		return chat, nil
	case config.ProviderVertex:
		chat, err := gcp.NewVertexChat(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Region, cfg.Vertex.Model)
		if err != nil {
			return nil, apperr.Configuration("services.newChatModel", err)
		}
		a.closers = append(a.closers, chat)
		return chat, nil
	default:
		return nil, apperr.Configuration("services.newChatModel", fmt.Errorf("unknown LLM provider %q", cfg.Provider))
	}
}

// Close releases the clients created by NewAnalyserFromConfig.
func (a *Analyser) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Process runs the pipeline for doc. Every failure is classified with apperr
// and recorded as FAILED; there is no partial success.
func (a *Analyser) Process(ctx context.Context, doc *upload.Document, requestID, source string) (*Outcome, error) {
	logCtx := slog.With("requestId", requestID, "source", source, "filename", doc.Filename)
	logCtx.Info("Processing new PDF.", "size", doc.Size, "fileHash", doc.Hash)

	a.track(ctx, logCtx, func(ctx context.Context) error {
		return a.tracker.Start(ctx, &models.Analysis{
			RequestID:        requestID,
			Source:           source,
			OriginalFilename: doc.Filename,
			FileHash:         doc.Hash,
			FileSize:         doc.Size,
			Status:           models.StatusReceived,
			PublishMode:      string(a.publisher.Mode()),
			CreatedAt:        time.Now(),
		})
	})

	ok, err := doc.LooksLikePDF()
	if err != nil {
		return nil, a.fail(ctx, logCtx, requestID, "failed to inspect upload", fmt.Errorf("inspect upload: %w", err))
	}
	if !ok {
		return nil, a.fail(ctx, logCtx, requestID, "upload is not a PDF", apperr.Decode("analyse", errors.New("uploaded file is not a PDF")))
	}

	pages, err := a.rasterizer.RasterizeFile(ctx, doc.Path())
	if err != nil {
		return nil, a.fail(ctx, logCtx, requestID, "failed to rasterize PDF", err)
	}
	logCtx = logCtx.With("pageCount", len(pages))
	a.advance(ctx, logCtx, requestID, models.StatusUpdate{Status: models.StatusRasterized, PageCount: len(pages)})

	refs, err := a.publisher.Publish(ctx, requestID, pages)
	if err != nil {
		return nil, a.fail(ctx, logCtx, requestID, "failed to publish page images", err)
	}
	a.advance(ctx, logCtx, requestID, models.StatusUpdate{Status: models.StatusPublished})

	res, err := a.requester.Extract(ctx, refs)
	if err != nil {
		return nil, a.fail(ctx, logCtx, requestID, "extraction failed", err)
	}
	valid := res.SchemaValid
	a.advance(ctx, logCtx, requestID, models.StatusUpdate{Status: models.StatusExtracted, SchemaValid: &valid})

	logCtx.Info("Analysis complete.", "schemaValid", res.SchemaValid)
	return &Outcome{RequestID: requestID, PageCount: len(pages), Result: res}, nil
}

// MarkResponded records that the result was delivered.
func (a *Analyser) MarkResponded(ctx context.Context, requestID string) {
	a.advance(ctx, slog.With("requestId", requestID), requestID, models.StatusUpdate{Status: models.StatusResponded})
}

// fail classifies err, records FAILED and returns the classified error. A
// deadline hit outside the chat call becomes a TimeoutError.
func (a *Analyser) fail(ctx context.Context, logCtx *slog.Logger, requestID, message string, err error) error {
	if ctx.Err() != nil && apperr.KindOf(err) != apperr.KindLLM && apperr.KindOf(err) != apperr.KindTimeout {
		err = apperr.Timeout("analyse", fmt.Errorf("%s: %w", message, errors.Join(ctx.Err(), err)))
	}
	kind := apperr.KindOf(err)
	logCtx.Error(message, "kind", kind, "error", err)
	a.advance(ctx, logCtx, requestID, models.StatusUpdate{
		Status:       models.StatusFailed,
		ErrorKind:    string(kind),
		ErrorDetails: fmt.Sprintf("%s: %v", message, err),
	})
	return err
}

func (a *Analyser) advance(ctx context.Context, logCtx *slog.Logger, requestID string, u models.StatusUpdate) {
	a.track(ctx, logCtx, func(ctx context.Context) error {
		return a.tracker.Advance(ctx, requestID, u)
	})
}

// track runs a tracker call detached from the request deadline so that a
// timed-out request can still be marked FAILED. Tracking errors never change
// the outcome.
func (a *Analyser) track(ctx context.Context, logCtx *slog.Logger, fn func(context.Context) error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := fn(tctx); err != nil {
		logCtx.Error("CRITICAL: Failed to update analysis record.", "error", err)
	}
}
