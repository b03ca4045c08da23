package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/rasterize"
	"github.com/Lllllllleong/pricingextractor/internal/retry"
	"golang.org/x/sync/errgroup"
)

// ErrObjectExists is returned by a BlobStore when the target name is taken.
var ErrObjectExists = errors.New("object already exists")

// BlobStore is the storage the remote strategy uploads to.
type BlobStore interface {
	// Upload must fail with ErrObjectExists rather than overwrite.
	Upload(ctx context.Context, name, contentType string, data []byte) error
	SignedURL(name string, expiry time.Duration) (string, error)
	// URI is the store-native address of name, e.g. gs://bucket/name.
	URI(name string) string
}

type RemoteOptions struct {
	Prefix      string
	URLExpiry   time.Duration
	SignURLs    bool
	Concurrency int
	Retry       retry.Policy
}

// Remote uploads each page and hands out read-only URLs.
type Remote struct {
	store BlobStore
	opts  RemoteOptions
	now   func() time.Time
}

func NewRemote(store BlobStore, opts RemoteOptions) *Remote {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 5 * time.Minute
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	return &Remote{store: store, opts: opts, now: time.Now}
}

func (r *Remote) Mode() Mode { return ModeRemote }

// ObjectName is where a page of a request is stored. The namespace keeps
// concurrent requests from colliding.
func (r *Remote) ObjectName(namespace string, p rasterize.Page) string {
	return path.Join(r.opts.Prefix, namespace, p.Name())
}

func (r *Remote) Publish(ctx context.Context, namespace string, pages []rasterize.Page) ([]Reference, error) {
	if namespace == "" {
		return nil, fmt.Errorf("remote publishing needs a namespace")
	}
	logCtx := slog.With("namespace", namespace, "pageCount", len(pages))
	logCtx.Info("Starting concurrent upload of pages.")

	refs := make([]Reference, len(pages))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.opts.Concurrency)

	for i, page := range pages {
		eg.Go(func() error {
			ref, err := r.publishPage(gctx, namespace, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", page.Index, err)
			}
			refs[i] = ref
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("One or more pages failed to publish.", "error", err)
		if ctx.Err() != nil {
			return nil, apperr.Timeout("publish", fmt.Errorf("%w (%v)", ctx.Err(), err))
		}
		return nil, apperr.Storage("publish", err)
	}
	logCtx.Info("All pages published.")
	return refs, nil
}

func (r *Remote) publishPage(ctx context.Context, namespace string, page rasterize.Page) (Reference, error) {
	name := r.ObjectName(namespace, page)

	attempt := 0
	err := retry.Do(ctx, r.opts.Retry, "upload "+name, func(err error) bool {
		return !errors.Is(err, ErrObjectExists)
	}, func(ctx context.Context) error {
		attempt++
		err := r.store.Upload(ctx, name, PNGMIMEType, page.PNG)
		if errors.Is(err, ErrObjectExists) && attempt > 1 {
			// Only this request writes under its namespace, so a taken name on
			// a retry means an earlier attempt landed.
			slog.Warn("Object exists after retry; treating earlier attempt as committed.", "object", name)
			return nil
		}
		return err
	})
	if err != nil {
		return Reference{}, err
	}

	ref := Reference{PageIndex: page.Index, MIMEType: PNGMIMEType}
	if !r.opts.SignURLs {
		ref.URI = r.store.URI(name)
		return ref, nil
	}

	expiresAt := r.now().Add(r.opts.URLExpiry)
	url, err := r.store.SignedURL(name, r.opts.URLExpiry)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to sign URL for %s: %w", name, err)
	}
	ref.URI = url
	ref.ExpiresAt = expiresAt
	return ref, nil
}
