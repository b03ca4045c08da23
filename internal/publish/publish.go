// Package publish makes rendered pages reachable by the chat model, either
// inline in the request or as time-limited URLs to uploaded objects.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/rasterize"
)

const PNGMIMEType = "image/png"

// Mode selects the publishing strategy.
type Mode string

const (
	ModeInline Mode = "inline"
	ModeRemote Mode = "remote"
)

// Reference points the chat model at one page image. Exactly one of Data or
// URI is set.
type Reference struct {
	PageIndex int
	MIMEType  string
	Data      []byte
	URI       string
	// ExpiresAt is zero for inline data and gs:// URIs.
	ExpiresAt time.Time
}

// Inline reports whether the image bytes travel in the request itself.
func (r Reference) Inline() bool { return r.URI == "" }

// Publisher turns pages into references. The returned slice has the same
// length and order as pages, or the call fails as a whole.
type Publisher interface {
	Publish(ctx context.Context, namespace string, pages []rasterize.Page) ([]Reference, error)
	Mode() Mode
}

// Inline embeds the PNG bytes of each page.
type Inline struct{}

func (Inline) Mode() Mode { return ModeInline }

func (Inline) Publish(ctx context.Context, _ string, pages []rasterize.Page) ([]Reference, error) {
	refs := make([]Reference, len(pages))
	for i, p := range pages {
		refs[i] = Reference{
			PageIndex: p.Index,
			MIMEType:  PNGMIMEType,
			Data:      p.PNG,
		}
	}
	return refs, nil
}

// New returns the publisher for mode. store and opts are only used by the
// remote strategy.
func New(mode Mode, store BlobStore, opts RemoteOptions) (Publisher, error) {
	switch mode {
	case ModeInline:
		return Inline{}, nil
	case ModeRemote:
		if store == nil {
			return nil, fmt.Errorf("remote publishing needs a blob store")
		}
		return NewRemote(store, opts), nil
	default:
		return nil, fmt.Errorf("unknown publish mode %q", mode)
	}
}
