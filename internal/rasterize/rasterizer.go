// Package rasterize renders the pages of a PDF to PNG images in document order.
package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

const DefaultDPI = 150

// Page is one rendered page. Index is 0-based and follows source page order.
type Page struct {
	Index  int
	PNG    []byte
	Width  int
	Height int
}

// Name is the object/file name used for the page image.
func (p Page) Name() string {
	return fmt.Sprintf("page_%d.png", p.Index)
}

type Options struct {
	DPI     float64
	Workers int
}

type Rasterizer struct {
	opts Options
}

func New(opts Options) *Rasterizer {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Rasterizer{opts: opts}
}

// RasterizeFile renders the PDF at path.
func (r *Rasterizer) RasterizeFile(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	if err := validate(f); err != nil {
		return nil, err
	}
	return r.render(ctx, func() (*fitz.Document, error) { return fitz.New(path) })
}

// Rasterize renders an in-memory PDF.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]Page, error) {
	if err := validate(bytes.NewReader(pdf)); err != nil {
		return nil, err
	}
	return r.render(ctx, func() (*fitz.Document, error) { return fitz.NewFromMemory(pdf) })
}

// validate runs pdfcpu's relaxed validation so that garbage is rejected as a
// decode error before the renderer sees it.
func validate(rs io.ReadSeeker) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(rs, conf); err != nil {
		return apperr.Decode("rasterize.validate", fmt.Errorf("not a readable PDF: %w", err))
	}
	return nil
}

func (r *Rasterizer) render(ctx context.Context, open func() (*fitz.Document, error)) ([]Page, error) {
	doc, err := open()
	if err != nil {
		return nil, apperr.Decode("rasterize.open", fmt.Errorf("failed to open PDF: %w", err))
	}
	pageCount := doc.NumPage()
	if pageCount == 0 {
		doc.Close()
		return nil, apperr.Decode("rasterize.open", fmt.Errorf("PDF has no pages"))
	}

	pages := make([]Page, pageCount)
	workers := min(r.opts.Workers, pageCount)
	if workers == 1 {
		defer doc.Close()
		if err := r.renderShard(ctx, doc, pages, 0, 1); err != nil {
			return nil, err
		}
		return pages, nil
	}
	doc.Close()

	// A fitz document serialises all calls on one lock, so each worker opens
	// its own and renders every workers-th page.
	eg, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		offset := w
		eg.Go(func() error {
			wdoc, err := open()
			if err != nil {
				return apperr.Decode("rasterize.open", fmt.Errorf("failed to open PDF: %w", err))
			}
			defer wdoc.Close()
			return r.renderShard(gctx, wdoc, pages, offset, workers)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	slog.Debug("PDF rasterized.", "pageCount", pageCount, "workers", workers, "dpi", r.opts.DPI)
	return pages, nil
}

// renderShard fills pages[offset], pages[offset+stride], ...
func (r *Rasterizer) renderShard(ctx context.Context, doc *fitz.Document, pages []Page, offset, stride int) error {
	for i := offset; i < len(pages); i += stride {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImageDPI(i, r.opts.DPI)
		if err != nil {
			return apperr.Decode("rasterize.render", fmt.Errorf("failed to render page %d: %w", i, err))
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("failed to encode page %d as PNG: %w", i, err)
		}
		bounds := img.Bounds()
		pages[i] = Page{
			Index:  i,
			PNG:    buf.Bytes(),
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		}
	}
	return nil
}

// WritePages writes each page to dir as page_<n>.png. It is meant for local
// inspection; the request path never touches disk for page images.
func WritePages(dir string, pages []Page) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(pages))
	for _, p := range pages {
		path := filepath.Join(dir, p.Name())
		if err := os.WriteFile(path, p.PNG, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
