package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multiPagePDF builds a PDF whose page i is 200+20*i points wide, so the
// rendered widths reveal the page order.
func multiPagePDF(t *testing.T, n int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < n; i++ {
		doc.AddPageFormat("P", fpdf.SizeType{Wd: float64(200 + 20*i), Ht: 400})
		doc.Text(20, 40, fmt.Sprintf("Invoice page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func assertPageOrder(t *testing.T, pages []Page, n int) {
	t.Helper()
	require.Len(t, pages, n)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.InDelta(t, 200+20*i, p.Width, 2, "page %d width", i)

		cfg, err := png.DecodeConfig(bytes.NewReader(p.PNG))
		require.NoError(t, err, "page %d is not a PNG", i)
		assert.Equal(t, p.Width, cfg.Width)
		assert.Equal(t, p.Height, cfg.Height)
	}
}

func TestRasterizeProducesOnePagePerSourcePageInOrder(t *testing.T) {
	pdf := multiPagePDF(t, 4)

	pages, err := New(Options{DPI: 72}).Rasterize(context.Background(), pdf)
	require.NoError(t, err)
	assertPageOrder(t, pages, 4)
}

func TestRasterizeWithWorkersKeepsOrder(t *testing.T) {
	pdf := multiPagePDF(t, 5)

	pages, err := New(Options{DPI: 72, Workers: 3}).Rasterize(context.Background(), pdf)
	require.NoError(t, err)
	assertPageOrder(t, pages, 5)
}

func TestRasterizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, multiPagePDF(t, 2), 0o600))

	pages, err := New(Options{DPI: 72}).RasterizeFile(context.Background(), path)
	require.NoError(t, err)
	assertPageOrder(t, pages, 2)
}

func TestRasterizeRejectsNonPDF(t *testing.T) {
	_, err := New(Options{}).Rasterize(context.Background(), []byte("this is a text file"))

	require.Error(t, err)
	assert.Equal(t, apperr.KindDecode, apperr.KindOf(err))
}

func TestRasterizeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{DPI: 72}).Rasterize(ctx, multiPagePDF(t, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWritePages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	pages := []Page{{Index: 0, PNG: []byte("a")}, {Index: 1, PNG: []byte("b")}}

	paths, err := WritePages(dir, pages)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "page_0.png"), filepath.Join(dir, "page_1.png")}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}
