// Package upload spools an uploaded PDF into a private temp directory that is
// removed when the request is done, whatever the outcome.
package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
)

// ErrTooLarge is returned when the upload exceeds the size limit.
var ErrTooLarge = errors.New("uploaded file exceeds the size limit")

var pdfMagic = []byte("%PDF-")

// Document is a request-scoped copy of an uploaded PDF.
type Document struct {
	Filename string
	Size     int64
	Hash     string

	dir  string
	path string
}

// Spool copies r into a new temp directory under root (the OS temp dir when
// root is empty), hashing it on the way. maxBytes <= 0 disables the limit.
// The caller must Close the returned Document.
func Spool(r io.Reader, root, filename string, maxBytes int64) (doc *Document, err error) {
	dir, err := os.MkdirTemp(root, "pdf-analyse-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	path := filepath.Join(dir, "source.pdf")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file at %s: %w", path, err)
	}
	defer f.Close()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hash), src)
	if err != nil {
		return nil, apperr.Request("upload.Spool", fmt.Errorf("failed to read upload: %w", err))
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, apperr.Request("upload.Spool", ErrTooLarge)
	}
	if n == 0 {
		return nil, apperr.Request("upload.Spool", errors.New("uploaded file is empty"))
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize temp file: %w", err)
	}

	return &Document{
		Filename: filename,
		Size:     n,
		Hash:     hex.EncodeToString(hash.Sum(nil)),
		dir:      dir,
		path:     path,
	}, nil
}

// Path is the location of the spooled PDF.
func (d *Document) Path() string { return d.path }

// Dir is the temp directory owned by the document.
func (d *Document) Dir() string { return d.dir }

// LooksLikePDF reports whether the file starts with the PDF header.
func (d *Document) LooksLikePDF() (bool, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.Contains(head[:n], pdfMagic), nil
}

// Close removes the temp directory. It is safe to call more than once.
func (d *Document) Close() error {
	if d == nil || d.dir == "" {
		return nil
	}
	err := os.RemoveAll(d.dir)
	d.dir = ""
	return err
}
