package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/extract/extracttest"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
	reads   int
}

func (m *memObjects) Reader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) SaveAtomically(_ context.Context, bucket, object, _ string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	key := bucket + "/" + object
	if _, ok := m.objects[key]; ok {
		return nil
	}
	m.objects[key] = content
	return nil
}

func newUploaded(t *testing.T, objects *memObjects, chat *extracttest.Chat) (*UploadedFunction, string) {
	t.Helper()
	tmp := t.TempDir()
	a := NewAnalyser(&fakeRasterizer{pages: 2}, publish.Inline{}, newTestRequester(chat), nil)
	return NewUploadedFunction(a, objects, UploadedConfig{ResultsBucket: "results", TempDir: tmp}), tmp
}

func TestUploadedSavesResultNextToObjectName(t *testing.T) {
	objects := &memObjects{objects: map[string][]byte{"incoming/quotes/q1.pdf": []byte("%PDF-1.4 quote")}}
	f, tmp := newUploaded(t, objects, &extracttest.Chat{Responses: []string{validAnswer}})

	out, err := f.Process(context.Background(), models.GCSEvent{Bucket: "incoming", Name: "quotes/q1.pdf"})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "gs://results/quotes/q1.pdf.json", out.OutputGCSUri)
	assert.Equal(t, "RESPONDED", out.Status)
	assert.Equal(t, validAnswer, string(objects.objects["results/quotes/q1.pdf.json"]))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadedSkipsNonPDFObjects(t *testing.T) {
	objects := &memObjects{objects: map[string][]byte{}}
	chat := &extracttest.Chat{}
	f, _ := newUploaded(t, objects, chat)

	out, err := f.Process(context.Background(), models.GCSEvent{Bucket: "incoming", Name: "notes.txt"})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, objects.reads)
	assert.Equal(t, 0, chat.Calls())
}

func TestUploadedDownloadFailureIsStorageError(t *testing.T) {
	f, _ := newUploaded(t, &memObjects{objects: map[string][]byte{}}, &extracttest.Chat{})

	_, err := f.Process(context.Background(), models.GCSEvent{Bucket: "incoming", Name: "missing.pdf"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}

func TestUploadedSaveFailureIsStorageError(t *testing.T) {
	objects := &memObjects{
		objects: map[string][]byte{"incoming/q.PDF": []byte("%PDF-1.4")},
		saveErr: errors.New("bucket gone"),
	}
	f, _ := newUploaded(t, objects, &extracttest.Chat{Responses: []string{validAnswer}})

	_, err := f.Process(context.Background(), models.GCSEvent{Bucket: "incoming", Name: "q.PDF"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}

func TestResultObjectName(t *testing.T) {
	assert.Equal(t, "a/b.pdf.json", ResultObjectName("a/b.pdf"))
}
