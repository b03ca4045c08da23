// Package publishtest provides an in-memory BlobStore whose signed URLs are
// served by an httptest server and stop working once they expire.
package publishtest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/publish"
)

var signingKey = []byte("publishtest")

type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
	now     time.Time
	uploads int
	// FailOn makes the upload with this 1-based sequence number fail.
	FailOn  int
	FailErr error

	server *httptest.Server
}

// NewStore starts a store; call Close when done.
func NewStore() *Store {
	s := &Store{objects: map[string][]byte{}, now: time.Now()}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Store) Close() { s.server.Close() }

// Advance moves the store's clock, which decides URL expiry.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *Store) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func (s *Store) Objects() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.objects))
	for k, v := range s.objects {
		out[k] = v
	}
	return out
}

func (s *Store) Upload(ctx context.Context, name, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.FailOn > 0 && s.uploads == s.FailOn {
		if s.FailErr != nil {
			return s.FailErr
		}
		return fmt.Errorf("simulated storage outage on upload %d", s.uploads)
	}
	if _, ok := s.objects[name]; ok {
		return publish.ErrObjectExists
	}
	s.objects[name] = append([]byte(nil), data...)
	return nil
}

func (s *Store) SignedURL(name string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	expires := s.now.Add(expiry).UnixNano()
	s.mu.Unlock()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", sign(name, expires))
	return s.server.URL + "/" + name + "?" + q.Encode(), nil
}

func (s *Store) URI(name string) string { return "mem://" + name }

func sign(name string, expires int64) string {
	mac := hmac.New(sha256.New, signingKey)
	fmt.Fprintf(mac, "%s|%d", name, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "read-only", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil || !hmac.Equal([]byte(sign(name, expires)), []byte(r.URL.Query().Get("sig"))) {
		http.Error(w, "bad signature", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	now := s.now
	data, ok := s.objects[name]
	s.mu.Unlock()

	if now.UnixNano() >= expires {
		http.Error(w, "expired", http.StatusForbidden)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", publish.PNGMIMEType)
	w.Write(data)
}
