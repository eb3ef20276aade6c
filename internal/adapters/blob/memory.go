// Package blob provides upload.ObjectStore implementations.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/okian/postflow/internal/domain/upload"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
	// broken holds urls whose Resolve must fail even if stored.
	broken map[string]bool
}

var _ upload.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose urls are baseURL + "/" + path.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]object),
		broken:  make(map[string]bool),
	}
}

func (s *MemoryStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	const op = "blob.memory.put"

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.objects[path] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return publicURL(s.baseURL, path), nil
}

func (s *MemoryStore) Resolve(ctx context.Context, url string) error {
	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.broken[url] {
		return fmt.Errorf("blob.memory.resolve: %s: %w", url, upload.ErrObjectNotFound)
	}
	if _, ok := s.objects[path]; !ok {
		return fmt.Errorf("blob.memory.resolve: %s: %w", url, upload.ErrObjectNotFound)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

// Open returns the stored bytes of url.
func (s *MemoryStore) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("blob.memory.open: %s: %w", url, upload.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

// ContentType returns the stored content type of url, if any.
func (s *MemoryStore) ContentType(url string) (string, bool) {
	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[path]
	return o.contentType, ok
}

// BreakResolve makes later Resolve calls for url fail.
func (s *MemoryStore) BreakResolve(url string) {
	s.mu.Lock()
	s.broken[url] = true
	s.mu.Unlock()
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func publicURL(baseURL, path string) string { return baseURL + "/" + path }

func pathOf(baseURL, url string) (string, error) {
	path, ok := strings.CutPrefix(url, baseURL+"/")
	if !ok || path == "" {
		return "", fmt.Errorf("%s: %w", url, upload.ErrForeignLocation)
	}
	return path, nil
}
