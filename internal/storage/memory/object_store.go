// Package memory stores screenshots in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// ObjectStore keeps object bytes and public flags in maps.
type ObjectStore struct {
	mu         sync.RWMutex
	publicBase string
	data       map[string][]byte
	public     map[string]bool
	puts       int
}

// NewObjectStore creates an empty store. publicBase defaults to memory://objects.
func NewObjectStore(publicBase string) *ObjectStore {
	if publicBase == "" {
		publicBase = "memory://objects"
	}
	return &ObjectStore{
		publicBase: publicBase,
		data:       make(map[string][]byte),
		public:     make(map[string]bool),
	}
}

// PutObject stores a copy of body under key.
func (s *ObjectStore) PutObject(_ context.Context, key string, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	s.puts++
	return nil
}

// MakePublic flags key as public. The object must exist.
func (s *ObjectStore) MakePublic(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return "", fmt.Errorf("make %s public: object not found", key)
	}
	s.public[key] = true
	return screenshot.PublicURL(s.publicBase, key), nil
}

// Object returns the stored bytes and whether the key is public.
func (s *ObjectStore) Object(key string) (data []byte, public bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok = s.data[key]
	return append([]byte(nil), data...), s.public[key], ok
}

// Keys lists stored keys in sorted order.
func (s *ObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts reports how many PutObject calls succeeded.
func (s *ObjectStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
