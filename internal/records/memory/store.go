// Package memory keeps screenshot records in-memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// RecordStore is a map of records keyed by PublicURL.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]screenshot.Record
	writes  int
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]screenshot.Record)}
}

// PutRecord upserts record by its PublicURL.
func (s *RecordStore) PutRecord(_ context.Context, record screenshot.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.PublicURL] = record
	s.writes++
	return nil
}

// Get returns the record stored under publicURL.
func (s *RecordStore) Get(publicURL string) (screenshot.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[publicURL]
	return rec, ok
}

// Records returns all records ordered by PublicURL.
func (s *RecordStore) Records() []screenshot.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]screenshot.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublicURL < out[j].PublicURL })
	return out
}

// Writes reports the number of PutRecord calls, including overwrites.
func (s *RecordStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
