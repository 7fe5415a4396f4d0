// Package source produces the deduplicated, shuffled sequence of candidate
// URLs a run captures.
package source

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"
)

// SiteRecord is one entry of the external record set. URLs holds the
// candidate addresses in preference order; only the first non-empty one is
// captured.
type SiteRecord struct {
	Key  string
	URLs []string
}

// RecordFetcher loads the full external record set once per run.
type RecordFetcher interface {
	FetchRecords(ctx context.Context) ([]SiteRecord, error)
}

// SeenURLs is the per-run dedup set.
type SeenURLs map[string]struct{}

// Add marks url as seen and reports whether it was new.
func (s SeenURLs) Add(url string) bool {
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}

// ShuffleFunc permutes n elements through swap, matching rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Option configures a Source.
type Option func(*Source)

// WithShuffle overrides the random shuffle (tests use a fixed permutation).
func WithShuffle(fn ShuffleFunc) Option {
	return func(s *Source) {
		if fn != nil {
			s.shuffle = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Source yields candidate URLs for a single run. Create one per run; the
// dedup set lives as long as the Source.
type Source struct {
	fetcher RecordFetcher
	shuffle ShuffleFunc
	seen    SeenURLs
	logger  *zap.Logger
}

// New creates a Source reading from fetcher.
func New(fetcher RecordFetcher, opts ...Option) *Source {
	s := &Source{
		fetcher: fetcher,
		shuffle: rand.Shuffle,
		seen:    make(SeenURLs),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStatic creates a Source over an explicit URL list. Order is kept and
// duplicates are still dropped.
func NewStatic(urls []string, opts ...Option) *Source {
	records := make([]SiteRecord, 0, len(urls))
	for _, u := range urls {
		records = append(records, SiteRecord{Key: u, URLs: []string{u}})
	}
	opts = append([]Option{WithShuffle(func(int, func(i, j int)) {})}, opts...)
	return New(staticFetcher(records), opts...)
}

// URLs fetches the record set and returns a lazy sequence over the selected
// URLs. A fetch error is returned before any URL is produced.
func (s *Source) URLs(ctx context.Context) (iter.Seq[string], error) {
	s.logger.Info("getting url data")
	records, err := s.fetcher.FetchRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	s.shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	return func(yield func(string) bool) {
		count := 0
		defer func() {
			s.logger.Info("read urls from source", zap.Int("count", count), zap.Int("records", len(records)))
		}()
		for _, rec := range records {
			url := firstURL(rec.URLs)
			if url == "" {
				s.logger.Debug("no url for record", zap.String("key", rec.Key))
				continue
			}
			if !s.seen.Add(url) {
				s.logger.Debug("url already selected, skipping", zap.String("key", rec.Key), zap.String("url", url))
				continue
			}
			s.logger.Debug("selecting url", zap.String("key", rec.Key), zap.String("url", url))
			count++
			if !yield(url) {
				return
			}
		}
	}, nil
}

func firstURL(urls []string) string {
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

type staticFetcher []SiteRecord

func (f staticFetcher) FetchRecords(context.Context) ([]SiteRecord, error) {
	out := make([]SiteRecord, len(f))
	copy(out, f)
	return out, nil
}
