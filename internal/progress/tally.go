// Package progress tracks capture outcomes for one run.
package progress

import (
	"sync"
	"time"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Summary is a point-in-time view of a run.
type Summary struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	URLs            int            `json:"urls"`
	Attempted       int            `json:"attempted"`
	Succeeded       int            `json:"succeeded"`
	RenderMiss      int            `json:"render_miss"`
	StorageFailure  int            `json:"storage_failure"`
	MetadataFailure int            `json:"metadata_failure"`
	BySize          map[string]int `json:"succeeded_by_size"`
}

// RenderMissRate is RenderMiss / Attempted, or 0 before any attempt.
func (s Summary) RenderMissRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.RenderMiss) / float64(s.Attempted)
}

// Failed is the number of attempted tasks that did not succeed.
func (s Summary) Failed() int {
	return s.RenderMiss + s.StorageFailure + s.MetadataFailure
}

// Tally aggregates Results. It is safe for concurrent use.
type Tally struct {
	mu      sync.RWMutex
	summary Summary
}

// NewTally starts a tally for runID at startedAt.
func NewTally(runID string, startedAt time.Time) *Tally {
	return &Tally{summary: Summary{
		RunID:     runID,
		StartedAt: startedAt,
		BySize:    make(map[string]int),
	}}
}

// AddURL counts one URL taken from the source.
func (t *Tally) AddURL() {
	t.mu.Lock()
	t.summary.URLs++
	t.mu.Unlock()
}

// Record counts one finished task.
func (t *Tally) Record(res screenshot.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Attempted++
	if res.OK() {
		t.summary.Succeeded++
		t.summary.BySize[res.Task.Size.String()]++
		return
	}
	switch screenshot.KindOf(res.Err) {
	case screenshot.KindRenderMiss:
		t.summary.RenderMiss++
	case screenshot.KindStorageFailure:
		t.summary.StorageFailure++
	case screenshot.KindMetadataFailure:
		t.summary.MetadataFailure++
	}
}

// Finish stamps the end time.
func (t *Tally) Finish(at time.Time) {
	t.mu.Lock()
	t.summary.FinishedAt = &at
	t.mu.Unlock()
}

// Snapshot returns a copy of the current summary.
func (t *Tally) Snapshot() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.summary
	out.BySize = make(map[string]int, len(t.summary.BySize))
	for k, v := range t.summary.BySize {
		out.BySize[k] = v
	}
	if t.summary.FinishedAt != nil {
		finished := *t.summary.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
