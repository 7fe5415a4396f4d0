package screenshot

import (
	"fmt"
	"time"
)

// Size is a target viewport in CSS pixels.
type Size struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// String formats the size as the storage sub-folder, e.g. "360x640".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// RenderArg formats the size the way rasterizers expect it, e.g. "360px*640px".
func (s Size) RenderArg() string {
	return fmt.Sprintf("%dpx*%dpx", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// DefaultSizes is the static size set: a narrow mobile-like viewport and a
// large desktop-like one.
func DefaultSizes() []Size {
	return []Size{
		{Width: 360, Height: 640},
		{Width: 1500, Height: 1500},
	}
}

// Task is a single (url, size) capture request.
type Task struct {
	URL  string
	Size Size
}

// Record is the metadata persisted for every stored screenshot. PublicURL is
// the primary key.
type Record struct {
	SourceURL        string    `json:"url"`
	Size             Size      `json:"size"`
	PublicURL        string    `json:"screenshot_url"`
	RendererIdentity string    `json:"user_agent"`
	CreatedAt        time.Time `json:"created"`
}

// Result is the outcome of one Task. Err is nil on success.
type Result struct {
	Task   Task
	Record Record
	Err    *CaptureError
}

// OK reports whether the task produced a stored object and a record.
func (r Result) OK() bool {
	return r.Err == nil
}
