package screenshot

import (
	"errors"
	"fmt"
)

// ErrorKind tags the stage at which a capture failed.
type ErrorKind string

// Capture failure kinds.
const (
	KindRenderMiss      ErrorKind = "render_miss"
	KindStorageFailure  ErrorKind = "storage_failure"
	KindMetadataFailure ErrorKind = "metadata_failure"
)

// ErrNoOutput is used when a renderer returned without producing a file.
var ErrNoOutput = errors.New("no screenshot created")

// CaptureError is the per-task failure value. It never aborts a run.
type CaptureError struct {
	Kind ErrorKind
	Task Task
	Err  error
}

// NewCaptureError wraps err for the given task and kind.
func NewCaptureError(kind ErrorKind, task Task, err error) *CaptureError {
	return &CaptureError{Kind: kind, Task: task, Err: err}
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: size=%s url=%q: %v", e.Kind, e.Task.Size, e.Task.URL, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a wrapped *CaptureError, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
