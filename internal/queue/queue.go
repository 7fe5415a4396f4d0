// Package queue defines the task queue shared by the dispatcher and workers.
package queue

import (
	"context"
	"errors"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// TaskQueue carries capture tasks from one producer to many consumers.
// Only the producer may call Close.
type TaskQueue interface {
	Enqueue(ctx context.Context, task screenshot.Task) error
	Dequeue(ctx context.Context) (screenshot.Task, error)
	Close()
}
