// Package memory provides a bounded in-process task queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/webscreenshot/internal/queue"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan screenshot.Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan screenshot.Task, capacity),
	}
}

// Enqueue pushes a task into the queue, blocking while it is full.
func (q *Queue) Enqueue(ctx context.Context, task screenshot.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task. Buffered tasks are still delivered after Close;
// queue.ErrClosed is returned once the queue is drained.
func (q *Queue) Dequeue(ctx context.Context) (screenshot.Task, error) {
	select {
	case <-ctx.Done():
		return screenshot.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return screenshot.Task{}, queue.ErrClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}
