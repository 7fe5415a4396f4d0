// Package dispatcher feeds (url, size) tasks to a pool of workers.
package dispatcher

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/queue"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
	"github.com/JakeFAU/webscreenshot/internal/worker"
)

// Dispatcher expands URLs into tasks and fans them out to workers.
type Dispatcher struct {
	queue   queue.TaskQueue
	workers []*worker.Worker
	sizes   []screenshot.Size
	onURL   func(url string)
	logger  *zap.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithURLHook calls fn for every URL before its tasks are queued.
func WithURLHook(fn func(url string)) Option {
	return func(d *Dispatcher) { d.onURL = fn }
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher.
func New(q queue.TaskQueue, workers []*worker.Worker, sizes []screenshot.Size, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   q,
		workers: workers,
		sizes:   append([]screenshot.Size(nil), sizes...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts the workers, queues one task per (url, size) in source order,
// closes the queue and waits for every worker to finish. It returns an error
// only when ctx ends before all tasks were queued.
func (d *Dispatcher) Run(ctx context.Context, urls iter.Seq[string]) error {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}

	err := d.feed(ctx, urls)
	d.queue.Close()
	wg.Wait()
	return err
}

func (d *Dispatcher) feed(ctx context.Context, urls iter.Seq[string]) error {
	queued := 0
	for url := range urls {
		if d.onURL != nil {
			d.onURL(url)
		}
		for _, size := range d.sizes {
			if err := d.queue.Enqueue(ctx, screenshot.Task{URL: url, Size: size}); err != nil {
				d.logger.Warn("stopped queueing tasks", zap.Int("queued", queued), zap.Error(err))
				return fmt.Errorf("queue enqueue: %w", err)
			}
			queued++
		}
	}
	d.logger.Debug("all tasks queued", zap.Int("queued", queued))
	return nil
}
