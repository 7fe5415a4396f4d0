// Package worker implements the capture loop run by each pool member.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/metrics"
	"github.com/JakeFAU/webscreenshot/internal/queue"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Capturer processes a single task.
type Capturer interface {
	Capture(ctx context.Context, task screenshot.Task) screenshot.Result
}

// Recorder receives every finished task's result.
type Recorder interface {
	Record(result screenshot.Result)
}

// Worker consumes tasks until the queue is closed or the context ends.
type Worker struct {
	queue    queue.TaskQueue
	capturer Capturer
	recorder Recorder
	logger   *zap.Logger
}

// New constructs a Worker. recorder may be nil.
func New(q queue.TaskQueue, capturer Capturer, recorder Recorder, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		queue:    q,
		capturer: capturer,
		recorder: recorder,
		logger:   logger,
	}
}

// Run blocks, consuming tasks until the queue is drained or ctx finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task screenshot.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	w.logger.Debug("dequeued task", zap.String("url", task.URL), zap.Stringer("size", task.Size))
	result := w.capturer.Capture(ctx, task)
	if w.recorder != nil {
		w.recorder.Record(result)
	}
}
