package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/queue"
	"github.com/JakeFAU/webscreenshot/internal/queue/memory"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

type fakeCapturer struct {
	mu    sync.Mutex
	tasks []screenshot.Task
	fail  map[string]bool
}

func (c *fakeCapturer) Capture(_ context.Context, task screenshot.Task) screenshot.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	if c.fail[task.URL] {
		return screenshot.Result{Task: task, Err: screenshot.NewCaptureError(screenshot.KindRenderMiss, task, screenshot.ErrNoOutput)}
	}
	return screenshot.Result{Task: task}
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []screenshot.Result
}

func (r *fakeRecorder) Record(res screenshot.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// flakyQueue fails its first Dequeue, then delegates.
type flakyQueue struct {
	queue.TaskQueue
	failed bool
}

func (q *flakyQueue) Dequeue(ctx context.Context) (screenshot.Task, error) {
	if !q.failed {
		q.failed = true
		return screenshot.Task{}, errors.New("transient")
	}
	return q.TaskQueue.Dequeue(ctx)
}

func TestWorkerDrainsQueueAndRecords(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	size := screenshot.Size{Width: 360, Height: 640}
	for _, u := range []string{"https://a/", "https://broken/", "https://c/"} {
		require.NoError(t, q.Enqueue(context.Background(), screenshot.Task{URL: u, Size: size}))
	}
	q.Close()

	capturer := &fakeCapturer{fail: map[string]bool{"https://broken/": true}}
	recorder := &fakeRecorder{}
	New(q, capturer, recorder, zap.NewNop()).Run(context.Background())

	require.Len(t, capturer.tasks, 3, "a failing task must not stop later tasks")
	require.Len(t, recorder.results, 3)
	assert.True(t, recorder.results[0].OK())
	assert.False(t, recorder.results[1].OK())
	assert.True(t, recorder.results[2].OK())
}

func TestWorkerContinuesAfterDequeueError(t *testing.T) {
	t.Parallel()

	inner := memory.NewQueue(1)
	require.NoError(t, inner.Enqueue(context.Background(), screenshot.Task{URL: "https://a/"}))
	inner.Close()

	capturer := &fakeCapturer{}
	New(&flakyQueue{TaskQueue: inner}, capturer, nil, nil).Run(context.Background())
	assert.Len(t, capturer.tasks, 1)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(q, &fakeCapturer{}, nil, nil).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
