package dispatcher

import (
	"context"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webscreenshot/internal/queue/memory"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
	"github.com/JakeFAU/webscreenshot/internal/worker"
)

var sizes = []screenshot.Size{{Width: 360, Height: 640}, {Width: 1500, Height: 1500}}

type recordingCapturer struct {
	mu    sync.Mutex
	tasks []string
	block chan struct{}
}

func (c *recordingCapturer) Capture(ctx context.Context, task screenshot.Task) screenshot.Result {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task.URL+"@"+task.Size.String())
	return screenshot.Result{Task: task}
}

func TestDispatcherRunsEveryPair(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	capturer := &recordingCapturer{}
	workers := []*worker.Worker{
		worker.New(q, capturer, nil, nil),
		worker.New(q, capturer, nil, nil),
		worker.New(q, capturer, nil, nil),
	}
	var seen []string
	d := New(q, workers, sizes, WithURLHook(func(u string) { seen = append(seen, u) }))

	err := d.Run(context.Background(), slices.Values([]string{"https://a/", "https://b/"}))
	require.NoError(t, err)

	got := append([]string(nil), capturer.tasks...)
	sort.Strings(got)
	assert.Equal(t, []string{
		"https://a/@1500x1500", "https://a/@360x640",
		"https://b/@1500x1500", "https://b/@360x640",
	}, got)
	assert.Equal(t, []string{"https://a/", "https://b/"}, seen)
}

func TestDispatcherEmptySource(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	capturer := &recordingCapturer{}
	d := New(q, []*worker.Worker{worker.New(q, capturer, nil, nil)}, sizes)

	require.NoError(t, d.Run(context.Background(), slices.Values([]string(nil))))
	assert.Empty(t, capturer.tasks)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(0)
	capturer := &recordingCapturer{block: make(chan struct{})}
	d := New(q, []*worker.Worker{worker.New(q, capturer, nil, nil)}, sizes)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx, slices.Values([]string{"https://a/", "https://b/", "https://c/"}))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
