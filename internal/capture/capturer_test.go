package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/webscreenshot/internal/hash/md5"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

var (
	fixedNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	small    = screenshot.Size{Width: 360, Height: 640}
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

// fakeRenderer writes content for URLs listed in pages and nothing otherwise.
type fakeRenderer struct {
	pages map[string]string
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, task screenshot.Task, outputPath string) error {
	r.calls++
	if content, ok := r.pages[task.URL]; ok {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
			return err
		}
		if err := os.WriteFile(outputPath, []byte(content), 0o600); err != nil {
			return err
		}
	}
	return r.err
}

func (r *fakeRenderer) Identity() string { return "fake-renderer" }

type fakeObjects struct {
	mu        sync.Mutex
	putErr    error
	publicErr error
	objects   map[string]string
	public    []string
}

func (f *fakeObjects) PutObject(_ context.Context, key, contentType string, body io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	if contentType != "image/png" {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = string(data)
	return nil
}

func (f *fakeObjects) MakePublic(_ context.Context, key string) (string, error) {
	if f.publicErr != nil {
		return "", f.publicErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.public = append(f.public, key)
	return "http://bucket.example/" + key, nil
}

type fakeRecords struct {
	err     error
	records []screenshot.Record
}

func (f *fakeRecords) PutRecord(_ context.Context, rec screenshot.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakePublisher struct {
	err      error
	payloads []any
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.payloads = append(p.payloads, payload)
	return "id", p.err
}

type fakeThrottle struct{ err error }

func (t fakeThrottle) Wait(context.Context, string) error { return t.err }

type fixture struct {
	renderer  *fakeRenderer
	objects   *fakeObjects
	records   *fakeRecords
	publisher *fakePublisher
	scratch   string
	cfg       Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		renderer:  &fakeRenderer{pages: map[string]string{"https://ok.example/": "png-data"}},
		objects:   &fakeObjects{},
		records:   &fakeRecords{},
		publisher: &fakePublisher{},
		scratch:   t.TempDir(),
	}
	f.cfg = Config{
		Renderer:   f.renderer,
		Objects:    f.objects,
		Records:    f.records,
		Hasher:     md5.New(),
		Clock:      fixedClock{},
		ScratchDir: f.scratch,
		RunID:      "run-1",
	}
	return f
}

func (f *fixture) capturer(t *testing.T) *Capturer {
	t.Helper()
	c, err := New(f.cfg)
	require.NoError(t, err)
	return c
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return err
	})
	require.NoError(t, err)
	return files
}

func TestCaptureSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.cfg.Publisher = f.publisher
	f.cfg.Topic = "screenshots"

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)

	wantKey := "360x640/" + mustHash(t, "https://ok.example/") + ".png"
	assert.Equal(t, "png-data", f.objects.objects[wantKey])
	assert.Equal(t, []string{wantKey}, f.objects.public)

	require.Len(t, f.records.records, 1)
	assert.Equal(t, screenshot.Record{
		SourceURL:        "https://ok.example/",
		Size:             small,
		PublicURL:        "http://bucket.example/" + wantKey,
		RendererIdentity: "fake-renderer",
		CreatedAt:        fixedNow,
	}, f.records.records[0])
	assert.Equal(t, f.records.records[0], res.Record)

	require.Len(t, f.publisher.payloads, 1)
	note, ok := f.publisher.payloads[0].(Notification)
	require.True(t, ok)
	assert.Equal(t, EventScreenshotCreated, note.Event)
	assert.Equal(t, "run-1", note.RunID)

	assert.Empty(t, scratchFiles(t, f.scratch), "local artifact must be removed after upload")
}

func TestCaptureRenderMissWritesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://broken.example/", Size: small})
	require.False(t, res.OK())
	assert.Equal(t, screenshot.KindRenderMiss, res.Err.Kind)
	assert.ErrorIs(t, res.Err, screenshot.ErrNoOutput)
	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.records.records)
}

func TestCaptureEmptyFileIsRenderMiss(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.renderer.pages["https://empty.example/"] = ""

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://empty.example/", Size: small})
	require.False(t, res.OK())
	assert.Equal(t, screenshot.KindRenderMiss, res.Err.Kind)
	assert.Empty(t, scratchFiles(t, f.scratch))
}

func TestCaptureTimeoutIsRenderMissEvenWithPartialFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.renderer.err = fmt.Errorf("renderer timed out: %w", context.DeadlineExceeded)

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	require.False(t, res.OK())
	assert.Equal(t, screenshot.KindRenderMiss, res.Err.Kind)
	assert.Empty(t, f.objects.objects)
	assert.Empty(t, scratchFiles(t, f.scratch))
}

func TestCaptureRendererErrorWithOutputSucceeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.renderer.err = errors.New("exit status 1")

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	assert.True(t, res.OK())
}

func TestCaptureStorageFailureWritesNoRecord(t *testing.T) {
	t.Parallel()

	for name, objects := range map[string]*fakeObjects{
		"put":         {putErr: errors.New("bucket gone")},
		"make public": {publicErr: errors.New("acl denied")},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Objects = objects

			res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
			require.False(t, res.OK())
			assert.Equal(t, screenshot.KindStorageFailure, res.Err.Kind)
			assert.Empty(t, f.records.records)
			assert.Empty(t, scratchFiles(t, f.scratch))
		})
	}
}

func TestCaptureMetadataFailureKeepsObject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.records.err = errors.New("datastore unavailable")
	f.cfg.Publisher = f.publisher
	f.cfg.Topic = "screenshots"

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	require.False(t, res.OK())
	assert.Equal(t, screenshot.KindMetadataFailure, res.Err.Kind)
	assert.Len(t, f.objects.objects, 1)
	assert.Empty(t, f.publisher.payloads, "no notification without a record")
}

func TestCapturePublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("topic missing")
	f.cfg.Publisher = f.publisher
	f.cfg.Topic = "screenshots"

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	assert.True(t, res.OK())
	assert.Len(t, f.records.records, 1)
}

func TestCaptureThrottleErrorIsRenderMiss(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.cfg.Throttle = fakeThrottle{err: context.Canceled}

	res := f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://ok.example/", Size: small})
	require.False(t, res.OK())
	assert.Equal(t, screenshot.KindRenderMiss, res.Err.Kind)
	assert.Zero(t, f.renderer.calls)
}

func TestCaptureFailureIsolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.capturer(t)
	ctx := context.Background()

	bad := c.Capture(ctx, screenshot.Task{URL: "https://broken.example/", Size: small})
	good := c.Capture(ctx, screenshot.Task{URL: "https://ok.example/", Size: small})

	assert.False(t, bad.OK())
	assert.True(t, good.OK())
	assert.Len(t, f.records.records, 1)
}

func TestCaptureLogsRenderMissAtWarn(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(t)
	f.cfg.Logger = zap.New(core)

	f.capturer(t).Capture(context.Background(), screenshot.Task{URL: "https://broken.example/", Size: small})

	entries := logs.FilterMessage("no screenshot created").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "https://broken.example/", entries[0].ContextMap()["url"])
	assert.Equal(t, "360x640", entries[0].ContextMap()["size"])
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := map[string]func(*Config){
		"renderer": func(c *Config) { c.Renderer = nil },
		"objects":  func(c *Config) { c.Objects = nil },
		"records":  func(c *Config) { c.Records = nil },
		"hasher":   func(c *Config) { c.Hasher = nil },
		"clock":    func(c *Config) { c.Clock = nil },
		"scratch":  func(c *Config) { c.ScratchDir = "" },
	}
	for name, mutate := range cases {
		cfg := f.cfg
		mutate(&cfg)
		_, err := New(cfg)
		assert.Error(t, err, name)
	}
}

func mustHash(t *testing.T, s string) string {
	t.Helper()
	h, err := md5.New().Hash([]byte(s))
	require.NoError(t, err)
	return h
}
