// Package capture runs the render, upload and record steps for one
// (url, size) task.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/metrics"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// DefaultContentType is the MIME type of stored screenshots.
const DefaultContentType = "image/png"

// EventScreenshotCreated is the notification event name.
const EventScreenshotCreated = "screenshot.created"

// Notification is published after a record has been written.
type Notification struct {
	Event  string            `json:"event"`
	RunID  string            `json:"run_id"`
	Record screenshot.Record `json:"record"`
}

// Config holds the dependencies of a Capturer. Throttle and Publisher are optional.
type Config struct {
	Renderer    screenshot.Renderer
	Objects     screenshot.ObjectStore
	Records     screenshot.RecordStore
	Hasher      screenshot.Hasher
	Clock       screenshot.Clock
	Throttle    screenshot.Throttle
	Publisher   screenshot.Publisher
	Topic       string
	ScratchDir  string
	ContentType string
	RunID       string
	Logger      *zap.Logger
}

// Capturer processes tasks. It is safe for concurrent use when its
// dependencies are.
type Capturer struct {
	cfg       Config
	addresser screenshot.Addresser
	logger    *zap.Logger
}

// New validates cfg and returns a Capturer.
func New(cfg Config) (*Capturer, error) {
	switch {
	case cfg.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case cfg.Objects == nil:
		return nil, fmt.Errorf("object store is required")
	case cfg.Records == nil:
		return nil, fmt.Errorf("record store is required")
	case cfg.Hasher == nil:
		return nil, fmt.Errorf("hasher is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case cfg.ScratchDir == "":
		return nil, fmt.Errorf("scratch directory is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Capturer{cfg: cfg, addresser: screenshot.NewAddresser(cfg.Hasher), logger: logger}, nil
}

// Capture renders task, uploads the image, makes it public and writes its
// record. No record is written unless the object is stored and public.
func (c *Capturer) Capture(ctx context.Context, task screenshot.Task) screenshot.Result {
	logger := c.logger.With(zap.String("url", task.URL), zap.Stringer("size", task.Size))
	result := c.capture(ctx, task, logger)

	outcome := metrics.OutcomeSuccess
	if !result.OK() {
		outcome = string(screenshot.KindOf(result.Err))
	}
	metrics.ObserveCapture(task.Size.String(), outcome)
	return result
}

func (c *Capturer) capture(ctx context.Context, task screenshot.Task, logger *zap.Logger) screenshot.Result {
	fail := func(kind screenshot.ErrorKind, err error) screenshot.Result {
		ce := screenshot.NewCaptureError(kind, task, err)
		if kind == screenshot.KindRenderMiss {
			logger.Warn("no screenshot created", zap.Error(err))
		} else {
			logger.Warn("screenshot not persisted", zap.String("kind", string(kind)), zap.Error(err))
		}
		return screenshot.Result{Task: task, Err: ce}
	}

	key, err := c.addresser.Key(task.URL, task.Size)
	if err != nil {
		return fail(screenshot.KindStorageFailure, err)
	}
	localPath := filepath.Join(c.cfg.ScratchDir, filepath.FromSlash(key))

	if c.cfg.Throttle != nil {
		if err := c.cfg.Throttle.Wait(ctx, task.URL); err != nil {
			return fail(screenshot.KindRenderMiss, err)
		}
	}

	logger.Info("capturing screenshot")
	size, err := c.render(ctx, task, localPath, logger)
	if err != nil {
		removeFile(localPath, logger)
		return fail(screenshot.KindRenderMiss, err)
	}

	if err := c.upload(ctx, key, localPath); err != nil {
		removeFile(localPath, logger)
		return fail(screenshot.KindStorageFailure, err)
	}
	metrics.ObserveUpload(size)

	publicURL, err := c.cfg.Objects.MakePublic(ctx, key)
	if err != nil {
		removeFile(localPath, logger)
		return fail(screenshot.KindStorageFailure, err)
	}
	removeFile(localPath, logger)

	record := screenshot.Record{
		SourceURL:        task.URL,
		Size:             task.Size,
		PublicURL:        publicURL,
		RendererIdentity: c.cfg.Renderer.Identity(),
		CreatedAt:        c.cfg.Clock.Now(),
	}
	if err := c.cfg.Records.PutRecord(ctx, record); err != nil {
		return fail(screenshot.KindMetadataFailure, err)
	}
	logger.Info("screenshot stored", zap.String("screenshot_url", publicURL))

	c.notify(ctx, record, logger)
	return screenshot.Result{Task: task, Record: record}
}

// render runs the renderer and judges success by the output file alone. A
// renderer timeout is a miss even when a partial file exists.
func (c *Capturer) render(ctx context.Context, task screenshot.Task, localPath string, logger *zap.Logger) (int64, error) {
	start := time.Now()
	renderErr := c.cfg.Renderer.Render(ctx, task, localPath)
	metrics.ObserveRender(task.Size.String(), time.Since(start))

	if errors.Is(renderErr, context.DeadlineExceeded) {
		return 0, renderErr
	}
	info, err := os.Stat(localPath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		if renderErr != nil {
			return 0, errors.Join(screenshot.ErrNoOutput, renderErr)
		}
		return 0, screenshot.ErrNoOutput
	}
	if renderErr != nil {
		logger.Debug("renderer reported an error but produced output", zap.Error(renderErr))
	}
	return info.Size(), nil
}

func (c *Capturer) upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath) //nolint:gosec // path is built from the scratch dir and a hash
	if err != nil {
		return fmt.Errorf("open screenshot: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := c.cfg.Objects.PutObject(ctx, key, c.cfg.ContentType, f); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (c *Capturer) notify(ctx context.Context, record screenshot.Record, logger *zap.Logger) {
	if c.cfg.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	payload := Notification{Event: EventScreenshotCreated, RunID: c.cfg.RunID, Record: record}
	if _, err := c.cfg.Publisher.Publish(ctx, c.cfg.Topic, payload); err != nil {
		logger.Warn("failed to publish screenshot notification", zap.Error(err))
	}
}

func removeFile(path string, logger *zap.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove local screenshot", zap.String("path", path), zap.Error(err))
	}
}
