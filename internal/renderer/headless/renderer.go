// Package headless renders screenshots with headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// DefaultIdentity is stored as the record's renderer identity.
const DefaultIdentity = "headless-chrome"

// Config controls the headless renderer.
type Config struct {
	MaxParallel int
	UserAgent   string
	Timeout     time.Duration
	// Settle is how long to wait after the body is ready before capturing.
	Settle   time.Duration
	Identity string
	// ExecPath overrides chromedp's browser discovery.
	ExecPath string
}

// Renderer implements screenshot.Renderer with one browser process shared
// by every render. Each render gets its own tab.
type Renderer struct {
	cfg         Config
	logger      *zap.Logger
	limiter     chan struct{}
	allocCancel context.CancelFunc

	browserCtx    context.Context
	browserCancel context.CancelFunc
	startOnce     sync.Once
	startErr      error
}

// New creates a Renderer. The browser starts lazily on the first Render.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Renderer{
		cfg:           cfg,
		logger:        logger,
		limiter:       limiter,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Identity returns the configured engine identity.
func (r *Renderer) Identity() string {
	return r.cfg.Identity
}

// Close shuts down the browser.
func (r *Renderer) Close() {
	r.browserCancel()
	r.allocCancel()
}

// start launches the browser on first use. A failed launch is remembered
// and returned by every later render.
func (r *Renderer) start() error {
	r.startOnce.Do(func() {
		if err := chromedp.Run(r.browserCtx); err != nil {
			r.startErr = fmt.Errorf("start browser: %w", err)
			return
		}
		r.logger.Info("headless browser started")
	})
	return r.startErr
}

// Render loads task.URL in a tab sized to task.Size and writes a viewport
// PNG to outputPath.
func (r *Renderer) Render(ctx context.Context, task screenshot.Task, outputPath string) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer r.release()

	if err := r.start(); err != nil {
		return err
	}
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	// Propagate caller cancellation into the tab context.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancel()

	status := &documentStatus{}
	chromedp.ListenTarget(tabCtx, status.observe)

	var png []byte
	if err := chromedp.Run(tabCtx, r.actions(task, &png)...); err != nil {
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("renderer timed out after %s: %w", r.cfg.Timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("chromedp run: %w", err)
	}
	r.logger.Debug("page rendered",
		zap.String("url", task.URL),
		zap.Int64("status", status.get()),
		zap.Int("bytes", len(png)),
	)
	if len(png) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, png, 0o600); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

func (r *Renderer) actions(task screenshot.Task, png *[]byte) []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(task.Size.Width), int64(task.Size.Height)),
	}
	if r.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(r.cfg.UserAgent))
	}
	actions = append(actions,
		chromedp.Navigate(task.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if r.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.Settle))
	}
	return append(actions, chromedp.CaptureScreenshot(png))
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// documentStatus remembers the HTTP status of the main document.
type documentStatus struct {
	mu     sync.Mutex
	status int64
}

func (d *documentStatus) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = resp.Response.Status
	d.mu.Unlock()
}

func (d *documentStatus) get() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
