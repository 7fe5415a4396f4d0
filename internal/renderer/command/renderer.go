// Package command renders screenshots by running an external rasterizer
// process such as phantomjs with rasterize.js.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// Argument placeholders expanded per task.
const (
	PlaceholderURL    = "{url}"
	PlaceholderOutput = "{output}"
	PlaceholderSize   = "{size}"
)

// Defaults match the phantomjs 2.1.1 image the pipeline has always used.
const (
	DefaultBinary   = "/phantomjs/bin/phantomjs"
	DefaultIdentity = "phantomjs-2.1.1"
	DefaultTimeout  = 60 * time.Second
)

// DefaultArgs returns the rasterize.js argument template.
func DefaultArgs() []string {
	return []string{"/rasterize.js", PlaceholderURL, PlaceholderOutput, PlaceholderSize}
}

// DefaultDebugArgs returns the arguments prepended in verbose mode.
func DefaultDebugArgs() []string {
	return []string{"--debug=true", "--webdriver-loglevel=DEBUG"}
}

// Config controls the external process.
type Config struct {
	Binary    string
	Args      []string
	DebugArgs []string
	Verbose   bool
	Timeout   time.Duration
	Identity  string
}

// Renderer implements screenshot.Renderer by spawning one process per task.
type Renderer struct {
	cfg    Config
	logger *zap.Logger
}

// New fills defaults and validates cfg.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if len(cfg.Args) == 0 {
		cfg.Args = DefaultArgs()
	}
	if cfg.DebugArgs == nil {
		cfg.DebugArgs = DefaultDebugArgs()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if !hasPlaceholder(cfg.Args, PlaceholderOutput) {
		return nil, fmt.Errorf("renderer args must contain %s", PlaceholderOutput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, logger: logger}, nil
}

// Identity returns the configured engine identity.
func (r *Renderer) Identity() string {
	return r.cfg.Identity
}

// Render runs the rasterizer for task and waits at most Timeout. A timed out
// process leaves no file behind.
func (r *Renderer) Render(ctx context.Context, task screenshot.Task, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := r.args(task, outputPath)
	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running renderer", zap.String("binary", r.cfg.Binary), zap.Strings("args", args))
	err := cmd.Run()
	if r.cfg.Verbose && stdout.Len() > 0 {
		r.logger.Debug("renderer output", zap.String("url", task.URL), zap.String("stdout", stdout.String()))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = os.Remove(outputPath)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("renderer timed out after %s: %w", r.cfg.Timeout, ctxErr)
		}
		return fmt.Errorf("renderer canceled: %w", ctxErr)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w (stderr: %s)", filepath.Base(r.cfg.Binary), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *Renderer) args(task screenshot.Task, outputPath string) []string {
	out := make([]string, 0, len(r.cfg.DebugArgs)+len(r.cfg.Args))
	if r.cfg.Verbose {
		out = append(out, r.cfg.DebugArgs...)
	}
	replacer := strings.NewReplacer(
		PlaceholderURL, task.URL,
		PlaceholderOutput, outputPath,
		PlaceholderSize, task.Size.RenderArg(),
	)
	for _, a := range r.cfg.Args {
		out = append(out, replacer.Replace(a))
	}
	return out
}

func hasPlaceholder(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}
