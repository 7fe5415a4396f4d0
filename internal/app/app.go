// Package app initializes and holds the long-lived services of a capture
// run, acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/clock/system"
	"github.com/JakeFAU/webscreenshot/internal/config"
	"github.com/JakeFAU/webscreenshot/internal/hash/md5"
	"github.com/JakeFAU/webscreenshot/internal/hash/sha256"
	"github.com/JakeFAU/webscreenshot/internal/id/uuid"
	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

// URLSource yields the candidate URLs of one run.
type URLSource interface {
	URLs(ctx context.Context) (iter.Seq[string], error)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// App holds the services a run needs. Build it with NewApp and release it
// with Close.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	source    URLSource
	renderer  screenshot.Renderer
	throttle  screenshot.Throttle
	objects   screenshot.ObjectStore
	records   screenshot.RecordStore
	publisher screenshot.Publisher
	hasher    screenshot.Hasher
	clock     screenshot.Clock
	ids       IDGenerator

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Option overrides a service NewApp would otherwise build from config.
type Option func(*App)

// WithSource replaces the configured URL source.
func WithSource(src URLSource) Option {
	return func(a *App) { a.source = src }
}

// WithRenderer replaces the configured renderer.
func WithRenderer(r screenshot.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithObjectStore replaces the configured object store.
func WithObjectStore(s screenshot.ObjectStore) Option {
	return func(a *App) { a.objects = s }
}

// WithRecordStore replaces the configured record store.
func WithRecordStore(s screenshot.RecordStore) Option {
	return func(a *App) { a.records = s }
}

// WithPublisher replaces the configured notification publisher.
func WithPublisher(p screenshot.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithClock replaces the system clock.
func WithClock(c screenshot.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(a *App) { a.ids = g }
}

// NewApp builds every service cfg selects that was not supplied through
// opts. It fails fast: any service that cannot be initialized aborts the
// run before a single URL is read.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.hasher == nil {
		if cfg.Storage.KeyHash == config.KeyHashSHA256 {
			a.hasher = sha256.New()
		} else {
			a.hasher = md5.New()
		}
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}

	logger.Info("initializing application services")
	f := &factory{cfg: cfg, logger: logger, app: a}
	if err := f.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("renderer", a.renderer.Identity()),
		zap.String("storage", cfg.Storage.Kind),
		zap.String("records", cfg.Records.Kind),
	)
	return a, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		a.logger.Debug("services closed with errors", zap.Error(errors.Join(errs...)))
	}
}
