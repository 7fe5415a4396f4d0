package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/api"
	"github.com/JakeFAU/webscreenshot/internal/capture"
	"github.com/JakeFAU/webscreenshot/internal/dispatcher"
	"github.com/JakeFAU/webscreenshot/internal/metrics"
	"github.com/JakeFAU/webscreenshot/internal/progress"
	"github.com/JakeFAU/webscreenshot/internal/queue/memory"
	"github.com/JakeFAU/webscreenshot/internal/worker"
)

// ErrNoScreenshots is returned when tasks were attempted but none succeeded.
var ErrNoScreenshots = errors.New("no screenshots were created")

// Run performs one capture run: read the source, capture every
// (url, size) task, record outcomes and report a summary. A source failure
// is fatal before any task runs; per-task failures are only counted.
func (a *App) Run(ctx context.Context) (progress.Summary, error) {
	metrics.Init()
	runID, err := a.ids.NewID()
	if err != nil {
		return progress.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))
	tally := progress.NewTally(runID, a.clock.Now())

	stopStatus := a.startStatusServer(ctx, tally, logger)
	defer stopStatus()

	urls, err := a.source.URLs(ctx)
	if err != nil {
		return tally.Snapshot(), fmt.Errorf("read url source: %w", err)
	}

	scratch, err := os.MkdirTemp(a.cfg.Run.ScratchDir, "webscreenshot-")
	if err != nil {
		return tally.Snapshot(), fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory", zap.String("path", scratch), zap.Error(err))
		}
	}()

	capturer, err := capture.New(capture.Config{
		Renderer:    a.renderer,
		Objects:     a.objects,
		Records:     a.records,
		Hasher:      a.hasher,
		Clock:       a.clock,
		Throttle:    a.throttle,
		Publisher:   a.publisher,
		Topic:       a.cfg.PubSub.TopicName,
		ScratchDir:  scratch,
		ContentType: a.cfg.Storage.ContentType,
		RunID:       runID,
		Logger:      logger,
	})
	if err != nil {
		return tally.Snapshot(), fmt.Errorf("create capturer: %w", err)
	}

	q := memory.NewQueue(a.cfg.Run.QueueDepth)
	workers := make([]*worker.Worker, a.cfg.Run.Concurrency)
	for i := range workers {
		workers[i] = worker.New(q, capturer, tally, logger.With(zap.Int("worker", i)))
	}
	d := dispatcher.New(q, workers, a.cfg.Sizes,
		dispatcher.WithURLHook(func(string) {
			tally.AddURL()
			metrics.ObserveURL()
		}),
		dispatcher.WithLogger(logger),
	)

	logger.Info("starting capture run",
		zap.Int("concurrency", a.cfg.Run.Concurrency),
		zap.Int("sizes", len(a.cfg.Sizes)),
		zap.String("renderer", a.renderer.Identity()),
	)
	runErr := d.Run(ctx, urls)
	tally.Finish(a.clock.Now())
	summary := tally.Snapshot()
	a.report(ctx, summary, logger)

	if runErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", runErr)
	}
	if a.cfg.Run.FailOnZeroSuccess && summary.Attempted > 0 && summary.Succeeded == 0 {
		return summary, ErrNoScreenshots
	}
	return summary, nil
}

// report logs the summary, raises the miss-rate alert and pushes metrics.
func (a *App) report(ctx context.Context, s progress.Summary, logger *zap.Logger) {
	missRate := s.RenderMissRate()
	// An empty run leaves the gauge at its previous value.
	if s.Attempted > 0 {
		metrics.SetRenderMissRatio(missRate)
	}

	fields := []zap.Field{
		zap.Int("urls", s.URLs),
		zap.Int("attempted", s.Attempted),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("render_miss", s.RenderMiss),
		zap.Int("storage_failure", s.StorageFailure),
		zap.Int("metadata_failure", s.MetadataFailure),
		zap.Float64("render_miss_rate", missRate),
		zap.Any("succeeded_by_size", s.BySize),
	}
	if s.FinishedAt != nil {
		fields = append(fields, zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)))
	}
	logger.Info("capture run finished", fields...)

	if alert := a.cfg.Run.SkipRateAlert; alert > 0 && s.Attempted > 0 && missRate >= alert {
		logger.Error("render miss rate above threshold",
			zap.Float64("render_miss_rate", missRate),
			zap.Float64("threshold", alert),
		)
	}

	if err := metrics.Push(ctx, a.cfg.Metrics.PushGatewayURL, a.cfg.Metrics.JobName, s.RunID); err != nil {
		logger.Warn("failed to push metrics", zap.Error(err))
	}
}

// startStatusServer serves progress on metrics.listen_addr for the length of
// the run. The returned func stops it and waits.
func (a *App) startStatusServer(ctx context.Context, tally *progress.Tally, logger *zap.Logger) func() {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return func() {}
	}
	serveCtx, cancel := context.WithCancel(ctx)
	srv := api.NewServer(tally, logger.Named("status"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(serveCtx, addr); err != nil {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
