package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of sites built at once.
// Each site build already renders pages concurrently, so this stays small.
const DefaultBatchConcurrency = 2

// BatchProcessor builds several sites concurrently. Every build gets a
// fresh pipeline from the factory so no step state leaks between sites.
type BatchProcessor struct {
	pipelineFactory func(b *Build) *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(bp *BatchProcessor) {
		bp.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent builds.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(bp *BatchProcessor) {
		if n > 0 {
			bp.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(b *Build) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every build and returns them in input order.
// A failed build does not stop the others; its error is kept in Build.Err.
// The returned error is non-nil only when ctx is cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, builds []*Build) ([]*Build, error) {
	err := bp.ProcessBatchWithCallback(ctx, builds, nil)
	return builds, err
}

// ProcessBatchWithCallback runs every build and calls callback, if not nil,
// as each one finishes. callback runs on the build's goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	builds []*Build,
	callback func(b *Build, index int),
) error {
	bp.logger.Info("starting batch build", "sites", len(builds), "concurrency", bp.concurrency)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, b := range builds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				b.Err = err
				return err
			}

			bp.logger.Info("building site", "site", b.Site, "index", i+1, "total", len(builds))
			if err := bp.pipelineFactory(b).Execute(ctx, b); err != nil {
				bp.logger.Warn("site build failed", "site", b.Site, "error", err)
			} else {
				bp.logger.Info("site build completed", "site", b.Site)
			}

			if callback != nil {
				callback(b, i)
			}
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch build complete", "sites", len(builds), "elapsed", time.Since(start))
	return err
}
