package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/crawler"
	"github.com/nao1215/sitegen/internal/database"
	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/model"
	"github.com/nao1215/sitegen/internal/output"
	"github.com/nao1215/sitegen/internal/render"
	"github.com/nao1215/sitegen/internal/route"
	"github.com/nao1215/sitegen/internal/site"
	"github.com/nao1215/sitegen/internal/source"
)

// ErrNoRoutes is returned by ScanStep when the content directory holds no templates.
var ErrNoRoutes = errors.New("no page templates found")

// ScanStep scans the content directory and builds the route trie.
type ScanStep struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScanStep creates a scan step. m may be nil.
func NewScanStep(logger *slog.Logger, m *metrics.Metrics) *ScanStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanStep{logger: logger, metrics: m}
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan"
}

// Do builds b.Trie from b.Config.ContentDir.
func (s *ScanStep) Do(ctx context.Context, b *Build) error {
	cfg := b.Config
	scanner, err := source.NewScanner(cfg.ContentDir,
		source.WithTemplateExt(cfg.TemplateExt),
		source.WithIgnore(cfg.Ignore),
		source.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	trie, err := scanner.Build(ctx)
	if err != nil {
		return err
	}
	if trie.Len() == 0 {
		return fmt.Errorf("%w in %s", ErrNoRoutes, cfg.ContentDir)
	}

	s.metrics.RoutesLoaded(trie.Len())
	s.logger.Info("routes loaded", "site", b.Site, "routes", trie.Len())
	b.Trie = trie
	return nil
}

// StoreFactory creates the output store of a build.
type StoreFactory func(cfg *config.Config) (output.Store, error)

// DefaultStore writes to cfg.OutputDir and, when a bucket is configured,
// uploads every page to S3 as well.
func DefaultStore(cfg *config.Config) (output.Store, error) {
	dir := output.NewDirStore(cfg.OutputDir)
	if !cfg.UploadEnabled() {
		return dir, nil
	}
	client := output.NewS3Client(cfg.S3Region, cfg.S3Endpoint)
	return output.NewMultiStore(dir, output.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix)), nil
}

// CrawlStep renders the site through the route trie and writes every
// reachable page to the output store.
type CrawlStep struct {
	stores         StoreFactory
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracerProvider trace.TracerProvider
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithStoreFactory replaces DefaultStore.
func WithStoreFactory(f StoreFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		s.stores = f
	}
}

// WithCrawlLogger sets the logger of the step and the components it creates.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// WithCrawlMetrics sets the metrics collectors.
func WithCrawlMetrics(m *metrics.Metrics) CrawlStepOption {
	return func(s *CrawlStep) {
		s.metrics = m
	}
}

// WithTracerProvider sets the tracer provider for crawl and render spans.
func WithTracerProvider(tp trace.TracerProvider) CrawlStepOption {
	return func(s *CrawlStep) {
		s.tracerProvider = tp
	}
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		stores: DefaultStore,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls b.Trie into the output store and sets b.Report. The report is
// set even when the crawl fails.
func (s *CrawlStep) Do(ctx context.Context, b *Build) error {
	if b.Trie == nil {
		return errors.New("crawl step requires a route trie: run the scan step first")
	}
	cfg := b.Config

	store, err := s.stores(cfg)
	if err != nil {
		return fmt.Errorf("failed to create output store: %w", err)
	}

	renderer := render.NewTemplateRenderer(
		render.WithPartials(cfg.Partials...),
		render.WithLogger(s.logger),
		render.WithMetrics(s.metrics),
	)
	siteOpts := []site.Option{
		site.WithLogger(s.logger),
		site.WithMetrics(s.metrics),
		site.WithGlobal(cfg.Global),
	}
	crawlOpts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithHost(cfg.Host),
		crawler.WithTemplateExt(cfg.TemplateExt),
		crawler.WithIgnorePatterns(cfg.CrawlIgnore),
		crawler.WithFailOnBroken(cfg.FailOnBroken),
		crawler.WithHeaders(cfg.Headers),
		crawler.WithSiteName(b.Site),
		crawler.WithLogger(s.logger),
		crawler.WithMetrics(s.metrics),
	}
	if s.tracerProvider != nil {
		siteOpts = append(siteOpts, site.WithTracerProvider(s.tracerProvider))
		crawlOpts = append(crawlOpts, crawler.WithTracerProvider(s.tracerProvider))
	}

	srv := site.New(route.NewTable(b.Trie), renderer, siteOpts...)
	c := crawler.New(srv, store, crawlOpts...)

	if cfg.Exhaustive() {
		b.Report, err = c.CrawlAll(ctx, EnumeratedPaths(b.Trie, cfg.Dir))
	} else {
		b.Report, err = c.CrawlFrom(ctx, cfg.Root)
	}
	return err
}

// EnumeratedPaths returns the logical paths of the routes below dir,
// sorted. dir is relative to the content root; "." or "" selects all.
func EnumeratedPaths(t *route.Trie, dir string) []string {
	dir = strings.Trim(path.Clean("/"+dir), "/")

	seen := make(map[string]struct{})
	var logicals []string
	for _, r := range t.Routes() {
		if dir != "" && r.Source != dir && !strings.HasPrefix(r.Source, dir+"/") {
			continue
		}
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		logicals = append(logicals, r.Source)
	}
	sort.Strings(logicals)
	return logicals
}

// PruneStep removes server-only files matching the configured patterns
// from the output directory.
type PruneStep struct {
	logger *slog.Logger
}

// NewPruneStep creates a prune step.
func NewPruneStep(logger *slog.Logger) *PruneStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneStep{logger: logger}
}

// Name returns the step name.
func (s *PruneStep) Name() string {
	return "prune"
}

// Do removes matching files and lists them in b.Report.Pruned.
func (s *PruneStep) Do(_ context.Context, b *Build) error {
	if len(b.Config.Prune) == 0 {
		return nil
	}

	removed, err := output.NewDirStore(b.Config.OutputDir).Prune(b.Config.Prune)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", b.Config.OutputDir, err)
	}
	if b.Report != nil {
		b.Report.Pruned = append(b.Report.Pruned, removed...)
		sort.Strings(b.Report.Pruned)
	}
	s.logger.Info("pruned output", "site", b.Site, "files", len(removed))
	return nil
}

// RecordStep saves the build in the history database and diffs it
// against the previous build of the same site.
type RecordStep struct {
	db     *database.BuildDB
	logger *slog.Logger
}

// NewRecordStep creates a record step writing to db.
func NewRecordStep(db *database.BuildDB, logger *slog.Logger) *RecordStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do stores b.Report and sets b.Previous and b.Diff.
func (s *RecordStep) Do(ctx context.Context, b *Build) error {
	if b.Report == nil {
		return errors.New("record step requires a build report: run the crawl step first")
	}

	previous, err := s.db.LatestBuild(ctx, b.Site)
	switch {
	case errors.Is(err, database.ErrBuildNotFound):
	case err != nil:
		return err
	default:
		b.Previous = previous
		b.Diff = model.Diff(previous, b.Report)
	}

	if err := s.db.SaveBuild(ctx, b.Report); err != nil {
		return err
	}
	s.logger.Info("build recorded", "site", b.Site, "id", b.Report.ID, "db", s.db.Path())
	return nil
}
