package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/model"
	"github.com/nao1215/sitegen/internal/output"
	"github.com/nao1215/sitegen/internal/route"
	"github.com/nao1215/sitegen/internal/site"
	"github.com/nao1215/sitegen/internal/source"
)

// ErrBrokenLinks is returned when WithFailOnBroken is set and the crawl found
// links that resolve to no route.
var ErrBrokenLinks = errors.New("broken links found")

// tracerName is the OpenTelemetry tracer used for visit spans.
const tracerName = "github.com/nao1215/sitegen/internal/crawler"

// Server answers page requests. *site.Site implements it.
type Server interface {
	Serve(ctx context.Context, req site.Request) (*site.Response, error)
}

// Crawler renders pages through a Server and writes them to a Store.
type Crawler struct {
	server Server
	store  output.Store

	// concurrency bounds the number of pages rendered and written at once.
	concurrency int64

	// host is the site's own host; absolute links to it are followed.
	host string

	// ext is the template extension stripped by PublicURL.
	ext string

	// ignorePatterns are URL path patterns never crawled.
	ignorePatterns []string

	// failOnBroken turns broken links into a crawl failure.
	failOnBroken bool

	// headers are sent with every request.
	headers map[string]string

	site    string
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets how many pages are rendered and written at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = int64(n)
		}
	}
}

// WithHost sets the site's host, e.g. "example.com". Absolute links to this
// host are followed; absolute links to any other host are not.
func WithHost(host string) Option {
	return func(c *Crawler) {
		c.host = host
	}
}

// WithTemplateExt sets the template extension used to derive public URLs in
// CrawlAll. Defaults to route.DefaultTemplateExt.
func WithTemplateExt(ext string) Option {
	return func(c *Crawler) {
		c.ext = ext
	}
}

// WithIgnorePatterns sets URL path patterns to skip (see source.MatchPattern).
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithFailOnBroken makes the crawl fail with ErrBrokenLinks when a link
// resolves to no route.
func WithFailOnBroken(fail bool) Option {
	return func(c *Crawler) {
		c.failOnBroken = fail
	}
}

// WithHeaders sets headers passed to the renderer with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Crawler) {
		c.headers = headers
	}
}

// WithSiteName sets the site name recorded in reports.
func WithSiteName(name string) Option {
	return func(c *Crawler) {
		c.site = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global
// OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Crawler) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// New creates a crawler that renders through server and writes to store.
func New(server Server, store output.Store, opts ...Option) *Crawler {
	c := &Crawler{
		server:      server,
		store:       store,
		concurrency: int64(runtime.NumCPU()),
		ext:         route.DefaultTemplateExt,
		newID:       uuid.NewString,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CrawlFrom crawls every page reachable from root.
//
// The returned report is never nil; on failure it holds what was written
// before the crawl stopped.
func (c *Crawler) CrawlFrom(ctx context.Context, root string) (*model.BuildReport, error) {
	report := c.newReport(model.ModeSingleRoot)
	report.Root = root

	r := c.start(ctx, report)
	r.schedule(escapePath(root), "")
	return report, r.wait()
}

// CrawlAll crawls the public URL of every logical path, following links
// from each of them. URLs with a ":param" placeholder are skipped.
func (c *Crawler) CrawlAll(ctx context.Context, logicals []string) (*model.BuildReport, error) {
	report := c.newReport(model.ModeExhaustive)

	r := c.start(ctx, report)
	for _, logical := range logicals {
		u := PublicURL(logical, c.ext)
		if hasPlaceholder(u) {
			c.logger.Debug("skipping parameterized route", "url", u, "source", logical)
			report.AddSkipped(u)
			continue
		}
		r.schedule(escapePath(u), "")
	}
	return report, r.wait()
}

func (c *Crawler) newReport(mode model.Mode) *model.BuildReport {
	report := model.NewBuildReport(c.newID(), mode)
	report.Site = c.site
	return report
}

// run is the state of one crawl.
type run struct {
	c       *Crawler
	ctx     context.Context
	group   *errgroup.Group
	sem     *semaphore.Weighted
	visited *visitedSet
	report  *model.BuildReport
}

func (c *Crawler) start(ctx context.Context, report *model.BuildReport) *run {
	group, gctx := errgroup.WithContext(ctx)
	c.logger.Info("crawl started", "id", report.ID, "mode", string(report.Mode), "concurrency", c.concurrency)
	if len(c.headers) > 0 {
		c.logger.Debug("forwarding request headers", "headers", c.headers)
	}
	return &run{
		c:       c,
		ctx:     gctx,
		group:   group,
		sem:     semaphore.NewWeighted(c.concurrency),
		visited: newVisitedSet(),
		report:  report,
	}
}

// schedule visits u unless it was scheduled before.
func (r *run) schedule(u, referrer string) {
	if source.MatchAny(r.c.ignorePatterns, u) {
		return
	}
	if !r.visited.Add(u) {
		return
	}
	r.group.Go(func() error {
		return r.visit(u, referrer)
	})
}

func (r *run) wait() error {
	err := r.group.Wait()
	if err == nil && r.c.failOnBroken && len(r.report.Broken) > 0 {
		err = fmt.Errorf("%w: %d", ErrBrokenLinks, len(r.report.Broken))
	}
	r.report.Finish(err)

	c := r.report.Counts()
	if err != nil {
		r.c.logger.Error("crawl failed", "id", r.report.ID, "error", err, "rendered", c.Rendered)
	} else {
		r.c.logger.Info("crawl finished", "id", r.report.ID,
			"rendered", c.Rendered, "redirects", c.Redirects, "broken", c.Broken,
			"skipped", c.Skipped, "duration", r.report.Duration())
	}
	return err
}

// visit renders u, writes it and schedules its links.
func (r *run) visit(u, referrer string) error {
	ctx, span := r.c.tracer.Start(r.ctx, "sitegen.crawl.visit",
		trace.WithAttributes(attribute.String("sitegen.url", u)))
	defer span.End()

	links, err := r.materialize(ctx, u, referrer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, link := range links {
		target, ok := resolveLink(u, link)
		if !ok {
			continue
		}
		r.schedule(target, u)
	}
	return nil
}

// materialize serves and writes u while holding a slot of the semaphore, and
// returns the links of the written page.
func (r *run) materialize(ctx context.Context, u, referrer string) ([]string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	name, ok := outputName(u)
	if !ok {
		r.c.logger.Warn("skipping URL that maps to no file", "url", u, "referrer", referrer)
		r.report.AddSkipped(u)
		return nil, nil
	}

	resp, err := r.c.server.Serve(ctx, site.Request{URL: u, Headers: r.c.headers})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", u, err)
	}

	switch resp.Status {
	case http.StatusOK, http.StatusMovedPermanently:
	default:
		r.c.logger.Warn("broken link", "url", u, "referrer", referrer, "status", resp.Status)
		r.c.metrics.BrokenLink()
		r.report.AddBroken(model.BrokenLink{URL: u, Referrer: referrer})
		return nil, nil
	}

	if err := r.c.store.Write(ctx, name, resp.Body); err != nil {
		r.c.metrics.WriteFailed()
		return nil, err
	}
	r.c.metrics.PageWritten()

	links, err := ExtractLinks(bytes.NewReader(resp.Body), r.c.host)
	if err != nil {
		return nil, fmt.Errorf("failed to extract links from %s: %w", u, err)
	}

	page := model.NewPageRecord(u, name, resp.Status, resp.Body)
	page.Handler = string(resp.Match.Handler)
	page.Links = len(links)
	r.report.AddPage(page)

	r.c.logger.Debug("page written", "url", u, "path", name, "status", resp.Status, "links", len(links))
	return links, nil
}

// outputName returns the file an escaped URL path is written to. Files are
// named after the decoded path, the way static hosts look them up. ok is
// false when a segment decodes to a separator, a dot segment or a NUL.
func outputName(u string) (string, bool) {
	segments := strings.Split(u, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil || decoded == "." || decoded == ".." || strings.ContainsAny(decoded, "/\\\x00") {
			return "", false
		}
		segments[i] = decoded
	}
	return output.FileName(strings.Join(segments, "/")), true
}

// escapePath returns the escaped path of u, the form links are crawled in.
// u is returned unchanged when it does not parse.
func escapePath(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	p := parsed.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}
