package render

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/route"
)

// TemplateRenderer renders html/template files. The handler reference of a
// route is the template's file path.
type TemplateRenderer struct {
	// cache holds parsed templates keyed by file path.
	cache sync.Map

	// reload disables the cache so edits show up without a restart.
	reload bool

	// partials are glob patterns of templates parsed into every page, for
	// shared layouts and blocks.
	partials []string

	funcs   template.FuncMap
	listing *template.Template
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a TemplateRenderer.
type Option func(*TemplateRenderer)

// WithReload re-parses templates on every render.
func WithReload(reload bool) Option {
	return func(r *TemplateRenderer) {
		r.reload = reload
	}
}

// WithPartials parses the templates matching patterns into every page.
func WithPartials(patterns ...string) Option {
	return func(r *TemplateRenderer) {
		r.partials = append(r.partials, patterns...)
	}
}

// WithFuncs adds template functions.
func WithFuncs(funcs template.FuncMap) Option {
	return func(r *TemplateRenderer) {
		for name, fn := range funcs {
			r.funcs[name] = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *TemplateRenderer) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *TemplateRenderer) {
		r.metrics = m
	}
}

// NewTemplateRenderer creates a renderer.
func NewTemplateRenderer(opts ...Option) *TemplateRenderer {
	r := &TemplateRenderer{
		funcs:  defaultFuncs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.listing = template.Must(template.New("listing").Funcs(r.funcs).Parse(listingTemplate))
	return r
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"title": titleCase,
		"join":  strings.Join,
	}
}

// titleCase turns a slug such as "release-notes" into "Release Notes".
// A cases.Caser keeps state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(s))
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(ctx context.Context, w io.Writer, ref route.HandlerRef, data Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	kind := "page"
	var err error
	if ref == route.ListingRef {
		kind = "listing"
		err = r.renderListing(w, data)
	} else {
		err = r.renderPage(w, string(ref), data)
	}
	r.metrics.ObserveRender(kind, time.Since(start), err)
	return err
}

func (r *TemplateRenderer) renderPage(w io.Writer, file string, data Data) error {
	tmpl, err := r.load(file)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute %s: %w", file, err)
	}
	return nil
}

// load returns the parsed template for file, from the cache unless reloading.
func (r *TemplateRenderer) load(file string) (*template.Template, error) {
	if !r.reload {
		if cached, ok := r.cache.Load(file); ok {
			return cached.(*template.Template), nil
		}
	}

	tmpl := template.New(filepath.Base(file)).Funcs(r.funcs)
	for _, pattern := range r.partials {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: partials %q: %w", ErrTemplate, pattern, err)
		}
		if len(matches) == 0 {
			continue
		}
		if tmpl, err = tmpl.ParseFiles(matches...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
		}
	}

	tmpl, err := tmpl.ParseFiles(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	// ParseFiles names templates by base name; execute the page itself.
	page := tmpl.Lookup(filepath.Base(file))
	if page == nil {
		return nil, fmt.Errorf("%w: %s defines no template", ErrTemplate, file)
	}

	if !r.reload {
		r.cache.Store(file, page)
		r.logger.Debug("template parsed", "file", file)
	}
	return page, nil
}

// Invalidate drops every cached template, typically after the source tree
// changed.
func (r *TemplateRenderer) Invalidate() {
	r.cache.Range(func(key, _ any) bool {
		r.cache.Delete(key)
		return true
	})
}
