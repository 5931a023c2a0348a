// Package site answers page requests: it resolves the request path against
// the live route table and either redirects to the canonical path, reports
// that no route matched, or renders the matched page.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/render"
	"github.com/nao1215/sitegen/internal/route"
)

// ErrRender is returned by Serve when the renderer fails for a matched page.
var ErrRender = errors.New("failed to render page")

// tracerName is the OpenTelemetry tracer used for request spans.
const tracerName = "github.com/nao1215/sitegen/internal/site"

// Request is one page request. Only URL is interpreted; Headers are passed
// to the renderer unchanged.
type Request struct {
	// URL is the request path with an optional query string.
	URL string

	// Headers are the request headers.
	Headers map[string]string
}

// Response is the answer to a Request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// Match is the resolution the response was produced from.
	Match route.Match
}

// Site serves pages from a route table through a renderer.
type Site struct {
	table    *route.Table
	renderer render.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	mu     sync.RWMutex
	global map[string]any
}

// Option configures a Site.
type Option func(*Site)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Site) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Site) {
		s.metrics = m
	}
}

// WithGlobal sets the site-wide template data.
func WithGlobal(global map[string]any) Option {
	return func(s *Site) {
		s.global = global
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global
// OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Site) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New creates a site serving table through renderer.
func New(table *route.Table, renderer render.Renderer, opts ...Option) *Site {
	s := &Site{
		table:    table,
		renderer: renderer,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		global:   map[string]any{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetGlobal replaces the site-wide template data.
func (s *Site) SetGlobal(global map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = global
}

func (s *Site) globalData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// Serve answers req:
//   - a non-canonical path gets a 301 to the canonical path
//   - an unmatched path gets a 404
//   - a matched path gets the rendered page with status 200
//   - a malformed path gets a 400
//
// Only render failures are returned as errors, wrapping ErrRender.
func (s *Site) Serve(ctx context.Context, req Request) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "sitegen.serve",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("sitegen.url", req.URL)),
	)
	defer span.End()

	m, err := s.table.Resolve(req.URL)
	if err != nil {
		s.metrics.ObserveRequest("invalid")
		span.SetAttributes(attribute.String("sitegen.outcome", "invalid"))
		s.logger.Debug("invalid request path", "url", req.URL, "error", err)
		return textResponse(http.StatusBadRequest, "Bad Request"), nil
	}

	s.metrics.ObserveRequest(m.Kind.String())
	span.SetAttributes(attribute.String("sitegen.outcome", m.Kind.String()))

	switch m.Kind {
	case route.Redirect:
		return redirectResponse(m), nil

	case route.NotFound:
		resp := textResponse(http.StatusNotFound, "Not Found")
		resp.Match = m
		return resp, nil
	}

	span.SetAttributes(attribute.String("sitegen.handler", string(m.Handler)))

	data := render.Data{
		Global:   s.globalData(),
		Params:   m.Params,
		Query:    m.Query,
		Pathname: m.Pathname,
		Headers:  req.Headers,
		Listing:  m.Listing,
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(ctx, &buf, m.Handler, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s: %w", ErrRender, m.Pathname, err)
	}
	span.SetStatus(codes.Ok, "")

	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &Response{
		Status: http.StatusOK,
		Header: header,
		Body:   buf.Bytes(),
		Match:  m,
	}, nil
}

// redirectResponse builds the 301 answer for a non-canonical path.
func redirectResponse(m route.Match) *Response {
	header := make(http.Header)
	header.Set("Location", m.Location)
	header.Set("Content-Type", "text/html; charset=utf-8")

	target := html.EscapeString(m.Location)
	return &Response{
		Status: http.StatusMovedPermanently,
		Header: header,
		Body:   []byte(`Redirecting to <a href="` + target + `">` + target + `</a>`),
		Match:  m,
	}
}

func textResponse(status int, body string) *Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{Status: status, Header: header, Body: []byte(body)}
}
