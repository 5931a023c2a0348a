// Package render turns a matched route into HTML.
//
// The route package never interprets handler references. Renderer is the
// collaborator that does: TemplateRenderer treats a reference as the path of
// an html/template file, and answers route.ListingRef with a built-in
// directory-listing page.
package render

import (
	"context"
	"errors"
	"io"
	"net/url"

	"github.com/nao1215/sitegen/internal/route"
)

// ErrTemplate is returned when a page template cannot be loaded.
var ErrTemplate = errors.New("failed to load template")

// Data is the value templates are executed with.
type Data struct {
	// Global is site-wide data shared by every page.
	Global map[string]any

	// Params are the bound parameter segments of the matched route.
	Params route.Params

	// Query is the raw query string without "?".
	Query string

	// Pathname is the canonical request path.
	Pathname string

	// Headers are the request headers, passed through unchanged.
	Headers map[string]string

	// Listing is set for directory-listing pages.
	Listing *route.Listing
}

// Param returns the value bound to name, or "" when the route has no such
// parameter. Templates call it as {{.Param "id"}}.
func (d Data) Param(name string) string {
	v, _ := d.Params.Get(name)
	return v
}

// QueryValues parses Query. Malformed pairs are dropped.
func (d Data) QueryValues() url.Values {
	v, _ := url.ParseQuery(d.Query)
	return v
}

// Renderer produces the HTML of one page.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, ref route.HandlerRef, data Data) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer, ref route.HandlerRef, data Data) error

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, w io.Writer, ref route.HandlerRef, data Data) error {
	return f(ctx, w, ref, data)
}
