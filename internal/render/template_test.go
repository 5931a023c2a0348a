package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitegen/internal/route"
)

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()

	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	return p
}

func TestTemplateRenderer_Render(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := writeTemplate(t, dir, "users/:id.gohtml",
		`<h1>{{.Global.site}}</h1><p>{{.Param "id"}}</p><p>{{index .QueryValues.tab 0}}</p><p>{{.Pathname}}</p>`)

	r := NewTemplateRenderer()
	data := Data{
		Global:   map[string]any{"site": "Docs"},
		Params:   route.Params{{Name: "id", Value: "42"}},
		Query:    "tab=posts",
		Pathname: "/users/42",
	}

	var buf bytes.Buffer
	if err := r.Render(context.Background(), &buf, route.HandlerRef(file), data); err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	expected := `<h1>Docs</h1><p>42</p><p>posts</p><p>/users/42</p>`
	if buf.String() != expected {
		t.Errorf("got %q, expected %q", buf.String(), expected)
	}
}

func TestTemplateRenderer_Escapes(t *testing.T) {
	t.Parallel()

	file := writeTemplate(t, t.TempDir(), "page.gohtml", `<p>{{.Param "q"}}</p>`)

	var buf bytes.Buffer
	data := Data{Params: route.Params{{Name: "q", Value: "<script>"}}}
	if err := NewTemplateRenderer().Render(context.Background(), &buf, route.HandlerRef(file), data); err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("parameter was not escaped: %q", buf.String())
	}
}

func TestTemplateRenderer_Cache(t *testing.T) {
	t.Parallel()

	t.Run("cached template survives file edits", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		file := writeTemplate(t, dir, "a.gohtml", "v1")
		r := NewTemplateRenderer()

		render(t, r, file)
		writeTemplate(t, dir, "a.gohtml", "v2")
		if got := render(t, r, file); got != "v1" {
			t.Errorf("got %q, expected cached v1", got)
		}

		r.Invalidate()
		if got := render(t, r, file); got != "v2" {
			t.Errorf("got %q after Invalidate, expected v2", got)
		}
	})

	t.Run("reload mode reads edits", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		file := writeTemplate(t, dir, "a.gohtml", "v1")
		r := NewTemplateRenderer(WithReload(true))

		render(t, r, file)
		writeTemplate(t, dir, "a.gohtml", "v2")
		if got := render(t, r, file); got != "v2" {
			t.Errorf("got %q, expected v2", got)
		}
	})
}

func TestTemplateRenderer_Partials(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTemplate(t, dir, "_layouts/base.gohtml", `{{define "header"}}<header>{{title .Pathname}}</header>{{end}}`)
	file := writeTemplate(t, dir, "index.gohtml", `{{template "header" .}}<main></main>`)

	r := NewTemplateRenderer(WithPartials(filepath.Join(dir, "_layouts", "*.gohtml")))

	var buf bytes.Buffer
	err := r.Render(context.Background(), &buf, route.HandlerRef(file), Data{Pathname: "release-notes"})
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if buf.String() != "<header>Release Notes</header><main></main>" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTemplateRenderer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()

		err := NewTemplateRenderer().Render(context.Background(), io.Discard, "/does/not/exist.gohtml", Data{})
		if !errors.Is(err, ErrTemplate) {
			t.Errorf("error = %v, expected ErrTemplate", err)
		}
	})

	t.Run("execution failure", func(t *testing.T) {
		t.Parallel()

		file := writeTemplate(t, t.TempDir(), "bad.gohtml", `{{template "missing" .}}`)
		err := NewTemplateRenderer().Render(context.Background(), io.Discard, route.HandlerRef(file), Data{})
		if err == nil {
			t.Error("expected execution error")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewTemplateRenderer().Render(ctx, io.Discard, "x", Data{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, expected context.Canceled", err)
		}
	})
}

func TestRendererFunc(t *testing.T) {
	t.Parallel()

	var got route.HandlerRef
	r := RendererFunc(func(_ context.Context, w io.Writer, ref route.HandlerRef, _ Data) error {
		got = ref
		_, err := io.WriteString(w, "ok")
		return err
	})

	var buf bytes.Buffer
	if err := r.Render(context.Background(), &buf, "page", Data{}); err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if got != "page" || buf.String() != "ok" {
		t.Errorf("got ref %q body %q", got, buf.String())
	}
}

func render(t *testing.T, r *TemplateRenderer, file string) string {
	t.Helper()

	var buf bytes.Buffer
	if err := r.Render(context.Background(), &buf, route.HandlerRef(file), Data{}); err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	return buf.String()
}
