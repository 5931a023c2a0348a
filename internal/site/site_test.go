package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nao1215/sitegen/internal/render"
	"github.com/nao1215/sitegen/internal/route"
)

// echoRenderer writes the handler, params and request fields it was given.
var echoRenderer = render.RendererFunc(func(_ context.Context, w io.Writer, ref route.HandlerRef, data render.Data) error {
	if ref == "fail" {
		return errors.New("template exploded")
	}
	_, err := fmt.Fprintf(w, "%s|%v|%s|%s|%v|%s", ref, data.Params.Map(), data.Query, data.Pathname, data.Global["name"], data.Headers["accept-language"])
	return err
})

func newSite(t *testing.T, opts ...Option) *Site {
	t.Helper()

	trie, err := route.Build(map[string]route.HandlerRef{
		"index.gohtml":     "home",
		"users/:id.gohtml": "user",
		"blog/post.gohtml": "post",
		"broken.gohtml":    "fail",
		"users/new.gohtml": "new-user",
	})
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	return New(route.NewTable(trie), echoRenderer, opts...)
}

func TestSite_Serve(t *testing.T) {
	t.Parallel()

	s := newSite(t, WithGlobal(map[string]any{"name": "docs"}), WithTracerProvider(noop.NewTracerProvider()))

	tests := []struct {
		name       string
		req        Request
		wantStatus int
		wantBody   string
		wantHeader map[string]string
	}{
		{
			name:       "renders the matched page",
			req:        Request{URL: "/users/42?tab=a", Headers: map[string]string{"accept-language": "en"}},
			wantStatus: http.StatusOK,
			wantBody:   "user|map[id:42]|tab=a|/users/42|docs|en",
			wantHeader: map[string]string{"Content-Type": "text/html; charset=utf-8"},
		},
		{
			name:       "static route beats parameter",
			req:        Request{URL: "/users/new"},
			wantStatus: http.StatusOK,
			wantBody:   "new-user|map[]||/users/new|docs|",
		},
		{
			name:       "redirects to the canonical path",
			req:        Request{URL: "/users/42/?tab=a"},
			wantStatus: http.StatusMovedPermanently,
			wantBody:   `Redirecting to <a href="/users/42?tab=a">/users/42?tab=a</a>`,
			wantHeader: map[string]string{"Location": "/users/42?tab=a"},
		},
		{
			name:       "redirects index paths",
			req:        Request{URL: "/index.html"},
			wantStatus: http.StatusMovedPermanently,
			wantHeader: map[string]string{"Location": "/"},
		},
		{
			name:       "unknown path",
			req:        Request{URL: "/nope"},
			wantStatus: http.StatusNotFound,
			wantBody:   "Not Found",
		},
		{
			name:       "malformed path",
			req:        Request{URL: "/a%zz"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "listing",
			req:        Request{URL: "/blog"},
			wantStatus: http.StatusOK,
			wantBody:   "$$index|map[]||/blog|docs|",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := s.Serve(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Serve() returned error: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if tt.wantBody != "" && string(resp.Body) != tt.wantBody {
				t.Errorf("Body = %q, want %q", resp.Body, tt.wantBody)
			}
			for name, want := range tt.wantHeader {
				if got := resp.Header.Get(name); got != want {
					t.Errorf("header %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestSite_ServeRenderError(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	_, err := s.Serve(context.Background(), Request{URL: "/broken"})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("Serve() error = %v, want ErrRender", err)
	}
	if !strings.Contains(err.Error(), "template exploded") {
		t.Errorf("error %q does not carry the render failure", err)
	}
}

func TestSite_SetGlobal(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	s.SetGlobal(map[string]any{"name": "changed"})

	resp, err := s.Serve(context.Background(), Request{URL: "/"})
	if err != nil {
		t.Fatalf("Serve() returned error: %v", err)
	}
	if !strings.Contains(string(resp.Body), "|changed|") {
		t.Errorf("Body = %q, want the new global data", resp.Body)
	}
}

func TestSite_ServeHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newSite(t))
	t.Cleanup(srv.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	t.Run("page", func(t *testing.T) {
		t.Parallel()

		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/users/7", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Accept-Language", "ja")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
		if !strings.HasSuffix(string(body), "|ja") {
			t.Errorf("headers were not forwarded: %q", body)
		}
	})

	t.Run("redirect", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(srv.URL + "/users/7/")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusMovedPermanently || resp.Header.Get("Location") != "/users/7" {
			t.Errorf("got %d to %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("render failure", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Get(srv.URL + "/broken")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()

		resp, err := client.Post(srv.URL+"/", "text/plain", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("StatusCode = %d, want 405", resp.StatusCode)
		}
	})
}
