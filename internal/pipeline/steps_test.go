package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/database"
	"github.com/nao1215/sitegen/internal/model"
	"github.com/nao1215/sitegen/internal/output"
	"github.com/nao1215/sitegen/internal/route"
)

// writeSite creates a content directory with a home page, an about page,
// a blog without index and a parameterized user page.
func writeSite(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "pages")
	files := map[string]string{
		"index.gohtml":       `<a href="/about">About</a><a href="/blog">Blog</a>`,
		"about.gohtml":       `<h1>About {{.Global.brand}}</h1>`,
		"blog/post-1.gohtml": `post one <a href="/">home</a>`,
		"blog/post-2.gohtml": `post two`,
		"users/:id.gohtml":   `user {{.Param "id"}}`,
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.ContentDir = writeSite(t)
	cfg.OutputDir = filepath.Join(t.TempDir(), "build")
	cfg.Concurrency = 4
	cfg.Global = map[string]any{"brand": "Acme"}
	return cfg
}

// listFiles returns the slash-separated paths of all files below dir.
func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		files = append(files, filepath.ToSlash(rel))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

func buildPipeline(steps ...Step) *Pipeline {
	p := New(WithLogger(discardLogger()))
	p.AddSteps(steps...)
	return p
}

func TestScanStep(t *testing.T) {
	t.Parallel()

	t.Run("builds the trie", func(t *testing.T) {
		t.Parallel()

		b := NewBuild("", testConfig(t))
		if err := NewScanStep(discardLogger(), nil).Do(context.Background(), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.Trie == nil || b.Trie.Len() != 5 {
			t.Errorf("expected 5 routes, got %v", b.Trie)
		}
	})

	t.Run("empty content directory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.ContentDir = t.TempDir()
		err := NewScanStep(discardLogger(), nil).Do(context.Background(), NewBuild("", cfg))
		if !errors.Is(err, ErrNoRoutes) {
			t.Errorf("expected ErrNoRoutes, got %v", err)
		}
	})

	t.Run("missing content directory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.ContentDir = filepath.Join(t.TempDir(), "missing")
		if err := NewScanStep(nil, nil).Do(context.Background(), NewBuild("", cfg)); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCrawlStep_SingleRoot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	b := NewBuild("docs", cfg)
	p := buildPipeline(NewScanStep(discardLogger(), nil), NewCrawlStep(WithCrawlLogger(discardLogger())))

	if err := p.Execute(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"about.html", "blog.html", "blog/post-1.html", "blog/post-2.html", "index.html"}
	if got := listFiles(t, cfg.OutputDir); !reflect.DeepEqual(got, want) {
		t.Errorf("written = %v, want %v", got, want)
	}

	about, err := os.ReadFile(filepath.Join(cfg.OutputDir, "about.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(about) != "<h1>About Acme</h1>" {
		t.Errorf("about.html = %q", about)
	}

	if b.Report == nil || b.Report.Site != "docs" || b.Report.Mode != model.ModeSingleRoot {
		t.Fatalf("unexpected report: %+v", b.Report)
	}
	if c := b.Report.Counts(); c.Rendered != 5 || c.Broken != 0 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestCrawlStep_Exhaustive(t *testing.T) {
	t.Parallel()

	t.Run("whole content directory", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Dir = "."
		b := NewBuild("", cfg)
		p := buildPipeline(NewScanStep(discardLogger(), nil), NewCrawlStep(WithCrawlLogger(discardLogger())))

		if err := p.Execute(context.Background(), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"about.html", "blog.html", "blog/post-1.html", "blog/post-2.html", "index.html"}
		if got := listFiles(t, cfg.OutputDir); !reflect.DeepEqual(got, want) {
			t.Errorf("written = %v, want %v", got, want)
		}
		if !reflect.DeepEqual(b.Report.Skipped, []string{"/users/:id"}) {
			t.Errorf("Skipped = %v", b.Report.Skipped)
		}
	})

	t.Run("subdirectory", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Dir = "blog"
		cfg.CrawlIgnore = []string{"/"}
		b := NewBuild("", cfg)
		p := buildPipeline(NewScanStep(discardLogger(), nil), NewCrawlStep(WithCrawlLogger(discardLogger())))

		if err := p.Execute(context.Background(), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"blog/post-1.html", "blog/post-2.html"}
		if got := listFiles(t, cfg.OutputDir); !reflect.DeepEqual(got, want) {
			t.Errorf("written = %v, want %v", got, want)
		}
	})
}

func TestCrawlStep_RequiresTrie(t *testing.T) {
	t.Parallel()

	if err := NewCrawlStep().Do(context.Background(), NewBuild("", config.NewConfig())); err == nil {
		t.Error("expected error without trie")
	}
}

func TestEnumeratedPaths(t *testing.T) {
	t.Parallel()

	trie, err := route.Build(map[string]route.HandlerRef{
		"index.gohtml":        "home",
		"blog/index.gohtml":   "blog",
		"blog/post.gohtml":    "post",
		"blogroll.gohtml":     "roll",
		"docs/a/intro.gohtml": "intro",
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		dir  string
		want []string
	}{
		{".", []string{"blog/index.gohtml", "blog/post.gohtml", "blogroll.gohtml", "docs/a/intro.gohtml", "index.gohtml"}},
		{"", []string{"blog/index.gohtml", "blog/post.gohtml", "blogroll.gohtml", "docs/a/intro.gohtml", "index.gohtml"}},
		{"blog", []string{"blog/index.gohtml", "blog/post.gohtml"}},
		{"/blog/", []string{"blog/index.gohtml", "blog/post.gohtml"}},
		{"docs", []string{"docs/a/intro.gohtml"}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			t.Parallel()
			if got := EnumeratedPaths(trie, tt.dir); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EnumeratedPaths(%q) = %v, want %v", tt.dir, got, tt.want)
			}
		})
	}
}

func TestDefaultStore(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.OutputDir = t.TempDir()

	store, err := DefaultStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*output.DirStore); !ok {
		t.Errorf("expected *output.DirStore, got %T", store)
	}

	cfg.S3Bucket = "site"
	store, err = DefaultStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*output.MultiStore); !ok {
		t.Errorf("expected *output.MultiStore, got %T", store)
	}
}

func TestPruneStep(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Prune = []string{"*.js", "blog/post-2.html"}
	b := NewBuild("", cfg)

	if err := os.MkdirAll(filepath.Join(cfg.OutputDir, "server"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "server", "entry.js"), []byte("js"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := buildPipeline(
		NewScanStep(discardLogger(), nil),
		NewCrawlStep(WithCrawlLogger(discardLogger())),
		NewPruneStep(discardLogger()),
	)
	if err := p.Execute(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, gone := range []string{"server/entry.js", "server", "blog/post-2.html"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, filepath.FromSlash(gone))); !os.IsNotExist(err) {
			t.Errorf("expected %s to be pruned", gone)
		}
	}
	if strings.Join(b.Report.Pruned, ",") != "blog/post-2.html,server/entry.js" {
		t.Errorf("Pruned = %v", b.Report.Pruned)
	}
}

func TestRecordStep(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig(t)
	run := func() *Build {
		t.Helper()
		b := NewBuild("docs", cfg)
		p := buildPipeline(
			NewScanStep(discardLogger(), nil),
			NewCrawlStep(WithCrawlLogger(discardLogger())),
			NewRecordStep(db, discardLogger()),
		)
		if err := p.Execute(context.Background(), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return b
	}

	first := run()
	if first.Previous != nil || first.Diff != nil {
		t.Error("first build should have nothing to compare with")
	}

	if err := os.WriteFile(filepath.Join(cfg.ContentDir, "about.gohtml"), []byte("<h1>About us</h1>"), 0o600); err != nil {
		t.Fatal(err)
	}

	second := run()
	if second.Previous == nil || second.Previous.ID != first.Report.ID {
		t.Fatalf("expected previous build %s, got %+v", first.Report.ID, second.Previous)
	}
	if !reflect.DeepEqual(second.Diff.Changed, []string{"/about"}) || second.Diff.Unchanged != 4 {
		t.Errorf("unexpected diff: %+v", second.Diff)
	}

	builds, err := db.ListBuilds(context.Background(), "docs", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(builds) != 2 {
		t.Errorf("expected 2 recorded builds, got %d", len(builds))
	}
}

func TestRecordStep_RequiresReport(t *testing.T) {
	t.Parallel()

	if err := NewRecordStep(nil, nil).Do(context.Background(), NewBuild("", config.NewConfig())); err == nil {
		t.Error("expected error without report")
	}
}
