package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitegen/internal/model"
)

func setupTestDB(t *testing.T) *BuildDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newReport(id, site string, offset time.Duration, pages ...model.PageRecord) *model.BuildReport {
	r := model.NewBuildReport(id, model.ModeSingleRoot)
	r.Site = site
	r.Root = "/"
	r.StartedAt = baseTime.Add(offset)
	for _, p := range pages {
		r.AddPage(p)
	}
	r.Finish(nil)
	r.FinishedAt = r.StartedAt.Add(2 * time.Second)
	return r
}

func page(url, body string) model.PageRecord {
	return model.NewPageRecord(url, url+".html", 200, []byte(body))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
		if _, err := os.Stat(db.Path()); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("CreateIfNotExists=false fails for a missing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		if _, err := Open(dbDir, Options{}); err == nil {
			t.Fatal("expected error")
		}
		if _, err := os.Stat(dbDir); !os.IsNotExist(err) {
			t.Error("directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := db.SaveBuild(context.Background(), newReport("b1", "", 0)); err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		if _, err := db.GetBuild(context.Background(), "b1"); err != nil {
			t.Errorf("expected stored build, got %v", err)
		}
	})
}

func TestSaveAndGetBuild(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	report := newReport("3f2a9c10-0000-4000-8000-000000000001", "docs", 0,
		page("/", "<p>home</p>"),
		page("/about", "<p>about</p>"),
		model.NewPageRecord("/index", "index.html", 301, []byte("Redirecting")),
	)
	report.AddBroken(model.BrokenLink{URL: "/missing", Referrer: "/"})
	report.Pruned = []string{"server.js"}

	if err := db.SaveBuild(ctx, report); err != nil {
		t.Fatalf("failed to save build: %v", err)
	}

	t.Run("full id", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetBuild(ctx, report.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Site != "docs" || got.Mode != model.ModeSingleRoot || got.Root != "/" {
			t.Errorf("unexpected build: %+v", got)
		}
		if len(got.Pages) != 3 || len(got.Broken) != 1 || len(got.Pruned) != 1 {
			t.Errorf("unexpected contents: %d pages, %d broken, %d pruned", len(got.Pages), len(got.Broken), len(got.Pruned))
		}
		if !got.StartedAt.Equal(report.StartedAt) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, report.StartedAt)
		}
	})

	t.Run("unique prefix", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetBuild(ctx, "3f2a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != report.ID {
			t.Errorf("got build %s", got.ID)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		if _, err := db.GetBuild(ctx, "ffff"); !errors.Is(err, ErrBuildNotFound) {
			t.Errorf("expected ErrBuildNotFound, got %v", err)
		}
		if _, err := db.GetBuild(ctx, ""); !errors.Is(err, ErrBuildNotFound) {
			t.Errorf("expected ErrBuildNotFound for empty id, got %v", err)
		}
	})

	t.Run("summary counts", func(t *testing.T) {
		t.Parallel()

		builds, err := db.ListBuilds(ctx, "docs", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(builds) != 1 {
			t.Fatalf("expected 1 build, got %d", len(builds))
		}
		s := builds[0]
		if s.Counts.Rendered != 2 || s.Counts.Redirects != 1 || s.Counts.Broken != 1 {
			t.Errorf("unexpected counts: %+v", s.Counts)
		}
		if s.Duration() != 2*time.Second || s.Failed() {
			t.Errorf("unexpected summary: %+v", s)
		}
	})
}

func TestSaveBuild_ReplacesExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	if err := db.SaveBuild(ctx, newReport("b1", "site", 0, page("/", "a"), page("/old", "b"))); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveBuild(ctx, newReport("b1", "site", 0, page("/", "c"))); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetBuild(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Pages) != 1 {
		t.Errorf("expected replaced build with 1 page, got %d", len(got.Pages))
	}
	versions, err := db.PageHistory(ctx, "site", "/old")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 0 {
		t.Errorf("expected stale page rows to be removed, got %v", versions)
	}
}

func TestAmbiguousPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	for i, id := range []string{"ab12", "ab34"} {
		if err := db.SaveBuild(ctx, newReport(id, "", time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := db.GetBuild(ctx, "ab"); !errors.Is(err, ErrAmbiguousBuildID) {
		t.Errorf("expected ErrAmbiguousBuildID, got %v", err)
	}
	if got, err := db.GetBuild(ctx, "ab3"); err != nil || got.ID != "ab34" {
		t.Errorf("expected ab34, got %v, %v", got, err)
	}
}

func TestHistoryQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	builds := []*model.BuildReport{
		newReport("docs-1", "docs", 0, page("/", "v1")),
		newReport("docs-2", "docs", time.Hour, page("/", "v1")),
		newReport("docs-3", "docs", 2*time.Hour, page("/", "v2")),
		newReport("blog-1", "blog", 30*time.Minute, page("/", "blog")),
	}
	for _, b := range builds {
		if err := db.SaveBuild(ctx, b); err != nil {
			t.Fatalf("failed to save %s: %v", b.ID, err)
		}
	}

	t.Run("list newest first", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListBuilds(ctx, "docs", 0)
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]string, len(got))
		for i, s := range got {
			ids[i] = s.ID
		}
		want := []string{"docs-3", "docs-2", "docs-1"}
		if len(ids) != len(want) {
			t.Fatalf("got %v, want %v", ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("got %v, want %v", ids, want)
			}
		}
	})

	t.Run("list with limit", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListBuilds(ctx, "docs", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "docs-3" {
			t.Errorf("unexpected builds: %+v", got)
		}
	})

	t.Run("latest build", func(t *testing.T) {
		t.Parallel()

		got, err := db.LatestBuild(ctx, "blog")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != "blog-1" {
			t.Errorf("got %s", got.ID)
		}
		if _, err := db.LatestBuild(ctx, "missing"); !errors.Is(err, ErrBuildNotFound) {
			t.Errorf("expected ErrBuildNotFound, got %v", err)
		}
	})

	t.Run("sites", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListSites(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0] != "blog" || got[1] != "docs" {
			t.Errorf("unexpected sites: %v", got)
		}
	})

	t.Run("page history", func(t *testing.T) {
		t.Parallel()

		got, err := db.PageHistory(ctx, "docs", "/")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 versions, got %d", len(got))
		}
		if got[0].BuildID != "docs-3" || got[0].Digest == got[1].Digest {
			t.Errorf("expected newest version to differ: %+v", got)
		}
		if got[1].Digest != got[2].Digest {
			t.Errorf("expected unchanged digest between docs-1 and docs-2: %+v", got)
		}
	})
}

func TestDeleteOldBuilds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	for i := range 4 {
		id := []string{"a", "b", "c", "d"}[i]
		if err := db.SaveBuild(ctx, newReport(id, "docs", time.Duration(i)*time.Hour, page("/", id))); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SaveBuild(ctx, newReport("other", "blog", 0, page("/", "x"))); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteOldBuilds(ctx, "docs", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted builds, got %d", n)
	}

	remaining, err := db.ListBuilds(ctx, "docs", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 || remaining[0].ID != "d" || remaining[1].ID != "c" {
		t.Errorf("unexpected remaining builds: %+v", remaining)
	}
	versions, err := db.PageHistory(ctx, "docs", "/")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Errorf("expected page rows of deleted builds to be gone, got %d", len(versions))
	}
	if _, err := db.GetBuild(ctx, "other"); err != nil {
		t.Errorf("other site must be untouched: %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	if got := parseTimestamp(formatTimestamp(want)); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := parseTimestamp("2026-03-01 12:00:00"); got.IsZero() {
		t.Error("expected SQLite datetime format to parse")
	}
	if got := parseTimestamp("yesterday"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}
