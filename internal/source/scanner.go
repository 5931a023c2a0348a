package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/sitegen/internal/route"
)

// Scanner finds page templates below a content root.
type Scanner struct {
	// root is the absolute content root.
	root string

	// ext is the template extension, e.g. ".gohtml".
	ext string

	// ignore are glob patterns of logical paths to skip.
	ignore []string

	logger *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithTemplateExt sets the template extension. Defaults to
// route.DefaultTemplateExt.
func WithTemplateExt(ext string) ScannerOption {
	return func(s *Scanner) {
		s.ext = ext
	}
}

// WithIgnore sets glob patterns of logical paths to skip (see MatchPattern).
// Matching directories are not descended into.
func WithIgnore(patterns []string) ScannerOption {
	return func(s *Scanner) {
		s.ignore = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a scanner for root.
func NewScanner(root string, opts ...ScannerOption) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content root %s: %w", root, err)
	}

	s := &Scanner{
		root:   abs,
		ext:    route.DefaultTemplateExt,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute content root.
func (s *Scanner) Root() string {
	return s.root
}

// TemplateExt returns the template extension.
func (s *Scanner) TemplateExt() string {
	return s.ext
}

// Scan walks the content root and returns logical paths mapped to handler
// references. Hidden files and directories are skipped.
func (s *Scanner) Scan(ctx context.Context) (map[string]route.HandlerRef, error) {
	entries := make(map[string]route.HandlerRef)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		logical := filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") || MatchAny(s.ignore, logical) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(logical, s.ext) {
			return nil
		}

		entries[logical] = route.HandlerRef(p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	s.logger.Debug("scanned content root", "root", s.root, "templates", len(entries))
	return entries, nil
}

// Build scans the content root and builds a trie from the result.
func (s *Scanner) Build(ctx context.Context) (*route.Trie, error) {
	entries, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return route.Build(entries, route.WithTemplateExt(s.ext))
}

// LogicalPaths returns the logical paths of entries, sorted.
func LogicalPaths(entries map[string]route.HandlerRef) []string {
	paths := make([]string, 0, len(entries))
	for logical := range entries {
		paths = append(paths, logical)
	}
	sort.Strings(paths)
	return paths
}
