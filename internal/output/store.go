package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/sitegen/internal/source"
)

// ErrWrite is returned when a page cannot be written to the store.
var ErrWrite = errors.New("failed to write output")

// Store receives rendered pages.
type Store interface {
	// Write stores content at name, a forward-slash path relative to the
	// store's root. Missing parent directories are created.
	Write(ctx context.Context, name string, content []byte) error
}

// DirStore writes pages below a local directory.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Root returns the store's root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Write implements Store.
func (s *DirStore) Write(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
	}
	if err := os.WriteFile(target, content, 0o600); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
	}
	return nil
}

// resolve maps name to a path inside the root, refusing names that escape it.
func (s *DirStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty file name", ErrWrite)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Prune removes files below the root whose relative path or base name matches
// one of patterns (source.MatchPattern syntax). Directories left empty are removed
// too. The removed files are returned as sorted relative paths.
func (s *DirStore) Prune(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	var removed []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !source.MatchAny(patterns, rel) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to prune %s: %w", s.root, err)
	}

	for _, rel := range removed {
		removeEmptyParents(s.root, filepath.Dir(filepath.Join(s.root, filepath.FromSlash(rel))))
	}
	sort.Strings(removed)
	return removed, nil
}

// removeEmptyParents removes dir and its ancestors up to (not including)
// root while they are empty.
func removeEmptyParents(root, dir string) {
	for dir != root && strings.HasPrefix(dir, root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
