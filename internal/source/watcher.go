package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/route"
)

// DefaultDebounce is how long the watcher waits for more events before it
// rebuilds.
const DefaultDebounce = 100 * time.Millisecond

// Watcher rebuilds the route table when templates change.
type Watcher struct {
	scanner  *Scanner
	table    *route.Table
	debounce time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// onSwap is called after a new trie went live.
	onSwap func(*route.Trie)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithWatcherMetrics sets the metrics collectors.
func WithWatcherMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// WithOnSwap sets a callback run after each successful swap, for example to
// drop cached templates.
func WithOnSwap(fn func(*route.Trie)) WatcherOption {
	return func(w *Watcher) {
		w.onSwap = fn
	}
}

// NewWatcher creates a watcher that keeps table in sync with scanner's
// content root.
func NewWatcher(scanner *Scanner, table *route.Table, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		scanner:  scanner,
		table:    table,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Rebuild rescans the content root and swaps in the new trie. On error the
// live trie is left untouched.
func (w *Watcher) Rebuild(ctx context.Context) error {
	trie, err := w.scanner.Build(ctx)
	if err != nil {
		w.metrics.RebuildFailed()
		return err
	}

	w.table.Swap(trie)
	w.metrics.RoutesLoaded(trie.Len())
	if w.onSwap != nil {
		w.onSwap(trie)
	}
	w.logger.Info("route table rebuilt", "routes", trie.Len())
	return nil
}

// Run watches the content root until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.scanner.Root()); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, event) {
				continue
			}
			w.logger.Debug("source changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timerC:
			timerC = nil
			if err := w.Rebuild(ctx); err != nil {
				w.logger.Error("route rebuild failed, keeping previous routes", "error", err)
			}
		}
	}
}

// relevant reports whether event can change the route set. New directories
// are added to the watch list.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}

	// Only the set of files matters to the trie; content edits are picked up
	// by the renderer.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasSuffix(event.Name, w.scanner.TemplateExt()) || filepath.Ext(event.Name) == ""
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
