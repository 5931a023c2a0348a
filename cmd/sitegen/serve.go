package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/metrics"
	"github.com/nao1215/sitegen/internal/render"
	"github.com/nao1215/sitegen/internal/route"
	"github.com/nao1215/sitegen/internal/site"
	"github.com/nao1215/sitegen/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	defaultMetricsPath = "/metrics"
	shutdownTimeout    = 5 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site from its templates",
		Long: `Serve renders pages on request, exactly as "sitegen build" would write them.

Requests under /assets/ are served from the assets directory and Prometheus
metrics are exposed on /metrics. Everything else is resolved through the route
table: non-canonical URLs such as /about/ or /about.gohtml are redirected, a
directory without an index page gets a generated listing and unknown URLs
answer 404.

With --watch, adding, removing or renaming templates rebuilds the route table
and edited templates are re-parsed on the next request.

Examples:
  # Serve ./pages on 127.0.0.1:3000
  sitegen serve

  # Reload while editing
  sitegen serve --watch

  # Listen on all interfaces without metrics
  sitegen serve --addr :8080 --metrics-path ""`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addContentFlags(cmd)
	addRenderFlags(cmd)

	cmd.Flags().StringP("addr", "a", config.DefaultAddr, "Listen address")
	cmd.Flags().String("assets", config.DefaultAssetsDir, "Directory served under /assets/")
	cmd.Flags().BoolP("watch", "w", false, "Rebuild routes and reload templates on file changes")
	cmd.Flags().String("metrics-path", defaultMetricsPath, "Path of the Prometheus endpoint (empty disables it)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	file, path, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	name, err := cmd.Flags().GetString("site")
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, file, path, name)
	if err != nil {
		return err
	}
	metricsPath, err := cmd.Flags().GetString("metrics-path")
	if err != nil {
		return err
	}

	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, metricsPath, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s (%d routes) at http://%s\n", cfg.ContentDir, srv.routes, cfg.Addr)
	return srv.run(ctx, cfg.Addr)
}

// server is the development server of one site.
type server struct {
	handler http.Handler
	watcher *source.Watcher
	routes  int
	logger  *slog.Logger
}

// newServer scans the content directory and assembles the HTTP handler.
func newServer(ctx context.Context, cfg *config.Config, metricsPath string, reg *prometheus.Registry, logger *slog.Logger) (*server, error) {
	m := metrics.New(metrics.WithRegistry(reg))

	scanner, err := source.NewScanner(cfg.ContentDir,
		source.WithTemplateExt(cfg.TemplateExt),
		source.WithIgnore(cfg.Ignore),
		source.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	trie, err := scanner.Build(ctx)
	if err != nil {
		return nil, err
	}
	m.RoutesLoaded(trie.Len())
	table := route.NewTable(trie)

	renderer := render.NewTemplateRenderer(
		render.WithReload(cfg.Watch),
		render.WithPartials(cfg.Partials...),
		render.WithLogger(logger),
		render.WithMetrics(m),
	)
	s := site.New(table, renderer,
		site.WithLogger(logger),
		site.WithMetrics(m),
		site.WithGlobal(cfg.Global),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if info, err := os.Stat(cfg.AssetsDir); err == nil && info.IsDir() {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.AssetsDir))))
	} else {
		logger.Debug("assets directory not found, /assets/ disabled", "dir", cfg.AssetsDir)
	}
	r.Handle("/*", s)

	srv := &server{handler: r, routes: trie.Len(), logger: logger}
	if cfg.Watch {
		srv.watcher = source.NewWatcher(scanner, table,
			source.WithWatcherLogger(logger),
			source.WithWatcherMetrics(m),
			source.WithOnSwap(func(t *route.Trie) {
				renderer.Invalidate()
				logger.Info("routes reloaded", "routes", t.Len())
			}),
		)
	}
	return srv, nil
}

// run listens on addr until ctx is cancelled.
func (s *server) run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil {
				errCh <- fmt.Errorf("watcher: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to shut down: %w", err))
	}
	return runErr
}

// requestLogger logs every request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"url", r.URL.RequestURI(),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
