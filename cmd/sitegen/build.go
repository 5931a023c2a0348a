package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/database"
	"github.com/nao1215/sitegen/internal/pipeline"
	"github.com/nao1215/sitegen/internal/report"
	"github.com/spf13/cobra"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site into static files",
		Long: `Build renders the site into static files.

By default the build starts at the root URL and follows every same-site link
it finds, writing one file per URL: / becomes index.html, /about becomes
about.html and /blog/ becomes blog/index.html. With --dir the build renders
every page under that subdirectory of the content directory instead.

Finished builds are recorded in the history database so "sitegen history"
can list and compare them.

Examples:
  # Crawl from / and write ./build
  sitegen build

  # Render every page in pages/blog
  sitegen build --dir blog

  # Render the whole content directory
  sitegen build --dir .

  # Build every site of the configuration file, two at a time
  sitegen build --all-sites --batch 2

  # Write a Markdown report for a pull request comment
  sitegen build --markdown --report build-report.md

  # Upload the pages to S3 as well
  sitegen build --s3-bucket my-site --s3-prefix www`,
		Args: cobra.NoArgs,
		RunE: runBuildCmd,
	}

	addContentFlags(cmd)
	addRenderFlags(cmd)

	cmd.Flags().StringP("dir", "d", "",
		`Render every page under this subdirectory of the content directory ("." for all)`)
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Output directory")
	cmd.Flags().StringP("root", "r", config.DefaultRoot, "URL the crawl starts from")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Pages rendered at once")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for the whole build (0 disables it)")
	cmd.Flags().StringSlice("crawl-ignore", nil, "URL patterns the crawler never requests")
	cmd.Flags().StringSlice("prune", nil, "Glob patterns of output files removed after the crawl")
	cmd.Flags().StringToStringP("header", "H", nil, "Request header forwarded to the templates (Name=value)")
	cmd.Flags().Bool("fail-on-broken", false, "Fail the build when a link leads to a missing page")

	cmd.Flags().Bool("all-sites", false, "Build every site of the configuration file")
	cmd.Flags().IntP("batch", "b", pipeline.DefaultBatchConcurrency, "Number of sites built concurrently")

	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "", "Write the report to this file instead of stdout")

	cmd.Flags().Bool("no-history", false, "Do not record the build in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	cmd.Flags().String("s3-bucket", "", "Also upload every page to this S3 bucket")
	cmd.Flags().String("s3-prefix", "", "Key prefix for uploaded pages")
	cmd.Flags().String("s3-region", config.DefaultS3Region, "S3 region")
	cmd.Flags().String("s3-endpoint", "", "S3 endpoint override, e.g. for MinIO")

	return cmd
}

func runBuildCmd(cmd *cobra.Command, _ []string) error {
	cfgs, err := buildConfigs(cmd)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}

	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runBuild(ctx, cmd.OutOrStdout(), cfgs, batch, logger)
}

// buildConfigs returns one validated configuration per site to build.
// Without --site or --all-sites a single build uses the file defaults.
func buildConfigs(cmd *cobra.Command) ([]*config.Config, error) {
	file, path, err := loadConfigFile(cmd)
	if err != nil {
		return nil, err
	}

	site, err := cmd.Flags().GetString("site")
	if err != nil {
		return nil, err
	}
	all, err := cmd.Flags().GetBool("all-sites")
	if err != nil {
		return nil, err
	}

	sites := []string{site}
	if all {
		if site != "" {
			return nil, errors.New("--site and --all-sites are mutually exclusive")
		}
		sites = file.SiteNames()
		if len(sites) == 0 {
			return nil, errors.New("--all-sites requires sites in the configuration file")
		}
	}

	cfgs := make([]*config.Config, 0, len(sites))
	for _, name := range sites {
		cfg, err := resolveConfig(cmd, file, path, name)
		if err != nil {
			if name != "" {
				return nil, fmt.Errorf("site %s: %w", name, err)
			}
			return nil, err
		}
		cfg.Sites = sites
		if !cmd.Flags().Changed("no-history") {
			cfg.SaveToDB = true
		}
		cfgs = append(cfgs, cfg)
	}

	if len(cfgs) > 1 {
		if err := checkDistinctOutputs(cfgs); err != nil {
			return nil, err
		}
	}
	return cfgs, nil
}

// checkDistinctOutputs rejects batches where two sites write to the same
// directory, since one would prune or overwrite the other.
func checkDistinctOutputs(cfgs []*config.Config) error {
	seen := make(map[string]string, len(cfgs))
	for _, cfg := range cfgs {
		if other, ok := seen[cfg.OutputDir]; ok {
			return fmt.Errorf("sites %s and %s both write to %s", other, cfg.Site, cfg.OutputDir)
		}
		seen[cfg.OutputDir] = cfg.Site
	}
	return nil
}

// runBuild builds every configuration and writes one report per build.
func runBuild(ctx context.Context, stdout io.Writer, cfgs []*config.Config, batch int, logger *slog.Logger) error {
	if len(cfgs) == 0 {
		return errors.New("nothing to build")
	}
	first := cfgs[0]

	var db *database.BuildDB
	if first.SaveToDB {
		var err error
		db, err = database.Open(first.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	out := stdout
	if first.ReportFile != "" {
		f, err := report.OpenFile(first.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer, err := report.New(reportFormat(first), out, getVersion(), first.Verbose)
	if err != nil {
		return err
	}

	builds := make([]*pipeline.Build, len(cfgs))
	for i, cfg := range cfgs {
		builds[i] = pipeline.NewBuild(cfg.Site, cfg)
	}

	bp := pipeline.NewBatchProcessor(
		func(b *pipeline.Build) *pipeline.Pipeline {
			return newBuildPipeline(b.Config, db, logger)
		},
		pipeline.WithConcurrency(batch),
		pipeline.WithBatchLogger(logger),
	)

	start := time.Now()
	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, builds, func(b *pipeline.Build, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if b.Failed() {
			failed++
		}
		if err := writeBuildResult(writer, b); err != nil {
			logger.Error("report failed", "site", b.Site, "error", err)
		}
	})
	if err != nil {
		return err
	}

	logger.Info("build finished", "builds", len(builds), "failed", failed, "elapsed", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		if len(builds) == 1 {
			return builds[0].Err
		}
		return fmt.Errorf("%d of %d site builds failed", failed, len(builds))
	}
	return nil
}

// newBuildPipeline assembles the steps for one build.
func newBuildPipeline(cfg *config.Config, db *database.BuildDB, logger *slog.Logger) *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewScanStep(logger, nil),
		pipeline.NewCrawlStep(pipeline.WithCrawlLogger(logger)),
	)
	if len(cfg.Prune) > 0 {
		p.AddStep(pipeline.NewPruneStep(logger))
	}
	if db != nil {
		p.AddStep(pipeline.NewRecordStep(db, logger))
	}
	return p
}

// writeBuildResult reports a finished build, followed by its changes
// against the previous build of the same site.
func writeBuildResult(w report.Writer, b *pipeline.Build) error {
	if b.Report == nil {
		return nil
	}
	if _, err := w.Write(b.Report); err != nil {
		return err
	}
	if b.Diff != nil && b.Diff.HasChanges() {
		if _, err := w.WriteDiff(b.Diff); err != nil {
			return err
		}
	}
	return nil
}

func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}
