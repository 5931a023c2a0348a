package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/nao1215/sitegen/internal/database"
	"github.com/nao1215/sitegen/internal/model"
	"github.com/nao1215/sitegen/internal/report"
	"github.com/spf13/cobra"
)

const (
	defaultHistoryLimit = 20
	defaultSiteLabel    = "(default)"
	historyDateLayout   = "2006-01-02 15:04:05"
)

// NewHistoryCmd creates the history command.
// Every subcommand works on the build-history database written by build.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and compare recorded builds",
		Long: `History reads the builds recorded by "sitegen build".

Builds are identified by their ID; any unique prefix of an ID is accepted.
Builds without --site are recorded under the default site.

Examples:
  # List recent builds of the default site
  sitegen history list

  # List builds of a named site
  sitegen history list --site docs

  # Show which pages changed between the latest two builds
  sitegen history diff

  # Compare two specific builds
  sitegen history diff 3f2a9c1e 7b01d4aa

  # Show how one page changed over time
  sitegen history page /about

  # Keep only the ten most recent builds
  sitegen history prune --keep 10`,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(), "Directory of the history database")
	cmd.PersistentFlags().StringP("site", "s", "", "Site name (empty for builds without --site)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistorySitesCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDiffCmd())
	cmd.AddCommand(newHistoryPageCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded builds of a site",
		Args:  cobra.NoArgs,
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			builds, err := db.ListBuilds(ctx, site, limit)
			if err != nil {
				return err
			}
			printBuildList(cmd.OutOrStdout(), site, builds)
			return nil
		}),
	}
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of builds to list (0 for all)")
	return cmd
}

func newHistorySitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List sites with recorded builds",
		Args:  cobra.NoArgs,
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, _ string, _ []string) error {
			sites, err := db.ListSites(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sites: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sites) == 0 {
				fmt.Fprintln(out, "No builds recorded yet.")
				fmt.Fprintln(out, "\nUse 'sitegen build' to build and record a site.")
				return nil
			}
			fmt.Fprintf(out, "Sites with recorded builds (%d):\n\n", len(sites))
			for _, s := range sites {
				fmt.Fprintf(out, "  • %s\n", siteLabel(s))
			}
			return nil
		}),
	}
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [build-id]",
		Short: "Print the report of a recorded build (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, args []string) error {
			var (
				build *model.BuildReport
				err   error
			)
			if len(args) == 1 {
				build, err = db.GetBuild(ctx, args[0])
			} else {
				build, err = db.LatestBuild(ctx, site)
			}
			if err != nil {
				return err
			}
			w, err := historyWriter(cmd)
			if err != nil {
				return err
			}
			_, err = w.Write(build)
			return err
		}),
	}
	addHistoryFormatFlags(cmd)
	cmd.Flags().Bool("pages", false, "List every page of the build")
	return cmd
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [from-id [to-id]]",
		Short: "Compare the pages of two builds",
		Long: `Diff compares two builds page by page using the content digest of every
written file.

Without arguments the latest two builds of the site are compared. With one
argument that build is compared to the latest build.`,
		Args: cobra.MaximumNArgs(2),
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, args []string) error {
			from, to, err := diffBuilds(ctx, db, site, args)
			if err != nil {
				return err
			}
			w, err := historyWriter(cmd)
			if err != nil {
				return err
			}
			_, err = w.WriteDiff(model.Diff(from, to))
			return err
		}),
	}
	addHistoryFormatFlags(cmd)
	return cmd
}

func newHistoryPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <url>",
		Short: "Show every recorded version of one page",
		Args:  cobra.ExactArgs(1),
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, args []string) error {
			versions, err := db.PageHistory(ctx, site, args[0])
			if err != nil {
				return err
			}
			printPageHistory(cmd.OutOrStdout(), args[0], versions)
			return nil
		}),
	}
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old builds of a site",
		Args:  cobra.NoArgs,
		RunE: withHistoryDB(func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, _ []string) error {
			keep, err := cmd.Flags().GetInt("keep")
			if err != nil {
				return err
			}
			if keep < 1 {
				return errors.New("--keep must be at least 1")
			}
			n, err := db.DeleteOldBuilds(ctx, site, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d build(s) of %s, kept the latest %d.\n", n, siteLabel(site), keep)
			return nil
		}),
	}
	cmd.Flags().IntP("keep", "k", 10, "Number of most recent builds to keep")
	return cmd
}

// historyRunFunc is a history subcommand body with an open database.
type historyRunFunc func(ctx context.Context, cmd *cobra.Command, db *database.BuildDB, site string, args []string) error

// withHistoryDB opens the history database read-write for the duration of
// one subcommand.
func withHistoryDB(run historyRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dbDir, err := cmd.Flags().GetString("db-dir")
		if err != nil {
			return err
		}
		site, err := cmd.Flags().GetString("site")
		if err != nil {
			return err
		}
		if _, err := setupLogger(cmd); err != nil {
			return err
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		return run(cmd.Context(), cmd, db, site, args)
	}
}

func addHistoryFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
}

func historyWriter(cmd *cobra.Command) (report.Writer, error) {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	if asJSON && asMarkdown {
		return nil, config.ErrConflictingReportFormats
	}

	// Only show defines --pages.
	pages, _ := cmd.Flags().GetBool("pages") //nolint:errcheck // absent on diff

	format := report.FormatText
	switch {
	case asJSON:
		format = report.FormatJSON
	case asMarkdown:
		format = report.FormatMarkdown
	}
	return report.New(format, cmd.OutOrStdout(), getVersion(), pages)
}

// diffBuilds resolves the two builds a diff compares, oldest first.
func diffBuilds(ctx context.Context, db *database.BuildDB, site string, args []string) (*model.BuildReport, *model.BuildReport, error) {
	switch len(args) {
	case 2:
		from, err := db.GetBuild(ctx, args[0])
		if err != nil {
			return nil, nil, err
		}
		to, err := db.GetBuild(ctx, args[1])
		if err != nil {
			return nil, nil, err
		}
		return from, to, nil
	case 1:
		from, err := db.GetBuild(ctx, args[0])
		if err != nil {
			return nil, nil, err
		}
		to, err := db.LatestBuild(ctx, from.Site)
		if err != nil {
			return nil, nil, err
		}
		return from, to, nil
	default:
		recent, err := db.ListBuilds(ctx, site, 2)
		if err != nil {
			return nil, nil, err
		}
		if len(recent) < 2 {
			return nil, nil, fmt.Errorf("at least 2 builds of %s are required for comparison (found %d)", siteLabel(site), len(recent))
		}
		from, err := db.GetBuild(ctx, recent[1].ID)
		if err != nil {
			return nil, nil, err
		}
		to, err := db.GetBuild(ctx, recent[0].ID)
		if err != nil {
			return nil, nil, err
		}
		return from, to, nil
	}
}

func printBuildList(w io.Writer, site string, builds []database.BuildSummary) {
	if len(builds) == 0 {
		fmt.Fprintf(w, "No builds recorded for %s\n", siteLabel(site))
		fmt.Fprintln(w, "\nUse 'sitegen build' to build and record this site.")
		return
	}

	fmt.Fprintf(w, "Builds of %s (%d):\n\n", siteLabel(site), len(builds))
	fmt.Fprintf(w, "  %-36s  %-19s  %-10s  %8s  %s\n", "ID", "Started", "Mode", "Duration", "Result")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 96))
	for _, b := range builds {
		fmt.Fprintf(w, "  %-36s  %-19s  %-10s  %8s  %s\n",
			b.ID,
			b.StartedAt.Local().Format(historyDateLayout),
			b.Mode,
			b.Duration().Round(time.Millisecond),
			formatCounts(b),
		)
	}
	fmt.Fprintln(w, "\nUse 'sitegen history show <id>' to print a build report.")
	fmt.Fprintln(w, "Use 'sitegen history diff' to compare the latest two builds.")
}

func formatCounts(b database.BuildSummary) string {
	if b.Failed() {
		return "FAILED: " + b.Error
	}
	parts := []string{fmt.Sprintf("%d pages", b.Counts.Rendered)}
	if b.Counts.Redirects > 0 {
		parts = append(parts, fmt.Sprintf("%d redirects", b.Counts.Redirects))
	}
	if b.Counts.Broken > 0 {
		parts = append(parts, fmt.Sprintf("%d broken", b.Counts.Broken))
	}
	if b.Counts.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", b.Counts.Skipped))
	}
	return strings.Join(parts, ", ")
}

func printPageHistory(w io.Writer, url string, versions []database.PageVersion) {
	if len(versions) == 0 {
		fmt.Fprintf(w, "No recorded versions of %s\n", url)
		return
	}

	fmt.Fprintf(w, "History of %s (%d builds):\n\n", url, len(versions))
	fmt.Fprintf(w, "  %-36s  %-19s  %6s  %8s  %s\n", "Build", "Started", "Status", "Size", "Digest")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 96))

	var previous string
	for _, v := range versions {
		digest := v.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		marker := ""
		if previous != "" && v.Digest != previous {
			marker = " *"
		}
		previous = v.Digest
		fmt.Fprintf(w, "  %-36s  %-19s  %6d  %8d  %s%s\n",
			v.BuildID, v.StartedAt.Local().Format(historyDateLayout), v.Status, v.Size, digest, marker)
	}
}

func siteLabel(site string) string {
	if site == "" {
		return defaultSiteLabel
	}
	return site
}
