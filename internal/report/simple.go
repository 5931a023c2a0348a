package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitegen/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for the terminal.
// Plain ASCII rules are used so the output pipes cleanly into files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every written page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the page listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the build report in human-readable format.
func (w *SimpleWriter) Write(report *model.BuildReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeBroken(&sb, report)
	w.writeList(&sb, "SKIPPED", report.Skipped)
	w.writeList(&sb, "PRUNED", report.Pruned)
	if w.verbose {
		w.writePages(&sb, report)
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteDiff outputs the page-level difference between two builds.
func (w *SimpleWriter) WriteDiff(diff *model.BuildDiff) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SITEGEN BUILD DIFF")
	fmt.Fprintf(&sb, "From:      %s\n", diff.From)
	fmt.Fprintf(&sb, "To:        %s\n", diff.To)
	fmt.Fprintf(&sb, "Unchanged: %d\n\n", diff.Unchanged)

	if !diff.HasChanges() {
		sb.WriteString("No page changes.\n")
		return w.output.Write([]byte(sb.String()))
	}

	writeMarked(&sb, "ADDED", "+", diff.Added, w.showEmpty)
	writeMarked(&sb, "REMOVED", "-", diff.Removed, w.showEmpty)
	writeMarked(&sb, "CHANGED", "~", diff.Changed, w.showEmpty)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.BuildReport) {
	writeBanner(sb, "SITEGEN BUILD REPORT")

	fmt.Fprintf(sb, "Build:    %s\n", report.ID)
	if report.Site != "" {
		fmt.Fprintf(sb, "Site:     %s\n", report.Site)
	}
	fmt.Fprintf(sb, "Mode:     %s\n", report.Mode)
	if report.Root != "" {
		fmt.Fprintf(sb, "Root:     %s\n", report.Root)
	}
	fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration().Round(1e6))
	fmt.Fprintf(sb, "Status:   %s\n\n", statusText(report))
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.BuildReport) {
	c := report.Counts()
	writeSection(sb, "SUMMARY")
	fmt.Fprintf(sb, "  Rendered:  %d\n", c.Rendered)
	fmt.Fprintf(sb, "  Redirects: %d\n", c.Redirects)
	fmt.Fprintf(sb, "  Broken:    %d\n", c.Broken)
	fmt.Fprintf(sb, "  Skipped:   %d\n", c.Skipped)
	fmt.Fprintf(sb, "  Written:   %s\n\n", formatBytes(c.Bytes))
}

func (w *SimpleWriter) writeBroken(sb *strings.Builder, report *model.BuildReport) {
	if len(report.Broken) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "BROKEN LINKS")
	if len(report.Broken) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, b := range report.Broken {
		if b.Referrer == "" {
			fmt.Fprintf(sb, "  [!] %s\n", b.URL)
			continue
		}
		fmt.Fprintf(sb, "  [!] %s (linked from %s)\n", b.URL, b.Referrer)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeList(sb *strings.Builder, title string, entries []string) {
	if len(entries) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, title)
	if len(entries) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(sb, "  - %s\n", e)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.BuildReport) {
	writeSection(sb, "PAGES")
	for _, p := range report.Pages {
		marker := " "
		if p.IsRedirect() {
			marker = ">"
		}
		fmt.Fprintf(sb, "  %s %-40s %-40s %8s\n", marker, p.URL, p.Path, formatBytes(p.Size))
	}
	sb.WriteString("\n")
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func writeMarked(sb *strings.Builder, title, mark string, entries []string, showEmpty bool) {
	if len(entries) == 0 && !showEmpty {
		return
	}
	writeSection(sb, title)
	for _, e := range entries {
		fmt.Fprintf(sb, "  %s %s\n", mark, e)
	}
	sb.WriteString("\n")
}
