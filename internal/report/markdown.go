package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitegen/internal/model"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown, suitable for
// posting a build summary on a pull request.
type MarkdownWriter struct {
	baseWriter

	pages bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownPages includes the table of written pages.
func WithMarkdownPages(pages bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.pages = pages
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the build report in Markdown format.
func (w *MarkdownWriter) Write(report *model.BuildReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeBroken(md, report)
	if len(report.Skipped) > 0 {
		md.H2("Skipped")
		md.PlainText("")
		md.BulletList(codeSpans(report.Skipped)...)
		md.PlainText("")
	}
	if len(report.Pruned) > 0 {
		md.Details("Pruned files ("+strconv.Itoa(len(report.Pruned))+")", strings.Join(report.Pruned, "\n"))
		md.PlainText("")
	}
	if w.pages {
		w.writePages(md, report)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteDiff outputs the comparison of two builds in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.BuildDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Build Diff")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Pages"},
		Rows: [][]string{
			{"Added", strconv.Itoa(len(diff.Added))},
			{"Removed", strconv.Itoa(len(diff.Removed))},
			{"Changed", strconv.Itoa(len(diff.Changed))},
			{"Unchanged", strconv.Itoa(diff.Unchanged)},
		},
	})
	md.PlainText("")
	md.PlainTextf("Comparing `%s` to `%s`.", shortID(diff.From), shortID(diff.To))
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("No page changes between these builds.")
		md.PlainText("")
	}
	for _, section := range []struct {
		title string
		urls  []string
	}{
		{"Added", diff.Added},
		{"Removed", diff.Removed},
		{"Changed", diff.Changed},
	} {
		if len(section.urls) == 0 {
			continue
		}
		md.H2(section.title)
		md.PlainText("")
		md.BulletList(codeSpans(section.urls)...)
		md.PlainText("")
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.BuildReport) {
	md.H1("Sitegen Build Report")
	md.PlainText("")

	rows := [][]string{{"Build", "`" + report.ID + "`"}}
	if report.Site != "" {
		rows = append(rows, []string{"Site", report.Site})
	}
	rows = append(rows, []string{"Mode", string(report.Mode)})
	if report.Root != "" {
		rows = append(rows, []string{"Root", "`" + report.Root + "`"})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", report.Duration().Round(1e6).String()},
		[]string{"Status", w.statusText(report)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(report *model.BuildReport) string {
	switch {
	case report.Failed():
		return "❌ Failed"
	case len(report.Broken) > 0:
		return "⚠️ Broken links"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.BuildReport) {
	c := report.Counts()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Rendered", strconv.Itoa(c.Rendered)},
			{"Redirects", strconv.Itoa(c.Redirects)},
			{"Broken links", strconv.Itoa(c.Broken)},
			{"Skipped", strconv.Itoa(c.Skipped)},
			{"**Written**", "**" + formatBytes(c.Bytes) + "**"},
		},
	})
	md.PlainText("")

	if c.Rendered+c.Redirects+c.Broken+c.Skipped > 0 {
		w.writePieChart(md, c)
	}
	w.writeAlert(md, report, c)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c model.Counts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Outcomes"),
		piechart.WithShowData(true),
	)
	for _, slice := range []struct {
		label string
		n     int
	}{
		{"Rendered", c.Rendered},
		{"Redirects", c.Redirects},
		{"Broken", c.Broken},
		{"Skipped", c.Skipped},
	} {
		if slice.n > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.n)) //nolint:gosec // counts are non-negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.BuildReport, c model.Counts) {
	switch {
	case report.Failed():
		md.Cautionf("Build failed: %s", report.ErrorMessage)
	case c.Broken > 0:
		md.Warningf("%d broken link(s) point at pages that do not exist.", c.Broken)
	case c.Skipped > 0:
		md.Note(fmt.Sprintf("%d URL(s) were skipped because they need route parameters.", c.Skipped))
	default:
		md.Tip("All links resolved.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeBroken(md *markdown.Markdown, report *model.BuildReport) {
	if len(report.Broken) == 0 {
		return
	}
	md.H2("Broken Links")
	md.PlainText("")

	rows := make([][]string, len(report.Broken))
	for i, b := range report.Broken {
		ref := b.Referrer
		if ref == "" {
			ref = "-"
		} else {
			ref = "`" + truncateString(ref, 60) + "`"
		}
		rows[i] = []string{"`" + truncateString(b.URL, 60) + "`", ref}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Link", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.BuildReport) {
	md.H2("Pages")
	md.PlainText("")
	if len(report.Pages) == 0 {
		md.PlainText("No pages were written.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		digest := "-"
		if p.Digest != "" {
			digest = "`" + truncateString(p.Digest, 12) + "`"
		}
		rows[i] = []string{
			"`" + p.URL + "`",
			p.Path,
			strconv.Itoa(p.Status),
			formatBytes(p.Size),
			digest,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "File", "Status", "Size", "Digest"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitegen](https://github.com/nao1215/sitegen)*")
}

func codeSpans(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = "`" + e + "`"
	}
	return out
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
