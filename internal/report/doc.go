// Package report writes build reports and build diffs.
//
// Three formats are provided:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for CI tooling
//   - MarkdownWriter: GitHub-flavored Markdown for pull request comments
//
// Report data lives in the model package; this package only formats it.
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
