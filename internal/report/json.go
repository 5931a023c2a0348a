package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitegen/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as JSON.
func (w *JSONWriter) Write(report *model.BuildReport) (int, error) {
	return w.writeJSON(report)
}

// WriteDiff outputs the diff as JSON.
func (w *JSONWriter) WriteDiff(diff *model.BuildDiff) (int, error) {
	return w.writeJSON(diff)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a build report with the generating version and the
// summary counts, so consumers need not recompute them.
type JSONReport struct {
	Version string             `json:"version"`
	Summary model.Counts       `json:"summary"`
	Report  *model.BuildReport `json:"report"`
}

// JSONDiff wraps a diff with the generating version.
type JSONDiff struct {
	Version string           `json:"version"`
	Diff    *model.BuildDiff `json:"diff"`
}

// FullJSONWriter outputs reports inside a JSONReport envelope.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.BuildReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Summary: report.Counts(),
		Report:  report,
	})
}

// WriteDiff outputs the diff wrapped with metadata.
func (w *FullJSONWriter) WriteDiff(diff *model.BuildDiff) (int, error) {
	return w.writeJSON(&JSONDiff{Version: w.version, Diff: diff})
}
