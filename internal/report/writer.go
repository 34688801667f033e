package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/pageloader/internal/config"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer defines the interface for summary output.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(summary *Summary) (int, error)
}

// NewWriter returns the Writer for format, one of the config.Summary*
// constants other than config.SummaryNone. opts apply to the text writer.
func NewWriter(format string, output io.Writer, opts ...SimpleWriterOption) (Writer, error) {
	switch format {
	case config.SummaryText:
		return NewSimpleWriter(output, opts...), nil
	case config.SummaryMarkdown:
		return NewMarkdownWriter(output), nil
	case config.SummaryJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// NewWriters returns one Writer for a single format and a MultiWriter
// writing each format in turn otherwise.
func NewWriters(formats []string, output io.Writer, opts ...SimpleWriterOption) (Writer, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no format", ErrUnknownFormat)
	}
	writers := make([]Writer, 0, len(formats))
	for _, format := range formats {
		w, err := NewWriter(format, output, opts...)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return NewMultiWriter(writers...), nil
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to every Writer and returns the total bytes
// written. It stops at the first error.
func (m *MultiWriter) Write(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
