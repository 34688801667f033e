package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs a plain text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// showSaved lists saved resources in addition to failed ones.
	showSaved bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowSaved lists every saved resource, not only the failures.
func WithShowSaved(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showSaved = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showSaved:  true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeResources(&sb, summary)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGE-LOADER SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Page:       %s\n", s.URL)
	if s.Title != "" {
		fmt.Fprintf(sb, "Title:      %s\n", s.Title)
	}
	fmt.Fprintf(sb, "Saved to:   %s\n", s.Filepath)
	if s.ResourceDir != "" {
		fmt.Fprintf(sb, "Resources:  %s\n", s.ResourceDir)
	}
	fmt.Fprintf(sb, "Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Saved:      %d of %d (%d bytes)\n", s.Saved, s.Total(), s.TotalBytes)
	fmt.Fprintf(sb, "Failed:     %d\n", s.Failed)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeResources(sb *strings.Builder, s *Summary) {
	if s.Total() == 0 {
		sb.WriteString("No local resources.\n")
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range s.Resources {
		if r.Error != "" {
			fmt.Fprintf(sb, "  [FAIL] %s\n", r.URL)
			fmt.Fprintf(sb, "         %s\n", r.Error)
			continue
		}
		if w.showSaved {
			fmt.Fprintf(sb, "  [ OK ] %s -> %s (%d bytes)\n", r.URL, r.Path, r.Bytes)
		}
	}
	sb.WriteString("\n")
}
