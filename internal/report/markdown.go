package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	w.writeChart(md, summary)
	w.writeResources(md, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("page-loader Summary")
	md.PlainText("")

	rows := [][]string{
		{"Page", s.URL},
	}
	if s.Title != "" {
		rows = append(rows, []string{"Title", s.Title})
	}
	rows = append(rows,
		[]string{"Saved to", "`" + s.Filepath + "`"},
		[]string{"Resources", strconv.Itoa(s.Saved) + " / " + strconv.Itoa(s.Total())},
		[]string{"Bytes", strconv.FormatInt(s.TotalBytes, 10)},
		[]string{"Duration", s.Duration.Round(time.Millisecond).String()},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.HasFailures():
		md.Warningf("%d of %d local resource(s) could not be saved and keep their original reference.",
			s.Failed, s.Total())
	case s.Total() == 0:
		md.Note("The page references no local resources.")
	default:
		md.Tip("Every local resource was saved.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeChart(md *markdown.Markdown, s *Summary) {
	if !s.HasFailures() {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Outcome"),
		piechart.WithShowData(true),
	)
	chart.LabelAndIntValue("Saved", uint64(s.Saved))
	chart.LabelAndIntValue("Failed", uint64(s.Failed))

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeResources(md *markdown.Markdown, s *Summary) {
	md.H2("Resources")
	md.PlainText("")

	if s.Total() == 0 {
		md.PlainText("No local resources.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Resources))
	for i, r := range s.Resources {
		target := r.Path
		if r.Error != "" {
			target = truncateString(r.Error, 60)
		}
		rows[i] = []string{
			r.Element,
			truncateString(r.URL, 60),
			r.State,
			strconv.FormatInt(r.Bytes, 10),
			target,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Element", "URL", "State", "Bytes", "Saved As / Error"},
		Rows:   rows,
	})
	md.PlainText("")
}
