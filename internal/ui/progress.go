package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/pageloader/internal/resource"
	"github.com/schollz/progressbar/v3"
)

// Progress shows resource downloads as a progress bar. The bar is created
// once the number of resources is known. A nil *Progress is valid and
// does nothing.
type Progress struct {
	output io.Writer

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	failed int
}

// NewProgress creates a Progress writing to output.
func NewProgress(output io.Writer) *Progress {
	return &Progress{output: output}
}

// Start creates the bar for total resources. It does nothing for zero.
func (p *Progress) Start(total int) {
	if p == nil || total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.output),
		progressbar.OptionSetDescription("Downloading resources"),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// Settle advances the bar by one resource.
func (p *Progress) Settle(res resource.Result) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	if !res.OK() {
		p.failed++
		p.bar.Describe(failedDescription(p.failed))
	}
	_ = p.bar.Add(1)
}

// Finish completes and clears the bar.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func failedDescription(n int) string {
	return fmt.Sprintf("Downloading resources (%d failed)", n)
}
