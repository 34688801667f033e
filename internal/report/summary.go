package report

import (
	"time"

	"github.com/nao1215/pageloader/internal/loader"
)

// Summary is the report data for one page load.
type Summary struct {
	URL         string        `json:"url"`
	Title       string        `json:"title,omitempty"`
	Filepath    string        `json:"filepath"`
	ResourceDir string        `json:"resourceDir,omitempty"`
	Duration    time.Duration `json:"durationNs"`
	Saved       int           `json:"saved"`
	Failed      int           `json:"failed"`
	TotalBytes  int64         `json:"totalBytes"`
	Resources   []Resource    `json:"resources"`
}

// Resource is the report line for one local resource.
type Resource struct {
	URL         string `json:"url"`
	Element     string `json:"element"`
	Path        string `json:"path,omitempty"`
	State       string `json:"state"`
	Bytes       int64  `json:"bytes"`
	ContentType string `json:"contentType,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewSummary builds a Summary from a load result.
func NewSummary(result *loader.Result) *Summary {
	s := &Summary{
		URL:         result.URL,
		Title:       result.Title,
		Filepath:    result.Filepath,
		ResourceDir: result.ResourceDir,
		Duration:    result.Duration,
		Resources:   make([]Resource, 0, len(result.Resources)),
	}

	for _, res := range result.Resources {
		line := Resource{
			URL:         res.URL,
			Element:     res.Reference.Tag,
			Path:        res.RelPath,
			State:       res.State.String(),
			Bytes:       res.Bytes,
			ContentType: res.ContentType,
		}
		if res.OK() {
			s.Saved++
			s.TotalBytes += res.Bytes
		} else {
			s.Failed++
			line.Path = ""
			if res.Err != nil {
				line.Error = res.Err.Error()
			}
		}
		s.Resources = append(s.Resources, line)
	}

	return s
}

// Total returns the number of local resources.
func (s *Summary) Total() int {
	return len(s.Resources)
}

// HasFailures reports whether any resource could not be saved.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}
