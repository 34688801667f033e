package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "page-loader"

	// DefaultTimeout bounds each HTTP request, including reading its body.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of resources downloaded at once.
	DefaultConcurrency = 8

	// DefaultUserAgent identifies page-loader in HTTP requests.
	DefaultUserAgent = "page-loader/1.0 (+https://github.com/nao1215/pageloader)"

	// DefaultMaxBodySize of zero disables the body size limit.
	DefaultMaxBodySize = 0

	// DefaultRateLimit of zero disables request rate limiting.
	DefaultRateLimit = 0

	// DefaultRateBurst is the token bucket size used when a rate is set.
	DefaultRateBurst = 1
)

// Summary formats accepted by Config.Summary.
const (
	SummaryNone     = ""
	SummaryText     = "text"
	SummaryMarkdown = "markdown"
	SummaryJSON     = "json"
)

// Config holds all options for one page-loader run. It is populated from
// CLI flags and the configuration file and passed explicitly to the
// components that need it.
type Config struct {
	// Target is the URL of the page to download.
	Target string

	// OutputDir is the directory the page and its resource directory are
	// written to. Empty means the current working directory.
	OutputDir string

	// Timeout is applied to every HTTP request.
	Timeout time.Duration

	// Concurrency is the maximum number of resources fetched at once.
	Concurrency int

	// RateLimit is the maximum number of requests per second across the
	// page and its resources. Zero disables limiting.
	RateLimit float64

	// RateBurst is the burst size of the rate limiter.
	RateBurst int

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize caps the number of bytes read from any response.
	// Zero disables the cap.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// Summary selects the resource summaries printed after a run: a
	// comma-separated list of the Summary* constants.
	Summary string

	// FailedOnly limits the text summary to resources that were not saved.
	FailedOnly bool

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// File is the loaded configuration file. It is never nil after
	// the CLI has built the config.
	File *File
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		RateLimit:   DefaultRateLimit,
		RateBurst:   DefaultRateBurst,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		File:        NewFile(),
	}
}

// XDGConfigDir returns the XDG config directory for page-loader.
// On Linux this is ~/.config/page-loader.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Target == "" {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return ErrInvalidRateBurst
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	for _, format := range c.SummaryFormats() {
		switch format {
		case SummaryText, SummaryMarkdown, SummaryJSON:
		default:
			return ErrUnknownSummaryFormat
		}
	}
	return nil
}

// SummaryFormats splits Summary into its formats. It returns nil when no
// summary was requested.
func (c *Config) SummaryFormats() []string {
	if strings.TrimSpace(c.Summary) == SummaryNone {
		return nil
	}
	parts := strings.Split(c.Summary, ",")
	formats := make([]string, len(parts))
	for i, p := range parts {
		formats[i] = strings.TrimSpace(p)
	}
	return formats
}
