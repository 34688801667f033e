package loader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/pageloader/internal/config"
	"github.com/nao1215/pageloader/internal/fetcher"
	"github.com/nao1215/pageloader/internal/filename"
	"github.com/nao1215/pageloader/internal/markup"
	"github.com/nao1215/pageloader/internal/persist"
	"github.com/nao1215/pageloader/internal/resource"
)

// PageFetcher downloads the page and its resources.
type PageFetcher interface {
	resource.Fetcher
	FetchPage(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Store persists the page and its resources.
type Store interface {
	resource.Store
	EnsureDir(path string) error
	WriteMarkup(path string, doc persist.Renderer) error
}

// Paths are the output locations derived from a page URL.
type Paths struct {
	// HTMLFile is the path of the saved page.
	HTMLFile string

	// ResourceDirName is the resource directory name as it appears in
	// rewritten references.
	ResourceDirName string

	// ResourceDir is the resource directory path, a sibling of HTMLFile.
	ResourceDir string
}

// DerivePaths returns the output locations for rawURL under dir.
func DerivePaths(rawURL, dir string) Paths {
	rawURL = strings.TrimSpace(rawURL)
	dirName := filename.ResourceDir(rawURL)
	return Paths{
		HTMLFile:        filepath.Join(dir, filename.Page(rawURL)),
		ResourceDirName: dirName,
		ResourceDir:     filepath.Join(dir, dirName),
	}
}

// Result describes a completed Load.
type Result struct {
	// Filepath is the path of the saved page.
	Filepath string

	// ResourceDir is the resource directory path. It is empty when the
	// page references no local resources.
	ResourceDir string

	// URL is the page URL.
	URL string

	// Title is the page title, if any.
	Title string

	// Resources holds one entry per local reference in document order.
	Resources []resource.Result

	// Duration is the wall time of the whole load.
	Duration time.Duration
}

// Saved returns the resources that were saved.
func (r *Result) Saved() []resource.Result {
	return r.filter(true)
}

// Failed returns the resources that could not be saved.
func (r *Result) Failed() []resource.Result {
	return r.filter(false)
}

func (r *Result) filter(ok bool) []resource.Result {
	out := make([]resource.Result, 0, len(r.Resources))
	for _, res := range r.Resources {
		if res.OK() == ok {
			out = append(out, res)
		}
	}
	return out
}

// Loader downloads pages. A Loader holds no per-page state and may run
// several loads concurrently.
type Loader struct {
	fetcher     PageFetcher
	store       Store
	resolver    filename.ExtensionResolver
	concurrency int
	logger      *slog.Logger

	onDiscover func(total int)
	onSettle   func(resource.Result)
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher sets the fetcher used for the page and its resources.
func WithFetcher(f PageFetcher) Option {
	return func(l *Loader) {
		l.fetcher = f
	}
}

// WithStore sets the store.
func WithStore(s Store) Option {
	return func(l *Loader) {
		l.store = s
	}
}

// WithResolver sets the content type to extension mapping.
func WithResolver(r filename.ExtensionResolver) Option {
	return func(l *Loader) {
		l.resolver = r
	}
}

// WithConcurrency sets the number of concurrent resource downloads.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		l.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithOnDiscover registers fn to be called with the number of local
// resources once the page has been parsed.
func WithOnDiscover(fn func(total int)) Option {
	return func(l *Loader) {
		l.onDiscover = fn
	}
}

// WithOnSettle registers fn to be called with every resource result.
func WithOnSettle(fn func(resource.Result)) Option {
	return func(l *Loader) {
		l.onSettle = fn
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		concurrency: config.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.fetcher == nil {
		l.fetcher = fetcher.New(
			fetcher.WithTimeout(config.DefaultTimeout),
			fetcher.WithUserAgent(config.DefaultUserAgent),
			fetcher.WithLogger(l.logger),
		)
	}
	if l.store == nil {
		l.store = persist.New(persist.WithLogger(l.logger))
	}
	if l.resolver == nil {
		l.resolver = filename.DefaultTable()
	}
	return l
}

// LoadPage saves the page at rawURL into dir with default settings.
// An empty dir means the current working directory.
func LoadPage(ctx context.Context, rawURL, dir string) (*Result, error) {
	return New().Load(ctx, rawURL, dir)
}

// Load saves the page at rawURL and its local resources into dir.
// An empty dir means the current working directory. The page is written
// after every resource has settled; a cancelled ctx leaves it unwritten.
func (l *Loader) Load(ctx context.Context, rawURL, dir string) (*Result, error) {
	start := time.Now()

	rawURL = strings.TrimSpace(rawURL)
	target, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	dir, err = resolveDir(dir)
	if err != nil {
		return nil, err
	}
	paths := DerivePaths(rawURL, dir)

	l.logger.Info("loading page", "url", target, "dir", dir)

	page, err := l.fetcher.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageFetch, err)
	}

	doc, err := markup.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Filepath: paths.HTMLFile,
		URL:      rawURL,
		Title:    doc.Title(),
	}

	refs := doc.LocalResources(target)
	l.logger.Debug("local resources found", "count", len(refs))
	if l.onDiscover != nil {
		l.onDiscover(len(refs))
	}

	if len(refs) > 0 {
		if err := l.store.EnsureDir(paths.ResourceDir); err != nil {
			return nil, err
		}
		result.ResourceDir = paths.ResourceDir

		syncOpts := []resource.Option{
			resource.WithConcurrency(l.concurrency),
			resource.WithResolver(l.resolver),
			resource.WithLogger(l.logger),
		}
		if l.onSettle != nil {
			syncOpts = append(syncOpts, resource.WithOnSettle(l.onSettle))
		}
		dest := resource.Destination{
			DirName: paths.ResourceDirName,
			DirPath: paths.ResourceDir,
		}
		result.Resources = resource.New(l.fetcher, l.store, syncOpts...).Sync(ctx, doc, refs, dest)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := l.store.WriteMarkup(paths.HTMLFile, doc); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	l.logger.Info("page saved",
		"path", result.Filepath,
		"resources", len(result.Resources),
		"failed", len(result.Failed()),
		"duration", result.Duration,
	)
	return result, nil
}

// ParseTarget validates rawURL as an absolute http or https URL.
func ParseTarget(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, rawURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// resolveDir returns the absolute form of dir, which must be an existing
// directory. An empty dir resolves to the working directory.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrDestination, err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDestination, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDestination, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDestination, abs)
	}
	return abs, nil
}
