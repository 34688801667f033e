package resource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/pageloader/internal/fetcher"
	"github.com/nao1215/pageloader/internal/filename"
	"github.com/nao1215/pageloader/internal/markup"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of resources downloaded at once when no
// limit is configured.
const DefaultConcurrency = 8

// Fetcher retrieves a resource as a stream.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// Store saves a stream under a path.
type Store interface {
	WriteStream(path string, r io.Reader) (int64, error)
}

// Rewriter points a reference at a new location.
type Rewriter interface {
	Rewrite(ref markup.Reference, value string)
}

// Destination is the directory resources are saved into.
type Destination struct {
	// DirName is the directory name used in rewritten references,
	// relative to the saved page.
	DirName string

	// DirPath is the directory's filesystem path.
	DirPath string
}

// Result is the outcome for one reference.
type Result struct {
	Reference markup.Reference

	// URL is the absolute resource URL.
	URL string

	// Path is the saved file's filesystem path. Empty until the name is
	// known.
	Path string

	// RelPath is the value written into the reference.
	RelPath string

	State       State
	Bytes       int64
	ContentType string
	Duration    time.Duration

	// Err is set when State is StateFailed. It wraps ErrFetch or ErrWrite.
	Err error
}

// OK reports whether the resource was saved and its reference rewritten.
func (r Result) OK() bool {
	return r.State == StateWritten
}

// Synchronizer downloads resources concurrently.
type Synchronizer struct {
	fetcher     Fetcher
	store       Store
	resolver    filename.ExtensionResolver
	concurrency int
	logger      *slog.Logger

	onSettle func(Result)
	settleMu sync.Mutex
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithConcurrency sets the number of concurrent downloads.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) {
		s.concurrency = n
	}
}

// WithResolver sets the content type to extension mapping used for
// resources whose URL path has no extension.
func WithResolver(r filename.ExtensionResolver) Option {
	return func(s *Synchronizer) {
		s.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithOnSettle registers fn to be called with every final Result. Calls
// are serialized.
func WithOnSettle(fn func(Result)) Option {
	return func(s *Synchronizer) {
		s.onSettle = fn
	}
}

// New creates a Synchronizer.
func New(f Fetcher, store Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		fetcher:     f,
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.resolver == nil {
		s.resolver = filename.DefaultTable()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Sync downloads every reference into dest and rewrites the references
// that were saved. It waits for all downloads to settle and returns one
// Result per reference, in the order of refs. The destination directory
// must already exist.
func (s *Synchronizer) Sync(ctx context.Context, doc Rewriter, refs []markup.Reference, dest Destination) []Result {
	results := make([]Result, len(refs))
	if len(refs) == 0 {
		return results
	}

	s.logger.Debug("synchronizing resources",
		"count", len(refs),
		"concurrency", s.concurrency,
		"dir", dest.DirPath,
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			results[i] = s.syncOne(ctx, doc, ref, dest)
			s.settle(results[i])
			// Failures live in the Result so the remaining downloads
			// keep going.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Synchronizer) syncOne(ctx context.Context, doc Rewriter, ref markup.Reference, dest Destination) Result {
	start := time.Now()
	res := Result{
		Reference: ref,
		URL:       ref.URL.String(),
		State:     StateDiscovered,
	}

	if err := ctx.Err(); err != nil {
		return s.fail(res, start, fmt.Errorf("%w %s: %w", ErrFetch, res.URL, err))
	}

	res.State = StateFetching
	resp, err := s.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return s.fail(res, start, fmt.Errorf("%w %s: %w", ErrFetch, res.URL, err))
	}
	defer resp.Body.Close()

	res.State = StateFetched
	res.ContentType = resp.ContentType

	body := bufio.NewReaderSize(resp.Body, filename.SniffLen)
	fallbackExt := ""
	if filename.Extension(ref.URL) == "" {
		head, err := body.Peek(filename.SniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return s.fail(res, start, fmt.Errorf("%w %s: %w", ErrFetch, res.URL, err))
		}
		fallbackExt = filename.ResolveExtension(s.resolver, resp.ContentType, head)
	}

	name := filename.Resource(ref.URL, fallbackExt)
	res.Path = filepath.Join(dest.DirPath, name)
	res.RelPath = path.Join(dest.DirName, name)

	res.State = StateWriting
	src := &errorTrackingReader{r: body}
	n, err := s.store.WriteStream(res.Path, src)
	res.Bytes = n
	if err != nil {
		if src.err != nil {
			return s.fail(res, start, fmt.Errorf("%w %s: %w", ErrFetch, res.URL, src.err))
		}
		return s.fail(res, start, fmt.Errorf("%w %s: %w", ErrWrite, res.Path, err))
	}

	doc.Rewrite(ref, res.RelPath)
	res.State = StateWritten
	res.Duration = time.Since(start)

	s.logger.Debug("resource saved",
		"url", res.URL,
		"path", res.Path,
		"bytes", res.Bytes,
		"duration", res.Duration,
	)
	return res
}

func (s *Synchronizer) fail(res Result, start time.Time, err error) Result {
	res.State = StateFailed
	res.Err = err
	res.Duration = time.Since(start)

	s.logger.Warn("resource not saved",
		"url", res.URL,
		"error", err,
	)
	return res
}

func (s *Synchronizer) settle(res Result) {
	if s.onSettle == nil {
		return
	}
	s.settleMu.Lock()
	defer s.settleMu.Unlock()
	s.onSettle(res)
}

// errorTrackingReader remembers the first read error other than io.EOF so
// a failed copy can be attributed to the download rather than the disk.
type errorTrackingReader struct {
	r   io.Reader
	err error
}

func (t *errorTrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
