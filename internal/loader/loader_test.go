package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/pageloader/internal/fetcher"
	"github.com/nao1215/pageloader/internal/persist"
	"github.com/nao1215/pageloader/internal/resource"
)

const pageURL = "https://ru.hexlet.io/courses"

var nodejsPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x10\x00\x00\x00\x10\x08\x06\x00\x00\x00\x1f\xf3\xffa")

// handlerTransport serves requests for any host from an in-process handler.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// failingTransport returns a transport error for the listed host+path
// keys and delegates every other request.
type failingTransport struct {
	next  http.RoundTripper
	fails map[string]error
}

func (t failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err, ok := t.fails[req.URL.Host+req.URL.Path]; ok {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// hexletSite registers the hexlet fixtures on a mux and counts requests per
// host and path.
type hexletSite struct {
	mux  *http.ServeMux
	mu   sync.Mutex
	hits map[string]int
}

func newHexletSite(t *testing.T, page string) *hexletSite {
	t.Helper()

	html, err := os.ReadFile(filepath.Join("testdata", page))
	if err != nil {
		t.Fatal(err)
	}

	s := &hexletSite{mux: http.NewServeMux(), hits: make(map[string]int)}
	s.serve("ru.hexlet.io/courses", "text/html; charset=utf-8", html)
	s.serve("ru.hexlet.io/assets/professions/nodejs.png", "image/png", nodejsPNG)
	s.serve("ru.hexlet.io/assets/application.css", "text/css", []byte("body { margin: 0; }"))
	s.serve("ru.hexlet.io/packs/js/runtime.js", "application/javascript", []byte("console.log('runtime');"))
	return s
}

func (s *hexletSite) serve(pattern, contentType string, body []byte) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	})
}

func (s *hexletSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.Host+r.URL.Path]++
	s.mu.Unlock()
	s.mux.ServeHTTP(w, r)
}

func (s *hexletSite) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *hexletSite) hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var hosts []string
	for key := range s.hits {
		host, _, _ := strings.Cut(key, "/")
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoader(handler http.Handler, opts ...Option) *Loader {
	client := &http.Client{Transport: handlerTransport{handler: handler}}
	base := []Option{
		WithFetcher(fetcher.New(fetcher.WithClient(client), fetcher.WithLogger(discardLogger()))),
		WithLogger(discardLogger()),
	}
	return New(append(base, opts...)...)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// TestLoadPageWithoutResources tests that a page without local resources is
// saved unchanged.
func TestLoadPageWithoutResources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	site := newHexletSite(t, "courses.html")

	result, err := newTestLoader(site).Load(t.Context(), pageURL, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(dir, "ru-hexlet-io-courses.html")
	if result.Filepath != want {
		t.Errorf("expected filepath %s, got %s", want, result.Filepath)
	}
	if !bytes.Equal(readFile(t, want), readFile(t, filepath.Join("testdata", "courses.html"))) {
		t.Error("saved page differs from the response")
	}
	if result.ResourceDir != "" {
		t.Errorf("expected no resource directory, got %s", result.ResourceDir)
	}
	if _, err := os.Stat(filepath.Join(dir, "ru-hexlet-io-courses_files")); !errors.Is(err, os.ErrNotExist) {
		t.Error("resource directory should not be created")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file in %s, got %d", dir, len(entries))
	}
	if result.Title != "Курсы по программированию Хекслет" {
		t.Errorf("unexpected title %q", result.Title)
	}
}

// TestLoadPageWithResources tests download and rewriting of local resources.
func TestLoadPageWithResources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	site := newHexletSite(t, "courses_with_resources.html")

	result, err := newTestLoader(site).Load(t.Context(), pageURL, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filesDir := filepath.Join(dir, "ru-hexlet-io-courses_files")
	if result.ResourceDir != filesDir {
		t.Errorf("expected resource dir %s, got %s", filesDir, result.ResourceDir)
	}
	if len(result.Resources) != 4 {
		t.Fatalf("expected 4 local resources, got %d", len(result.Resources))
	}
	if failed := result.Failed(); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	t.Run("image is saved byte for byte", func(t *testing.T) {
		t.Parallel()

		got := readFile(t, filepath.Join(filesDir, "ru-hexlet-io-assets-professions-nodejs.png"))
		if !bytes.Equal(got, nodejsPNG) {
			t.Error("image content differs")
		}
	})

	t.Run("every local resource has a file", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{
			"ru-hexlet-io-assets-professions-nodejs.png",
			"ru-hexlet-io-assets-application.css",
			"ru-hexlet-io-courses.html",
			"ru-hexlet-io-packs-js-runtime.js",
		} {
			if _, err := os.Stat(filepath.Join(filesDir, name)); err != nil {
				t.Errorf("missing %s: %v", name, err)
			}
		}
	})

	t.Run("references are rewritten", func(t *testing.T) {
		t.Parallel()

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(readFile(t, result.Filepath)))
		if err != nil {
			t.Fatal(err)
		}

		checks := []struct {
			selector, attr, want string
		}{
			{"img", "src", "ru-hexlet-io-courses_files/ru-hexlet-io-assets-professions-nodejs.png"},
			{`link[rel="canonical"]`, "href", "ru-hexlet-io-courses_files/ru-hexlet-io-courses.html"},
			{`link[media]:not([href*="cdn2"])`, "href", "ru-hexlet-io-courses_files/ru-hexlet-io-assets-application.css"},
			{`script[src*="runtime"]`, "src", "ru-hexlet-io-courses_files/ru-hexlet-io-packs-js-runtime.js"},
		}
		for _, c := range checks {
			got, _ := doc.Find(c.selector).First().Attr(c.attr)
			if got != c.want {
				t.Errorf("%s[%s] = %q, want %q", c.selector, c.attr, got, c.want)
			}
		}
	})

	t.Run("foreign references are untouched", func(t *testing.T) {
		t.Parallel()

		html := string(readFile(t, result.Filepath))
		for _, want := range []string{
			`href="https://cdn2.hexlet.io/assets/menu.css"`,
			`src="https://js.stripe.com/v3/"`,
			`href="/professions/nodejs"`,
		} {
			if !strings.Contains(html, want) {
				t.Errorf("expected %s to be kept", want)
			}
		}
	})

	t.Run("no foreign host is contacted", func(t *testing.T) {
		t.Parallel()

		for _, host := range site.hosts() {
			if host != "ru.hexlet.io" {
				t.Errorf("unexpected request to %s", host)
			}
		}
	})
}

// TestLoadPageFailedResource tests that a failing resource does not fail the
// load and keeps its reference.
func TestLoadPageFailedResource(t *testing.T) {
	t.Parallel()

	const page = `<html><head><link rel="stylesheet" href="/app.css"></head>` +
		`<body><img src="/broken.png"></body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("site.com/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, page)
	})
	mux.HandleFunc("site.com/app.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = io.WriteString(w, "p{}")
	})
	mux.HandleFunc("site.com/broken.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	dir := t.TempDir()
	result, err := newTestLoader(mux).Load(t.Context(), "https://site.com/", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed := result.Failed()
	if len(failed) != 1 || !strings.HasSuffix(failed[0].URL, "/broken.png") {
		t.Fatalf("expected broken.png to fail, got %+v", failed)
	}
	if !errors.Is(failed[0].Err, resource.ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", failed[0].Err)
	}
	if len(result.Saved()) != 1 {
		t.Errorf("expected one saved resource, got %d", len(result.Saved()))
	}

	html := string(readFile(t, filepath.Join(dir, "site-com-.html")))
	if !strings.Contains(html, `src="/broken.png"`) {
		t.Errorf("failed reference was rewritten:\n%s", html)
	}
	if !strings.Contains(html, `href="site-com-_files/site-com-app.css"`) {
		t.Errorf("stylesheet reference not rewritten:\n%s", html)
	}
}

// TestLoadPageNetworkError tests that a resource failing at the transport
// level leaves its reference untouched and does not fail the load.
func TestLoadPageNetworkError(t *testing.T) {
	t.Parallel()

	netErr := errors.New("connection reset by peer")
	site := newHexletSite(t, "courses_with_resources.html")
	client := &http.Client{Transport: failingTransport{
		next:  handlerTransport{handler: site},
		fails: map[string]error{"ru.hexlet.io/assets/professions/nodejs.png": netErr},
	}}
	l := New(
		WithFetcher(fetcher.New(fetcher.WithClient(client), fetcher.WithLogger(discardLogger()))),
		WithLogger(discardLogger()),
	)

	dir := t.TempDir()
	result, err := l.Load(t.Context(), pageURL, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed := result.Failed()
	if len(failed) != 1 || !strings.HasSuffix(failed[0].URL, "/nodejs.png") {
		t.Fatalf("expected nodejs.png to fail, got %+v", failed)
	}
	if !errors.Is(failed[0].Err, resource.ErrFetch) || !errors.Is(failed[0].Err, netErr) {
		t.Errorf("expected ErrFetch wrapping the network error, got %v", failed[0].Err)
	}
	if len(result.Saved()) != 3 {
		t.Errorf("expected three saved resources, got %d", len(result.Saved()))
	}

	html := string(readFile(t, result.Filepath))
	if !strings.Contains(html, `src="/assets/professions/nodejs.png"`) {
		t.Errorf("failed image reference was rewritten:\n%s", html)
	}
	if _, err := os.Stat(filepath.Join(result.ResourceDir, "ru-hexlet-io-assets-professions-nodejs.png")); !os.IsNotExist(err) {
		t.Errorf("failed image should not be saved, stat err = %v", err)
	}
}

// TestLoadPageQueryString tests that query strings keep versioned resources
// apart from each other and from extensionless paths.
func TestLoadPageQueryString(t *testing.T) {
	t.Parallel()

	const page = `<html><head>` +
		`<script src="/app.js?v=1"></script>` +
		`<script src="/app.js?v=2"></script>` +
		`<script src="/app?v=1"></script>` +
		`</head><body></body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("site.com/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, page)
	})
	mux.HandleFunc("site.com/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = io.WriteString(w, "v"+r.URL.Query().Get("v"))
	})
	mux.HandleFunc("site.com/app", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = io.WriteString(w, "bare")
	})

	dir := t.TempDir()
	result, err := newTestLoader(mux).Load(t.Context(), "https://site.com/", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Failed()) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Failed())
	}

	html := string(readFile(t, result.Filepath))
	for name, body := range map[string]string{
		"site-com-app-js-v-1.js": "v1",
		"site-com-app-js-v-2.js": "v2",
		"site-com-app-v-1.js":    "bare",
	} {
		if got := string(readFile(t, filepath.Join(result.ResourceDir, name))); got != body {
			t.Errorf("%s: expected %q, got %q", name, body, got)
		}
		if !strings.Contains(html, `src="site-com-_files/`+name+`"`) {
			t.Errorf("reference to %s not rewritten:\n%s", name, html)
		}
	}
}

// TestLoadPageIdempotent tests that loading twice yields the same tree.
func TestLoadPageIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	site := newHexletSite(t, "courses_with_resources.html")
	l := newTestLoader(site)

	if _, err := l.Load(t.Context(), pageURL, dir); err != nil {
		t.Fatalf("first load: %v", err)
	}
	first := snapshot(t, dir)

	if _, err := l.Load(t.Context(), pageURL, dir); err != nil {
		t.Fatalf("second load: %v", err)
	}
	second := snapshot(t, dir)

	if len(first) != len(second) {
		t.Fatalf("file count changed: %d -> %d", len(first), len(second))
	}
	for name, data := range first {
		if !bytes.Equal(second[name], data) {
			t.Errorf("%s changed between runs", name)
		}
	}
	if site.count("ru.hexlet.io/courses") != 4 {
		t.Errorf("expected the page and its canonical link fetched twice each, got %d", site.count("ru.hexlet.io/courses"))
	}
}

func snapshot(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[rel] = readFile(t, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

// TestLoadPageErrors tests the failures that abort a load.
func TestLoadPageErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid URL", func(t *testing.T) {
		t.Parallel()

		for _, raw := range []string{"", "   ", "ru.hexlet.io/courses", "ftp://ru.hexlet.io/", "https://"} {
			_, err := newTestLoader(http.NotFoundHandler()).Load(t.Context(), raw, t.TempDir())
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("%q: expected ErrInvalidURL, got %v", raw, err)
			}
		}
	})

	t.Run("missing destination is checked before fetching", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
		})
		missing := filepath.Join(t.TempDir(), "does-not-exist")

		_, err := newTestLoader(handler).Load(t.Context(), pageURL, missing)
		if !errors.Is(err, ErrDestination) {
			t.Errorf("expected ErrDestination, got %v", err)
		}
		if hits.Load() != 0 {
			t.Error("expected no request")
		}
	})

	t.Run("destination is a file", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := newTestLoader(http.NotFoundHandler()).Load(t.Context(), pageURL, file)
		if !errors.Is(err, ErrDestination) {
			t.Errorf("expected ErrDestination, got %v", err)
		}
	})

	t.Run("page not found writes nothing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		_, err := newTestLoader(http.NotFoundHandler()).Load(t.Context(), pageURL, dir)
		if !errors.Is(err, ErrPageFetch) {
			t.Fatalf("expected ErrPageFetch, got %v", err)
		}
		var statusErr *fetcher.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected wrapped 404, got %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected empty directory, found %d entries", len(entries))
		}
	})

	t.Run("resource directory path is a file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "ru-hexlet-io-courses_files"), nil, 0o600); err != nil {
			t.Fatal(err)
		}
		site := newHexletSite(t, "courses_with_resources.html")

		_, err := newTestLoader(site).Load(t.Context(), pageURL, dir)
		if !errors.Is(err, persist.ErrNotDirectory) {
			t.Errorf("expected ErrNotDirectory, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "ru-hexlet-io-courses.html")); !errors.Is(err, os.ErrNotExist) {
			t.Error("page should not be written")
		}
	})

	t.Run("cancelled context leaves page unwritten", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		site := newHexletSite(t, "courses_with_resources.html")
		ctx, cancel := context.WithCancel(t.Context())

		l := newTestLoader(site, WithOnDiscover(func(int) { cancel() }))
		_, err := l.Load(ctx, pageURL, dir)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "ru-hexlet-io-courses.html")); !errors.Is(err, os.ErrNotExist) {
			t.Error("page should not be written")
		}
	})
}

// TestLoadPageCallbacks tests progress callbacks.
func TestLoadPageCallbacks(t *testing.T) {
	t.Parallel()

	site := newHexletSite(t, "courses_with_resources.html")
	var discovered int
	var settled atomic.Int32

	l := newTestLoader(site,
		WithConcurrency(2),
		WithOnDiscover(func(n int) { discovered = n }),
		WithOnSettle(func(resource.Result) { settled.Add(1) }),
	)
	if _, err := l.Load(t.Context(), pageURL, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discovered != 4 {
		t.Errorf("expected 4 discovered resources, got %d", discovered)
	}
	if settled.Load() != 4 {
		t.Errorf("expected 4 settled resources, got %d", settled.Load())
	}
}

// TestLoadPageWorkingDirectory tests the default destination.
func TestLoadPageWorkingDirectory(t *testing.T) {
	site := newHexletSite(t, "courses.html")
	t.Chdir(t.TempDir())

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	result, err := newTestLoader(site).Load(t.Context(), pageURL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(wd, "ru-hexlet-io-courses.html")
	if result.Filepath != want {
		t.Errorf("expected filepath %s, got %s", want, result.Filepath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("page not saved: %v", err)
	}
}

// TestDerivePaths tests output path derivation.
func TestDerivePaths(t *testing.T) {
	t.Parallel()

	got := DerivePaths("  https://ru.hexlet.io/courses ", "/tmp")
	want := Paths{
		HTMLFile:        "/tmp/ru-hexlet-io-courses.html",
		ResourceDirName: "ru-hexlet-io-courses_files",
		ResourceDir:     "/tmp/ru-hexlet-io-courses_files",
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
