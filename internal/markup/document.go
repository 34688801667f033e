package markup

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// resourceAttrs maps a resource-bearing element to the attribute holding
// its reference.
var resourceAttrs = map[string]string{
	"img":    "src",
	"link":   "href",
	"script": "src",
}

// resourceSelector matches every element listed in resourceAttrs that
// carries its reference attribute.
var resourceSelector = buildSelector(resourceAttrs)

func buildSelector(attrs map[string]string) string {
	parts := make([]string, 0, len(attrs))
	for tag, attr := range attrs {
		parts = append(parts, tag+"["+attr+"]")
	}
	return strings.Join(parts, ", ")
}

// Reference is one element that embeds a same-origin resource.
type Reference struct {
	// Tag is the element name, e.g. "img".
	Tag string

	// Attr is the attribute holding the reference, "src" or "href".
	Attr string

	// Original is the attribute value as found in the page.
	Original string

	// URL is Original resolved against the page URL, without fragment.
	URL *url.URL

	sel *goquery.Selection
}

// Document is a parsed page.
type Document struct {
	raw []byte
	doc *goquery.Document

	mu        sync.Mutex
	rewritten int
}

// Parse reads an HTML document from r. The original bytes are retained so
// that an unmodified document renders byte for byte.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return &Document{raw: raw, doc: doc}, nil
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// LocalResources returns a Reference for every resource-bearing element
// whose resolved URL has the same origin as page, in document order.
func (d *Document) LocalResources(page *url.URL) []Reference {
	refs := make([]Reference, 0)

	d.doc.Find(resourceSelector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		attr, ok := resourceAttrs[tag]
		if !ok {
			return
		}
		value, ok := s.Attr(attr)
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}

		parsed, err := url.Parse(value)
		if err != nil {
			return
		}
		resolved := page.ResolveReference(parsed)
		if !SameOrigin(page, resolved) {
			return
		}
		resolved.Fragment = ""
		resolved.RawFragment = ""

		refs = append(refs, Reference{
			Tag:      tag,
			Attr:     attr,
			Original: value,
			URL:      resolved,
			sel:      s,
		})
	})

	return refs
}

// Rewrite replaces the attribute of ref with value.
func (d *Document) Rewrite(ref Reference, value string) {
	if ref.sel == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ref.sel.SetAttr(ref.Attr, value)
	d.rewritten++
}

// Rewritten returns the number of references rewritten so far.
func (d *Document) Rewritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rewritten
}

// Render writes the document to w. A document without rewrites is written
// exactly as it was read.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rewritten == 0 {
		_, err := w.Write(d.raw)
		return err
	}
	for _, node := range d.doc.Nodes {
		if err := html.Render(w, node); err != nil {
			return fmt.Errorf("render markup: %w", err)
		}
	}
	return nil
}

// SameOrigin reports whether a and b share scheme, host and port.
// A missing port is treated as the scheme's default port.
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
