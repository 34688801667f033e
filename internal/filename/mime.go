package filename

import (
	"maps"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is the number of leading body bytes Sniff needs to identify most
// formats.
const SniffLen = 3072

// ExtensionResolver maps a Content-Type header value to a file extension.
// Implementations return an empty string for unknown types.
type ExtensionResolver interface {
	Extension(contentType string) string
}

// Table is an ExtensionResolver backed by a media type to extension map.
// Keys are lower case media types without parameters, values include the
// leading dot.
type Table map[string]string

// defaultExtensions covers the resource types a page usually embeds.
var defaultExtensions = map[string]string{
	"text/html":                     ".html",
	"text/css":                      ".css",
	"text/plain":                    ".txt",
	"text/javascript":               ".js",
	"application/javascript":        ".js",
	"application/x-javascript":      ".js",
	"application/ecmascript":        ".js",
	"application/json":              ".json",
	"application/manifest+json":     ".webmanifest",
	"application/xml":               ".xml",
	"text/xml":                      ".xml",
	"image/png":                     ".png",
	"image/jpeg":                    ".jpg",
	"image/gif":                     ".gif",
	"image/webp":                    ".webp",
	"image/avif":                    ".avif",
	"image/svg+xml":                 ".svg",
	"image/x-icon":                  ".ico",
	"image/vnd.microsoft.icon":      ".ico",
	"font/woff":                     ".woff",
	"font/woff2":                    ".woff2",
	"font/ttf":                      ".ttf",
	"font/otf":                      ".otf",
	"application/font-woff":         ".woff",
	"application/vnd.ms-fontobject": ".eot",
}

// DefaultTable returns a copy of the built-in extension table.
func DefaultTable() Table {
	return maps.Clone(defaultExtensions)
}

// Merge returns a new Table holding t overlaid with overrides. Override keys
// are normalized to lower case and values gain a leading dot if missing.
// An empty override value removes the mapping.
func (t Table) Merge(overrides map[string]string) Table {
	merged := maps.Clone(t)
	if merged == nil {
		merged = make(Table, len(overrides))
	}
	for mediaType, ext := range overrides {
		key := strings.ToLower(strings.TrimSpace(mediaType))
		ext = strings.TrimSpace(ext)
		if ext == "" {
			delete(merged, key)
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		merged[key] = ext
	}
	return merged
}

// Extension implements ExtensionResolver.
func (t Table) Extension(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return t[strings.ToLower(mediaType)]
}

// Sniff detects the extension of a body from its leading bytes.
func Sniff(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	return mimetype.Detect(head).Extension()
}

// ResolveExtension returns the extension for a response, preferring the
// declared content type and falling back to sniffing head.
func ResolveExtension(r ExtensionResolver, contentType string, head []byte) string {
	if r != nil {
		if ext := r.Extension(contentType); ext != "" {
			return ext
		}
	}
	return Sniff(head)
}
