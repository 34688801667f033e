package filename

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// HTMLExt is appended to every saved page regardless of the source URL.
	HTMLExt = ".html"

	// ResourceDirSuffix is appended to the encoded page URL to name the
	// directory holding the page's resources.
	ResourceDirSuffix = "_files"

	// replacement is written in place of every non alphanumeric character.
	replacement = '-'
)

// schemePrefix matches the leading scheme Encode strips.
var schemePrefix = regexp.MustCompile(`^https?://`)

// Encode converts input into a name that is safe to use as a file name.
//
// The input is trimmed, a leading "http://" or "https://" is removed and
// every character that is not an ASCII letter or digit is replaced with "-".
// When preserveExt is true, the final ".<ext>" of the input path is kept
// verbatim (including its case) and appended after the encoded base. An
// extension is only recognized after the last "/" and must be alphanumeric.
func Encode(input string, preserveExt bool) string {
	trimmed := strings.TrimSpace(input)
	rest := schemePrefix.ReplaceAllString(trimmed, "")
	hadScheme := len(rest) != len(trimmed)

	ext := ""
	if preserveExt {
		rest, ext = splitExt(rest, hadScheme)
	}

	return replaceNonAlnum(rest) + ext
}

// Page returns the file name of the saved HTML page for rawURL.
func Page(rawURL string) string {
	return Encode(rawURL, false) + HTMLExt
}

// ResourceDir returns the name of the resource directory for rawURL.
func ResourceDir(rawURL string) string {
	return Encode(rawURL, false) + ResourceDirSuffix
}

// Extension returns the extension of u's path including the leading dot,
// or an empty string if the path has none.
func Extension(u *url.URL) string {
	_, ext := splitExt(u.Path, false)
	return ext
}

// Resource returns the file name for a resource located at u.
//
// The name is the encoded host name followed by the encoded path. A query
// string, if any, is folded into the encoded base together with the whole
// path, extension included, and the extension is appended again:
// "/app.js?v=1" becomes "-app-js-v-1.js" while an extensionless "/app?v=1"
// becomes "-app-v-1" plus fallbackExt. fallbackExt is used when the path has
// no extension of its own; it is usually derived from the content type.
func Resource(u *url.URL, fallbackExt string) string {
	base, ext := splitExt(u.Path, false)
	if ext == "" {
		ext = fallbackExt
	}
	if u.RawQuery != "" {
		base = u.Path + "?" + u.RawQuery
	}
	return Encode(u.Hostname(), false) + replaceNonAlnum(base) + ext
}

// splitExt splits s into base and extension. When requireSlash is true the
// input still carries its authority, so a dot before the first path
// separator (as in "example.com") is not an extension.
func splitExt(s string, requireSlash bool) (string, string) {
	slash := strings.LastIndexByte(s, '/')
	if requireSlash && slash < 0 {
		return s, ""
	}
	dot := strings.LastIndexByte(s, '.')
	if dot <= slash || dot == len(s)-1 {
		return s, ""
	}
	ext := s[dot:]
	if !isAlnum(ext[1:]) {
		return s, ""
	}
	return s[:dot], ext
}

func replaceNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnumRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(replacement)
	}
	return b.String()
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !isAlnumRune(r) {
			return false
		}
	}
	return true
}

func isAlnumRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
