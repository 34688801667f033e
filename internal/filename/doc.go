// Package filename maps URLs to file system safe names.
//
// Every name the loader writes comes from Encode: the scheme is stripped and
// any character that is not an ASCII letter or digit becomes "-". Resource
// names may keep their original extension, and when a URL has none the
// extension is looked up from the response content type through an
// ExtensionResolver.
//
// # Layout
//
// For a page "https://ru.hexlet.io/courses" saved to dir:
//
//	dir/ru-hexlet-io-courses.html
//	dir/ru-hexlet-io-courses_files/ru-hexlet-io-assets-professions-nodejs.png
//
// # Collisions
//
// Encode is not injective. Two URLs that differ only in punctuation map to
// the same name, and the last write wins. No disambiguation is attempted.
package filename
