// Package markup parses a fetched page into a mutable tree, finds the
// elements that embed same-origin resources and rewrites their references.
//
// Only three element kinds are considered, each with a fixed attribute:
//
//	<img src>  <link href>  <script src>
//
// Adding an element kind means adding an entry to resourceAttrs.
//
// A Document is owned by a single load. Rewrite may be called from several
// goroutines as long as each call targets a different Reference; Render
// must only be called once every rewrite has returned.
package markup
