// Package resource downloads the local resources referenced by a page and
// points each reference at its saved copy.
//
// Every reference is processed independently and moves through the states
//
//	Discovered -> Fetching -> Fetched -> Writing -> Written
//
// or ends in Failed. A failed resource is logged and reported in its
// Result; it never aborts the other downloads and never fails Sync.
package resource
