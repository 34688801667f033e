// Package main provides the entry point for the page-loader CLI.
//
// page-loader downloads a web page together with the images, stylesheets
// and scripts it embeds from its own origin, and rewrites the page so that
// it renders offline.
//
// Usage:
//
//	page-loader [flags] <pageUrl>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
