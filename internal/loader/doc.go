// Package loader saves a web page together with its same-origin resources
// so that it can be viewed offline.
//
// For a page URL and a destination directory Load writes
//
//	<dest>/<encoded url>.html
//	<dest>/<encoded url>_files/<encoded resource name>
//
// and rewrites every saved resource reference in the page to point into the
// resource directory. Resources that cannot be saved are logged and keep
// their original reference; only a failure to fetch or save the page itself
// fails Load.
package loader
