// Package fetcher performs the HTTP GET requests of a page load.
//
// A Fetcher makes exactly one attempt per URL. FetchPage reads the whole
// body of the page; Fetch hands the body of a resource back as a stream so
// it can be copied straight to disk. Any response outside the 2xx range is
// returned as a *StatusError.
//
// # Usage
//
//	f := fetcher.New(
//	    fetcher.WithTimeout(30*time.Second),
//	    fetcher.WithRateLimit(5, 1),
//	)
//	page, err := f.FetchPage(ctx, "https://ru.hexlet.io/courses")
package fetcher
