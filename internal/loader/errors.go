package loader

import "errors"

var (
	// ErrInvalidURL is returned for a page URL that is not an absolute
	// http or https URL.
	ErrInvalidURL = errors.New("invalid page URL")

	// ErrDestination is returned when the destination directory does not
	// exist or is not a directory.
	ErrDestination = errors.New("invalid destination directory")

	// ErrPageFetch is returned when the page itself cannot be downloaded.
	ErrPageFetch = errors.New("failed to fetch page")
)
