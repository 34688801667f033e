package resource

import "errors"

var (
	// ErrFetch marks a resource whose download failed.
	ErrFetch = errors.New("fetch resource")

	// ErrWrite marks a resource that was downloaded but could not be saved.
	ErrWrite = errors.New("write resource")
)
