package persist

import "errors"

// ErrNotDirectory is returned by EnsureDir when the path exists but is not
// a directory.
var ErrNotDirectory = errors.New("path exists and is not a directory")
