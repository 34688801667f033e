package resource

// State is the lifecycle state of one resource.
type State int

const (
	// StateDiscovered is the initial state of a reference.
	StateDiscovered State = iota
	// StateFetching means the request has been issued.
	StateFetching
	// StateFetched means a successful response was received.
	StateFetched
	// StateWriting means the body is being streamed to disk.
	StateWriting
	// StateWritten means the file is saved and the reference rewritten.
	StateWritten
	// StateFailed means the fetch or the write failed.
	StateFailed
)

// String returns the lower case state name.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateFetching:
		return "fetching"
	case StateFetched:
		return "fetched"
	case StateWriting:
		return "writing"
	case StateWritten:
		return "written"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
