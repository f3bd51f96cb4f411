package watch

import "time"

// Op represents the type of coalesced file system operation.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpDeleted
	OpRenamed
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a single coalesced change notification. For OpRenamed, OldPath
// holds the previous path.
type Event struct {
	Op      Op
	Path    string
	OldPath string
	IsDir   bool
	Time    time.Time
}

// Batch is one flush of coalesced events for a watch root.
//
// When Resync is set the incremental stream overflowed and subscribers must
// re-list the root instead of trusting the events. When Err is set the batch
// is terminal and the watch has been torn down.
type Batch struct {
	Root   string
	Events []Event
	Resync bool
	Err    error
}

// coalesce merges a new operation into an existing pending one, collapsing
// to the latest kind. Deletions are sticky unless the path reappears.
func coalesce(old, next Op) Op {
	if old == OpDeleted && next == OpModified {
		// A write racing a delete; trust the delete, the flush re-stats anyway.
		return OpDeleted
	}
	if old == OpDeleted && next == OpCreated {
		// Deleted and recreated within one window nets out to a modification.
		return OpModified
	}
	return next
}
