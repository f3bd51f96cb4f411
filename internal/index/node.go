package index

import "time"

// Kind distinguishes files from directories.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// ExtractState tracks the lifecycle of a node's extracted content.
type ExtractState int

const (
	NotExtracted ExtractState = iota
	Extracting
	Extracted
	ExtractFailed
)

// String returns the string representation of the extraction state.
func (s ExtractState) String() string {
	switch s {
	case NotExtracted:
		return "not_extracted"
	case Extracting:
		return "extracting"
	case Extracted:
		return "extracted"
	case ExtractFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileNode is the cached metadata for one observed path. Nodes are
// immutable once published; the cache swaps whole nodes rather than
// mutating fields so concurrent readers never see a partial update.
type FileNode struct {
	Path         string
	Kind         Kind
	Size         int64
	ModTime      time.Time
	Hash         string // sha256 hex of file content, empty for directories
	MIME         string
	Hidden       bool
	ExtractState ExtractState
}

// IsDir reports whether the node is a directory.
func (n *FileNode) IsDir() bool {
	return n.Kind == KindDir
}

// Content is the extracted text for a file node. Err is carried as data:
// a failed extraction leaves the file browsable with empty content.
type Content struct {
	Path      string
	Text      string
	Format    string // plain, source, pdf, docx, image, binary
	Language  string // set for source files
	Truncated bool
	Err       string
}
