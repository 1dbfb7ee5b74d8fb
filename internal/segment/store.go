package segment

import "errors"

var (
	// ErrNotFound reports a cycle with no persisted segment.
	ErrNotFound = errors.New("segment: not found")

	// ErrReadOnly reports a mutating call on a read-only store.
	ErrReadOnly = errors.New("segment: store is read-only")

	// ErrLocked reports that another writer holds the store.
	ErrLocked = errors.New("segment: store already locked by a writer")

	// ErrStaleAppend reports an append at an offset that is not the
	// current end of the segment.
	ErrStaleAppend = errors.New("segment: append offset is not segment end")
)

// Handle is an open segment. Handles are cheap; each appender or tailer
// holds its own and closes it when moving on.
type Handle interface {
	// Cycle returns the cycle this segment belongs to.
	Cycle() int64

	// DataStart returns the offset of the first entry byte.
	DataStart() int64

	// Len returns the current end offset. For a segment under active
	// append it re-reads the backing store, so live tailers observe
	// growth.
	Len() (int64, error)

	// ReadAt fills p from the given offset, io.ReaderAt semantics.
	ReadAt(p []byte, off int64) (int, error)

	// AppendAt writes p at off, which must be the current end, and
	// returns the new end offset.
	AppendAt(off int64, p []byte) (int64, error)

	// Sync forces written bytes to durable storage.
	Sync() error

	Close() error
}

// Store creates, opens and enumerates segments for a queue.
type Store interface {
	// OpenOrCreate opens the segment for a cycle, creating it if absent.
	// Fails with ErrReadOnly on a read-only store.
	OpenOrCreate(cycle int64) (Handle, error)

	// OpenExisting opens the segment for a cycle read-only, failing with
	// ErrNotFound if no segment exists for it.
	OpenExisting(cycle int64) (Handle, error)

	// ListCycles returns the cycles with a persisted segment, ascending.
	ListCycles() ([]int64, error)

	// ReadOnly reports whether this store refuses mutation.
	ReadOnly() bool

	Close() error
}
