package page

import "txnstore/pkg/primitives"

// File is a table's backing store: a sequence of Size-byte pages on disk.
// The buffer pool is the only production caller; direct use bypasses
// locking and the write-ahead log.
type File interface {
	// ReadPage loads a single page by number. Reading past the current
	// end of file is an IoError, not a silently synthesized blank page:
	// the caller (buffer pool) is responsible for allocating new pages
	// explicitly.
	ReadPage(pid primitives.PageID) (Page, error)

	// WritePage persists a page at its designated offset.
	WritePage(p Page) error

	// ID returns this file's table identifier.
	ID() primitives.TableID

	// NumPages returns the number of Size-byte pages currently in the
	// file, used to decide whether an insert needs to allocate a new
	// page at the end of the file.
	NumPages() (primitives.PageNumber, error)

	// Close releases the underlying OS file handle.
	Close() error
}
