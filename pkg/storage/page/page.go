// Package page defines the contract every page-type implementation (heap,
// and in principle B+-tree) must satisfy to live in the buffer pool. The
// buffer pool and recovery engine only ever see this interface; they never
// know how a page's bytes are laid out internally.
package page

import "txnstore/pkg/primitives"

// Size is the process-wide page length in bytes. All page images, before
// images, and log Update payloads are exactly this many bytes.
const Size = 4096

// Page is a page image resident in the buffer pool. Implementations own
// their on-disk layout; the core only touches bytes, dirty tags, and
// before-images.
type Page interface {
	// ID returns this page's identity.
	ID() primitives.PageID

	// Bytes serializes the current in-memory contents to a Size-length
	// buffer suitable for writing to disk or a log record.
	Bytes() []byte

	// BeforeImage returns a page of the same concrete type holding the
	// last-committed snapshot of this page's bytes.
	BeforeImage() Page

	// SetBeforeImage copies the current bytes into the before-image
	// snapshot. Callers invoke this only when the current bytes are the
	// committed version on disk: when the buffer pool loads the page, and
	// right after a commit-time flush.
	SetBeforeImage()

	// IsDirty returns the transaction that last modified this page, or
	// the zero TransactionID if the page is clean.
	IsDirty() primitives.TransactionID

	// MarkDirty tags (or clears, when tid is the zero value) the page's
	// dirtying transaction.
	MarkDirty(tid primitives.TransactionID)
}

// Factory is the signature of a function that reconstructs a page of a
// specific concrete type from raw bytes (heap.Decode has this shape).
// Nothing in the core takes a Factory: the heap file and the recovery
// engine call heap.Decode directly.
type Factory func(id primitives.PageID, data []byte) (Page, error)
