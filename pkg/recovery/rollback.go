// Package recovery implements the rollback engine (C7), which undoes a
// single transaction's writes using its own Update records, and the
// recovery engine (C8), which restores a consistent database state after
// an unclean shutdown by replaying the log from the last checkpoint.
package recovery

import (
	"io"

	"txnstore/pkg/dberr"
	"txnstore/pkg/log/record"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/logging"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/heap"
	"txnstore/pkg/storage/page"
)

// FileSource resolves a table id to its backing file. Implemented by the
// buffer pool.
type FileSource interface {
	File(primitives.TableID) (page.File, bool)
}

// Cache discards a page without writing it. Implemented by the buffer
// pool.
type Cache interface {
	Discard(primitives.PageID)
}

// RollbackEngine undoes one transaction's writes at a time using the log.
type RollbackEngine struct {
	log   *wal.Log
	files FileSource
	cache Cache
}

// NewRollbackEngine builds a rollback engine sharing the buffer pool's
// backing files and cache.
func NewRollbackEngine(log *wal.Log, files FileSource, cache Cache) *RollbackEngine {
	return &RollbackEngine{log: log, files: files, cache: cache}
}

// Rollback restores every page tid wrote to the image it held immediately
// before tid's first write to it, and evicts those pages from the cache.
// from is the offset of tid's Begin record (or its earliest known Update,
// during recovery). The caller must still hold tid's locks; Rollback does
// not touch the lock table.
func (e *RollbackEngine) Rollback(tid primitives.TransactionID, from primitives.LSN) error {
	if err := e.log.Force(); err != nil {
		return err
	}

	log := logging.WithTx(tid.ID())
	log.Debug("rolling back transaction", "from_offset", from)
	undone := 0
	defer func() { log.Debug("rollback complete", "pages_undone", undone) }()

	r := e.log.NewReader(from)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// Records read back from the log carry a zero StartMillis (see
		// record.readTxn), while a live tid carries the real timestamp it
		// began at, so TransactionID equality here must be by numeric id
		// only, never by the whole comparable struct.
		if rec.Kind != record.Update || rec.Txn.ID() != tid.ID() {
			continue
		}
		if err := e.undoOne(rec); err != nil {
			return err
		}
		undone++
	}
}

func (e *RollbackEngine) undoOne(rec *record.Record) error {
	f, ok := e.files.File(rec.Page.Table)
	if !ok {
		return dberr.Newf(dberr.DbError, "no backing file registered for table %d", rec.Page.Table)
	}
	before, err := heap.Decode(rec.Page, rec.Before)
	if err != nil {
		return err
	}
	if err := f.WritePage(before); err != nil {
		return err
	}
	logging.WithPage(rec.Page).Debug("restored before-image")
	e.cache.Discard(rec.Page)
	return nil
}
