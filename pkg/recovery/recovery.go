package recovery

import (
	"io"

	"txnstore/pkg/dberr"
	"txnstore/pkg/log/record"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/logging"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/heap"
)

// RecoveryEngine restores a consistent on-disk state after an unclean
// shutdown: a checkpoint-anchored single forward redo/analyze scan
// followed by a targeted undo pass over the transactions still active
// at end of log.
type RecoveryEngine struct {
	log      *wal.Log
	files    FileSource
	cache    Cache
	rollback *RollbackEngine
}

// NewRecoveryEngine builds a recovery engine sharing the buffer pool's
// backing files and cache.
func NewRecoveryEngine(log *wal.Log, files FileSource, cache Cache) *RecoveryEngine {
	return &RecoveryEngine{
		log:      log,
		files:    files,
		cache:    cache,
		rollback: NewRollbackEngine(log, files, cache),
	}
}

// Recover must be called exactly once, before any transaction begins in
// this process. On an empty or freshly created log it is a no-op.
func (e *RecoveryEngine) Recover() error {
	log := logging.WithComponent("recovery")
	log.Info("recovery started")
	active := make(map[primitives.TransactionID]primitives.LSN)
	start := e.log.Start()

	if cp := e.log.LastCheckpoint(); cp != primitives.InvalidLSN {
		r := e.log.NewReader(cp)
		rec, err := r.Next()
		if err != nil {
			return err
		}
		if rec.Kind != record.Checkpoint {
			return dberr.Newf(dberr.IoError, "expected checkpoint record at offset %d, found %s", cp, rec.Kind)
		}
		for tid, off := range rec.Active {
			active[tid] = off
		}
		start = r.Offset()
	}

	r := e.log.NewReader(start)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch rec.Kind {
		case record.Begin:
			active[rec.Txn] = rec.Offset

		case record.Update:
			// A transaction whose Begin lies outside the scanned range is
			// tracked from its earliest Update seen here.
			if _, tracked := active[rec.Txn]; !tracked {
				active[rec.Txn] = rec.Offset
			}
			if err := e.redoOne(rec); err != nil {
				return err
			}

		case record.Commit:
			delete(active, rec.Txn)

		case record.Abort:
			firstOffset, tracked := active[rec.Txn]
			delete(active, rec.Txn)
			if tracked {
				if err := e.rollback.Rollback(rec.Txn, firstOffset); err != nil {
					return err
				}
			}
		}
	}

	if len(active) > 0 {
		log.Info("undoing loser transactions", "count", len(active))
	}
	for tid, firstOffset := range active {
		if err := e.rollback.Rollback(tid, firstOffset); err != nil {
			return err
		}
	}
	log.Info("recovery complete")
	return nil
}

// redoOne unconditionally writes a logged after-image to disk. This is
// safe even for already-durable writes: a checkpoint forces every dirty
// buffer, so anything before it is already reflected on disk, and writing
// the same bytes again is idempotent.
func (e *RecoveryEngine) redoOne(rec *record.Record) error {
	f, ok := e.files.File(rec.Page.Table)
	if !ok {
		return dberr.Newf(dberr.DbError, "no backing file registered for table %d", rec.Page.Table)
	}
	after, err := heap.Decode(rec.Page, rec.After)
	if err != nil {
		return err
	}
	if err := f.WritePage(after); err != nil {
		return err
	}
	logging.WithPage(rec.Page).Debug("redid update", "tx_id", rec.Txn.ID())
	e.cache.Discard(rec.Page)
	return nil
}
