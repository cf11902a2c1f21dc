package wal

import (
	"txnstore/pkg/dberr"
	"txnstore/pkg/log/record"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

// LogBegin appends a Begin record for tid and remembers its offset as
// tid's first_offset entry, used by rollback and recovery to anchor a
// forward scan of this transaction's updates.
func (l *Log) LogBegin(tid primitives.TransactionID) (primitives.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := primitives.LSN(l.size)
	if err := l.append(&record.Record{Kind: record.Begin, Txn: tid}, offset); err != nil {
		return 0, err
	}
	l.firstOffset[tid] = offset
	return offset, nil
}

// LogUpdate appends an Update record carrying the full before- and
// after-images of a single page. Callers must force() immediately after
// if the write-ahead rule requires this record durable before the
// corresponding page write proceeds.
func (l *Log) LogUpdate(tid primitives.TransactionID, pid primitives.PageID, before, after page.Page) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := primitives.LSN(l.size)
	return l.append(&record.Record{
		Kind:   record.Update,
		Txn:    tid,
		Page:   pid,
		Before: before.Bytes(),
		After:  after.Bytes(),
	}, offset)
}

// LogCommit appends a Commit record and forces the log.
func (l *Log) LogCommit(tid primitives.TransactionID) error {
	if err := l.logSimple(record.Commit, tid); err != nil {
		return err
	}
	return l.Force()
}

// LogAbort appends an Abort record and forces the log.
func (l *Log) LogAbort(tid primitives.TransactionID) error {
	if err := l.logSimple(record.Abort, tid); err != nil {
		return err
	}
	return l.Force()
}

func (l *Log) logSimple(kind record.Type, tid primitives.TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset := primitives.LSN(l.size)
	return l.append(&record.Record{Kind: kind, Txn: tid}, offset)
}

// LogCheckpoint writes a Checkpoint record enumerating the still-active
// transactions and their first offsets, then updates the file header to
// point at it and forces both. Callers must have already forced all dirty
// buffers (via the buffer pool) before calling this, per the checkpoint
// contract: everything before this record is durable on disk.
func (l *Log) LogCheckpoint(active map[primitives.TransactionID]primitives.LSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := primitives.LSN(l.size)
	if err := l.append(&record.Record{Kind: record.Checkpoint, Active: active}, offset); err != nil {
		return err
	}
	l.lastCheckpoint = offset
	if err := l.writeHeader(); err != nil {
		return err
	}
	if err := l.fd.Sync(); err != nil {
		return dberr.Wrap(err, "LogCheckpoint", "wal.Log")
	}
	return nil
}

// append serializes r and writes it at the current end of file, advancing
// l.size. Callers must hold l.mu.
func (l *Log) append(r *record.Record, offset primitives.LSN) error {
	data, err := record.Encode(r, offset)
	if err != nil {
		return err
	}
	n, err := l.fd.WriteAt(data, int64(offset))
	if err != nil {
		return dberr.Wrap(err, "append", "wal.Log")
	}
	if n != len(data) {
		return dberr.Newf(dberr.IoError, "short log write: wrote %d bytes, want %d", n, len(data))
	}
	l.size = int64(offset) + int64(len(data))
	return nil
}
