// Package wal implements the write-ahead log: a single append-only file
// of Begin/Update/Commit/Abort/Checkpoint records guarded by one mutex,
// used by the buffer pool, rollback engine, and recovery engine.
package wal

import (
	"encoding/binary"
	"os"
	"sync"

	"txnstore/pkg/dberr"
	"txnstore/pkg/primitives"
)

// headerSize is the fixed 8-byte last-checkpoint-offset header at the
// start of every log file.
const headerSize = 8

// Log is the append-only, single-writer log file.
type Log struct {
	mu             sync.Mutex
	fd             *os.File
	path           primitives.Filepath
	lastCheckpoint primitives.LSN
	firstOffset    map[primitives.TransactionID]primitives.LSN
	size           int64
}

// Open opens (creating if necessary) the log file at path and reads its
// header. A freshly created file gets a header of -1 (no checkpoint).
func Open(path primitives.Filepath) (*Log, error) {
	if err := path.MkdirAll(0o755); err != nil {
		return nil, dberr.Wrap(err, "Open", "wal.Log")
	}
	fd, err := os.OpenFile(path.String(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.Wrap(err, "Open", "wal.Log")
	}

	l := &Log{
		fd:          fd,
		path:        path,
		firstOffset: make(map[primitives.TransactionID]primitives.LSN),
	}

	info, err := fd.Stat()
	if err != nil {
		return nil, dberr.Wrap(err, "Open", "wal.Log")
	}

	if info.Size() == 0 {
		l.lastCheckpoint = primitives.InvalidLSN
		l.size = headerSize
		if err := l.writeHeader(); err != nil {
			return nil, err
		}
		return l, nil
	}

	var hdr [headerSize]byte
	if _, err := fd.ReadAt(hdr[:], 0); err != nil {
		return nil, dberr.Wrap(err, "Open", "wal.Log")
	}
	l.lastCheckpoint = primitives.LSN(int64(binary.LittleEndian.Uint64(hdr[:])))
	l.size = info.Size()
	return l, nil
}

func (l *Log) writeHeader() error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(l.lastCheckpoint))
	if _, err := l.fd.WriteAt(hdr[:], 0); err != nil {
		return dberr.Wrap(err, "writeHeader", "wal.Log")
	}
	return nil
}

// Force fsyncs the log file to stable storage.
func (l *Log) Force() error {
	if err := l.fd.Sync(); err != nil {
		return dberr.Wrap(err, "Force", "wal.Log")
	}
	return nil
}

// LastCheckpoint returns the offset recorded in the file header, or
// primitives.InvalidLSN if none has been written yet.
func (l *Log) LastCheckpoint() primitives.LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCheckpoint
}

// Start returns the offset of the first record in the file, immediately
// after the fixed header.
func (l *Log) Start() primitives.LSN {
	return primitives.LSN(headerSize)
}

// FirstOffset returns the offset of tid's Begin record, if known.
func (l *Log) FirstOffset(tid primitives.TransactionID) (primitives.LSN, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	off, ok := l.firstOffset[tid]
	return off, ok
}

// Close syncs and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fd.Sync(); err != nil {
		return dberr.Wrap(err, "Close", "wal.Log")
	}
	if err := l.fd.Close(); err != nil {
		return dberr.Wrap(err, "Close", "wal.Log")
	}
	return nil
}
