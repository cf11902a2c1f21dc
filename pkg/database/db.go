// Package database wires the storage core's components (lock table, log,
// buffer pool, transaction registry, recovery engine) into a single
// facility and exposes the programmatic surface external callers use:
// begin/commit/abort, get_page, insert/delete tuple, and recover.
package database

import (
	"sync"

	"txnstore/pkg/concurrency/lock"
	"txnstore/pkg/concurrency/transaction"
	"txnstore/pkg/dberr"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/logging"
	"txnstore/pkg/memory"
	"txnstore/pkg/primitives"
	"txnstore/pkg/recovery"
	"txnstore/pkg/storage/heap"
	"txnstore/pkg/storage/page"
)

// Database is a single process's view of the storage core: one log, one
// buffer pool, one lock table, shared by every transaction and table.
type Database struct {
	cfg   Config
	Locks *lock.Manager
	Log   *wal.Log
	Pool  *memory.BufferPool
	Txns  *transaction.Registry

	mu          sync.Mutex
	tables      map[string]primitives.TableID
	nextTableID uint64
}

// Open initializes every component and returns a Database ready for
// Recover and Begin. It does not run recovery automatically: callers
// decide when startup recovery happens, so tests can inspect state before
// or after it.
func Open(cfg Config) (*Database, error) {
	if cfg.PageSize != 0 && cfg.PageSize != page.Size {
		return nil, dberr.Newf(dberr.DbError, "configured page size %d does not match compiled page size %d", cfg.PageSize, page.Size)
	}

	logPath := primitives.Filepath(cfg.LogPath)
	l, err := wal.Open(logPath)
	if err != nil {
		return nil, err
	}

	locks := lock.NewManager(cfg.LockTimeout)
	pool := memory.NewBufferPool(cfg.BufferPoolCapacity, locks, l)
	txns := transaction.NewRegistry(l)

	logging.WithComponent("database").Info("opened",
		"log_path", cfg.LogPath, "buffer_pool_capacity", cfg.BufferPoolCapacity)

	return &Database{
		cfg:    cfg,
		Locks:  locks,
		Log:    l,
		Pool:   pool,
		Txns:   txns,
		tables: make(map[string]primitives.TableID),
	}, nil
}

// Recover replays the log to restore a consistent state. It must be
// called exactly once, before any transaction begins.
func (db *Database) Recover() error {
	engine := recovery.NewRecoveryEngine(db.Log, db.Pool, db.Pool)
	if err := engine.Recover(); err != nil {
		return err
	}
	logging.WithComponent("database").Info("recovery complete")
	return nil
}

// CreateTable registers a new heap-backed table and returns its id.
func (db *Database) CreateTable(name string) (primitives.TableID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if id, ok := db.tables[name]; ok {
		return id, nil
	}

	db.nextTableID++
	id := primitives.TableID(db.nextTableID)

	path := primitives.Filepath(db.cfg.DataDir).Join(name + ".tbl")
	f, err := heap.Open(id, path)
	if err != nil {
		return 0, err
	}
	db.Pool.RegisterFile(f)
	db.tables[name] = id
	return id, nil
}

// TableID looks up a previously created table by name.
func (db *Database) TableID(name string) (primitives.TableID, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	id, ok := db.tables[name]
	return id, ok
}

// Begin starts a new transaction.
func (db *Database) Begin() (primitives.TransactionID, error) {
	return db.Txns.Begin()
}

// Commit flushes and durably records tid's writes, then releases its
// locks.
func (db *Database) Commit(tid primitives.TransactionID) error {
	if err := db.Pool.TransactionComplete(tid, true); err != nil {
		return err
	}
	db.Txns.Complete(tid)
	return nil
}

// Abort undoes tid's writes and releases its locks.
func (db *Database) Abort(tid primitives.TransactionID) error {
	if err := db.Pool.TransactionComplete(tid, false); err != nil {
		return err
	}
	db.Txns.Complete(tid)
	return nil
}

// InsertTuple stores value in tableID under tid.
func (db *Database) InsertTuple(tid primitives.TransactionID, tableID primitives.TableID, value int64) (memory.RecordID, error) {
	return db.Pool.InsertTuple(tid, tableID, value)
}

// DeleteTuple removes the record at rid under tid.
func (db *Database) DeleteTuple(tid primitives.TransactionID, rid memory.RecordID) error {
	return db.Pool.DeleteTuple(tid, rid)
}

// ScanTable returns every value currently stored in tableID, as visible
// to tid.
func (db *Database) ScanTable(tid primitives.TransactionID, tableID primitives.TableID) ([]int64, error) {
	return db.Pool.ScanTable(tid, tableID)
}

// Checkpoint forces every dirty buffer, then writes a Checkpoint record
// enumerating still-active transactions and their first offsets.
func (db *Database) Checkpoint() error {
	if err := db.Pool.FlushAllPages(); err != nil {
		return err
	}
	active := make(map[primitives.TransactionID]primitives.LSN)
	for _, tid := range db.Txns.Active() {
		if offset, ok := db.Log.FirstOffset(tid); ok {
			active[tid] = offset
		}
	}
	return db.Log.LogCheckpoint(active)
}

// Close releases the log file handle and the structured logger's own file
// handle, if one was opened. It does not close registered table files;
// callers that need clean shutdown should track and close those
// separately.
func (db *Database) Close() error {
	err := db.Log.Close()
	logging.Close()
	return err
}
