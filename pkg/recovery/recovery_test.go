package recovery_test

import (
	"path/filepath"
	"testing"

	"txnstore/pkg/concurrency/lock"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/memory"
	"txnstore/pkg/primitives"
	"txnstore/pkg/recovery"
	"txnstore/pkg/storage/heap"
)

// fixture builds a fresh log + table file + buffer pool sharing a
// temporary directory, simulating one process lifetime.
type fixture struct {
	dir   string
	log   *wal.Log
	file  *heap.File
	pool  *memory.BufferPool
	table primitives.TableID
}

func newFixture(t *testing.T, dir string) *fixture {
	t.Helper()
	l, err := wal.Open(primitives.Filepath(filepath.Join(dir, "wal.log")))
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	f, err := heap.Open(1, primitives.Filepath(filepath.Join(dir, "t.dat")))
	if err != nil {
		t.Fatalf("heap.Open: %v", err)
	}
	pool := memory.NewBufferPool(10, lock.NewManager(0), l)
	pool.RegisterFile(f)
	return &fixture{dir: dir, log: l, file: f, pool: pool, table: f.ID()}
}

// reopen simulates a process restart against the same on-disk files: a
// fresh log handle and buffer pool, but the same table file bytes.
func (fx *fixture) reopen(t *testing.T) *fixture {
	t.Helper()
	fx.log.Close()
	return newFixture(t, fx.dir)
}

func scan(t *testing.T, fx *fixture) []int64 {
	t.Helper()
	tid := primitives.NewTransactionID()
	values, err := fx.pool.ScanTable(tid, fx.table)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	return values
}

func TestRecoveryCommitSurvivesCrash(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, dir)

	tid := primitives.NewTransactionID()
	fx.pool.InsertTuple(tid, fx.table, 1)
	fx.pool.InsertTuple(tid, fx.table, 2)
	if err := fx.pool.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}
	// Simulate a crash: no clean shutdown, just reopen from disk.
	fx = fx.reopen(t)

	engine := recovery.NewRecoveryEngine(fx.log, fx.pool, fx.pool)
	if err := engine.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	values := scan(t, fx)
	if len(values) != 2 {
		t.Fatalf("scan after recovery = %v, want 2 values", values)
	}
}

func TestRecoveryUndoesUncommittedFlush(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, dir)

	tid := primitives.NewTransactionID()
	fx.pool.InsertTuple(tid, fx.table, 3)
	if err := fx.pool.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}
	// Crash before commit.
	fx = fx.reopen(t)

	engine := recovery.NewRecoveryEngine(fx.log, fx.pool, fx.pool)
	if err := engine.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	values := scan(t, fx)
	if len(values) != 0 {
		t.Fatalf("scan after recovery = %v, want the flushed-but-uncommitted insert undone", values)
	}
}

func TestRecoveryWithAbortMidway(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, dir)

	t1 := primitives.NewTransactionID()
	fx.pool.InsertTuple(t1, fx.table, 4)
	fx.pool.TransactionComplete(t1, false)

	t2 := primitives.NewTransactionID()
	fx.pool.InsertTuple(t2, fx.table, 5)
	fx.pool.TransactionComplete(t2, true)

	// Clean-ish shutdown: reopen and recover, should be a no-op given
	// everything already resolved.
	fx = fx.reopen(t)
	engine := recovery.NewRecoveryEngine(fx.log, fx.pool, fx.pool)
	if err := engine.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	values := scan(t, fx)
	if len(values) != 1 || values[0] != 5 {
		t.Fatalf("scan after recovery = %v, want [5]", values)
	}
}

func TestRecoveryIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, dir)

	tid := primitives.NewTransactionID()
	fx.pool.InsertTuple(tid, fx.table, 7)
	fx.pool.TransactionComplete(tid, true)
	fx = fx.reopen(t)

	first := recovery.NewRecoveryEngine(fx.log, fx.pool, fx.pool)
	if err := first.Recover(); err != nil {
		t.Fatalf("first Recover: %v", err)
	}
	firstScan := scan(t, fx)

	second := recovery.NewRecoveryEngine(fx.log, fx.pool, fx.pool)
	if err := second.Recover(); err != nil {
		t.Fatalf("second Recover: %v", err)
	}
	secondScan := scan(t, fx)

	if len(firstScan) != len(secondScan) {
		t.Fatalf("recovery is not idempotent: %v vs %v", firstScan, secondScan)
	}
}
