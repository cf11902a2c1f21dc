package memory

import (
	"path/filepath"
	"testing"

	"txnstore/pkg/concurrency/lock"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/heap"
)

func newTestPool(t *testing.T) (*BufferPool, primitives.TableID) {
	t.Helper()
	dir := t.TempDir()

	l, err := wal.Open(primitives.Filepath(filepath.Join(dir, "wal.log")))
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	f, err := heap.Open(1, primitives.Filepath(filepath.Join(dir, "t.dat")))
	if err != nil {
		t.Fatalf("heap.Open: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	locks := lock.NewManager(0)
	pool := NewBufferPool(10, locks, l)
	pool.RegisterFile(f)
	return pool, f.ID()
}

func TestInsertThenCommitPersists(t *testing.T) {
	pool, table := newTestPool(t)
	tid := primitives.NewTransactionID()

	if _, err := pool.InsertTuple(tid, table, 11); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := pool.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete(commit): %v", err)
	}

	tid2 := primitives.NewTransactionID()
	values, err := pool.ScanTable(tid2, table)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if len(values) != 1 || values[0] != 11 {
		t.Fatalf("ScanTable after commit = %v, want [11]", values)
	}
}

func TestInsertThenAbortLeavesTableEmpty(t *testing.T) {
	pool, table := newTestPool(t)
	tid := primitives.NewTransactionID()

	if _, err := pool.InsertTuple(tid, table, 99); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := pool.TransactionComplete(tid, false); err != nil {
		t.Fatalf("TransactionComplete(abort): %v", err)
	}

	tid2 := primitives.NewTransactionID()
	values, err := pool.ScanTable(tid2, table)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("ScanTable after abort = %v, want empty", values)
	}
}

func TestAbortDoesNotDisturbOtherTransactions(t *testing.T) {
	pool, table := newTestPool(t)

	t1 := primitives.NewTransactionID()
	pool.InsertTuple(t1, table, 1)
	pool.TransactionComplete(t1, true)

	t2 := primitives.NewTransactionID()
	pool.InsertTuple(t2, table, 2)
	pool.TransactionComplete(t2, false)

	t3 := primitives.NewTransactionID()
	values, err := pool.ScanTable(t3, table)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if len(values) != 1 || values[0] != 1 {
		t.Fatalf("ScanTable = %v, want [1] (t2's aborted write must not survive)", values)
	}
}
