// Package primitives holds the small value types shared by every layer of
// the storage core: page and table identifiers, transaction identifiers,
// and log sequence numbers. None of these types own any behavior beyond
// identity and serialization, so that the buffer pool, lock table, and log
// writer can all agree on a single wire-compatible vocabulary.
package primitives

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TableID identifies a table's backing file. It is a process-wide unique
// value assigned when the file is registered with the database.
type TableID uint64

// PageNumber is the ordinal of a page within a table file.
type PageNumber uint64

// LSN (log sequence number) is the absolute byte offset of a record's first
// byte within the log file.
type LSN int64

// InvalidLSN marks the absence of a log position, e.g. no checkpoint yet.
const InvalidLSN LSN = -1

// PageID names a single page: (table, page number). It is a plain
// comparable value so it can be used directly as a map key without the
// pointer-identity pitfalls of keying on *TransactionID.
type PageID struct {
	Table TableID
	Num   PageNumber
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(table=%d,num=%d)", p.Table, p.Num)
}

// Offset computes the byte offset of this page within a heap file of the
// given page size: page number times page size.
func (p PageID) Offset(pageSize int) int64 {
	return int64(p.Num) * int64(pageSize)
}

var txnCounter int64

// TransactionID is a monotonically increasing 64-bit identifier that also
// carries the wall-clock millisecond timestamp at which the transaction
// began, used by the lock table to enforce acquisition timeouts. It is a
// plain value type (not a pointer) so that two references to the same
// transaction always compare equal in a map, unlike a scheme keyed on
// pointer identity.
type TransactionID struct {
	id          int64
	startMillis int64
}

// InvalidTransactionID is the zero value; the counter below never
// allocates id 0, so it is safe as a sentinel for "no owning transaction".
var InvalidTransactionID TransactionID

// NewTransactionID allocates the next transaction id and stamps it with
// the current wall-clock time.
func NewTransactionID() TransactionID {
	id := atomic.AddInt64(&txnCounter, 1)
	return TransactionID{id: id, startMillis: time.Now().UnixMilli()}
}

// ID returns the numeric identifier, mainly for logging and log-record
// serialization.
func (t TransactionID) ID() int64 { return t.id }

// StartMillis returns the wall-clock millisecond timestamp the transaction
// began at, used for lock-timeout computation.
func (t TransactionID) StartMillis() int64 { return t.startMillis }

// IsValid reports whether this is a real transaction id and not the zero
// value.
func (t TransactionID) IsValid() bool { return t.id != 0 }

func (t TransactionID) String() string {
	return fmt.Sprintf("txn-%d", t.id)
}

// FromID reconstructs a TransactionID with a known numeric id and start
// time, used when replaying transaction identifiers recovered from the log.
func FromID(id int64, startMillis int64) TransactionID {
	return TransactionID{id: id, startMillis: startMillis}
}
