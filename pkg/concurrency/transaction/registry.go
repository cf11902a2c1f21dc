// Package transaction tracks the lifecycle of in-flight transactions: id
// allocation, start timestamps (used by the lock table for timeouts), and
// the set of transactions still active for recovery's benefit.
package transaction

import (
	"sync"

	"txnstore/pkg/log/wal"
	"txnstore/pkg/primitives"
)

// Registry allocates transaction ids and appends their Begin records to
// the log, mirroring the log's own view of who is active. Commit and Abort
// records are appended by the buffer pool, not here.
type Registry struct {
	mu     sync.Mutex
	log    *wal.Log
	active map[primitives.TransactionID]struct{}
}

// NewRegistry builds a registry writing Begin records to log.
func NewRegistry(log *wal.Log) *Registry {
	return &Registry{
		log:    log,
		active: make(map[primitives.TransactionID]struct{}),
	}
}

// Begin allocates a new transaction id, appends its Begin record, and
// tracks it as active.
func (r *Registry) Begin() (primitives.TransactionID, error) {
	tid := primitives.NewTransactionID()
	if _, err := r.log.LogBegin(tid); err != nil {
		return primitives.TransactionID{}, err
	}

	r.mu.Lock()
	r.active[tid] = struct{}{}
	r.mu.Unlock()

	return tid, nil
}

// Complete marks tid as no longer active. It does not itself write a log
// record; the buffer pool appends Commit/Abort as part of
// TransactionComplete, after which the database facade calls Complete.
func (r *Registry) Complete(tid primitives.TransactionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, tid)
}

// IsActive reports whether tid has begun but not yet completed.
func (r *Registry) IsActive(tid primitives.TransactionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[tid]
	return ok
}

// Active returns a snapshot of every currently active transaction id.
func (r *Registry) Active() []primitives.TransactionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]primitives.TransactionID, 0, len(r.active))
	for tid := range r.active {
		out = append(out, tid)
	}
	return out
}
