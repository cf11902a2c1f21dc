package lock

import (
	"sync"
	"time"

	"txnstore/pkg/dberr"
	"txnstore/pkg/logging"
	"txnstore/pkg/primitives"
)

// DefaultTimeout is how long a transaction will wait to acquire a lock
// before it is aborted, per the acquisition timeout policy.
const DefaultTimeout = 30 * time.Second

const (
	minBackoff = 500 * time.Microsecond
	maxBackoff = 20 * time.Millisecond
)

// Manager is the page-level shared/exclusive lock table.
type Manager struct {
	mu      sync.Mutex
	locks   map[primitives.PageID]*state
	waiters *depGraph
	timeout time.Duration
}

// NewManager builds a lock table with the given acquisition timeout. A
// zero timeout falls back to DefaultTimeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		locks:   make(map[primitives.PageID]*state),
		waiters: newDepGraph(),
		timeout: timeout,
	}
}

// Acquire blocks (via cooperative spin-with-backoff) until tid holds mode
// on pid, or fails with TransactionAborted on deadlock or timeout.
func (m *Manager) Acquire(tid primitives.TransactionID, pid primitives.PageID, mode Mode) error {
	backoff := minBackoff
	for {
		granted, mustWaitOn, err := m.tryAcquire(tid, pid, mode)
		if err != nil {
			return err
		}
		if granted {
			logging.WithLock(tid.ID(), pid.String()).Debug("lock acquired", "mode", mode)
			return nil
		}

		if err := m.checkBlocked(tid, mustWaitOn); err != nil {
			return err
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// tryAcquire makes one attempt to grant the lock under the table mutex.
// It returns the transactions tid must now wait on if it could not be
// granted immediately.
func (m *Manager) tryAcquire(tid primitives.TransactionID, pid primitives.PageID, mode Mode) (granted bool, waitOn []primitives.TransactionID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.locks[pid]
	if !ok {
		s = newState()
		m.locks[pid] = s
	}

	// Every attempt starts from a clean slate: tid's prior wait may have
	// pointed at a holder that has since released, and re-deriving the
	// edge set below (rather than accumulating onto it) keeps the graph
	// reflecting only waits that are still live.
	m.waiters.clear(tid)

	switch mode {
	case Shared:
		if s.hasExclusiveOtherThan(tid) {
			m.waiters.addEdge(tid, s.exclusiveHolder)
			return false, []primitives.TransactionID{s.exclusiveHolder}, nil
		}
		if s.exclusiveHolder == tid {
			return true, nil, nil
		}
		s.sharedHolders[tid] = struct{}{}
		return true, nil, nil

	case Exclusive:
		if s.hasExclusiveOtherThan(tid) {
			m.waiters.addEdge(tid, s.exclusiveHolder)
			return false, []primitives.TransactionID{s.exclusiveHolder}, nil
		}
		if s.exclusiveHolder == tid {
			return true, nil, nil
		}
		others := s.sharedOthers(tid)
		if len(others) > 0 {
			for _, holder := range others {
				m.waiters.addEdge(tid, holder)
			}
			return false, others, nil
		}
		delete(s.sharedHolders, tid)
		s.exclusiveHolder = tid
		return true, nil, nil

	default:
		return false, nil, dberr.Newf(dberr.DbError, "unknown lock mode %v", mode)
	}
}

// checkBlocked runs the deadlock and timeout checks for a transaction
// that failed to acquire a lock this attempt. On either trip, tid's
// waiting edges are cleared and TransactionAborted is returned; the
// caller (the transaction's owner) is responsible for running the full
// abort path, which will in turn call ReleaseAll.
func (m *Manager) checkBlocked(tid primitives.TransactionID, waitOn []primitives.TransactionID) error {
	m.mu.Lock()
	cyclic := m.waiters.hasCycleFrom(tid)
	m.mu.Unlock()

	if cyclic {
		m.abortWaiter(tid)
		err := dberr.Newf(dberr.TransactionAborted, "deadlock detected involving %s", tid)
		logging.WithError(err).With("tx_id", tid.ID()).Warn("aborting on deadlock")
		return err
	}

	if time.Now().UnixMilli()-tid.StartMillis() > m.timeout.Milliseconds() {
		m.abortWaiter(tid)
		err := dberr.Newf(dberr.TransactionAborted, "lock acquisition timed out for %s", tid)
		logging.WithError(err).With("tx_id", tid.ID()).Warn("aborting on lock timeout")
		return err
	}

	_ = waitOn
	return nil
}

func (m *Manager) abortWaiter(tid primitives.TransactionID) {
	m.mu.Lock()
	m.waiters.clear(tid)
	m.mu.Unlock()
}

// Release drops tid's hold (shared or exclusive) on a single page.
func (m *Manager) Release(tid primitives.TransactionID, pid primitives.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.locks[pid]
	if !ok {
		return
	}
	if s.exclusiveHolder == tid {
		s.exclusiveHolder = primitives.InvalidTransactionID
	}
	delete(s.sharedHolders, tid)
	if s.empty() {
		delete(m.locks, pid)
	}
}

// ReleaseAll drops every lock tid holds, called once at commit or abort
// completion per strict two-phase locking.
func (m *Manager) ReleaseAll(tid primitives.TransactionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pid, s := range m.locks {
		if s.exclusiveHolder == tid {
			s.exclusiveHolder = primitives.InvalidTransactionID
		}
		delete(s.sharedHolders, tid)
		if s.empty() {
			delete(m.locks, pid)
		}
	}
	m.waiters.clear(tid)
}

// Holds reports whether tid currently holds any lock (shared or
// exclusive) on pid.
func (m *Manager) Holds(tid primitives.TransactionID, pid primitives.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.locks[pid]
	if !ok {
		return false
	}
	return s.holds(tid)
}
