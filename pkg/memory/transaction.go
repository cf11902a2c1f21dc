package memory

import (
	"txnstore/pkg/primitives"
	"txnstore/pkg/recovery"
)

// TransactionComplete implements the commit and abort paths of C4:
//
// On commit, every page tid dirtied is flushed (Update record forced,
// then written to disk), a Commit record is appended and forced, each
// flushed page's before-image is advanced to its just-written bytes, and
// all of tid's locks are released.
//
// On abort, tid's flushed writes are undone via the rollback engine, every
// page tid dirtied is discarded from the cache without being written, an
// Abort record is appended and forced, and all of tid's locks are released.
func (p *BufferPool) TransactionComplete(tid primitives.TransactionID, commit bool) error {
	if commit {
		if err := p.commit(tid); err != nil {
			return err
		}
	} else {
		if err := p.abort(tid); err != nil {
			return err
		}
	}
	p.locks.ReleaseAll(tid)
	return nil
}

func (p *BufferPool) commit(tid primitives.TransactionID) error {
	p.mu.Lock()
	dirtied := p.dirtiedBy[tid]
	for pid := range dirtied {
		if err := p.flushPage(pid); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	p.mu.Unlock()

	if err := p.log.LogCommit(tid); err != nil {
		return err
	}

	p.mu.Lock()
	for pid := range dirtied {
		if pg, ok := p.cache.get(pid); ok {
			pg.SetBeforeImage()
			pg.MarkDirty(primitives.InvalidTransactionID)
		}
	}
	delete(p.dirtiedBy, tid)
	p.mu.Unlock()
	return nil
}

func (p *BufferPool) abort(tid primitives.TransactionID) error {
	offset, ok := p.log.FirstOffset(tid)
	if ok {
		engine := recovery.NewRollbackEngine(p.log, p, p)
		if err := engine.Rollback(tid, offset); err != nil {
			return err
		}
	}

	p.mu.Lock()
	for pid := range p.dirtiedBy[tid] {
		p.cache.remove(pid)
	}
	delete(p.dirtiedBy, tid)
	p.mu.Unlock()

	return p.log.LogAbort(tid)
}
