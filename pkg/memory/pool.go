// Package memory implements the buffer pool (C4): a bounded, no-steal
// page cache sitting between transactions and the on-disk page stores,
// enforcing the write-ahead-log rule on every dirty-page flush and
// delegating lock acquisition to the lock table.
package memory

import (
	"sync"

	"txnstore/pkg/concurrency/lock"
	"txnstore/pkg/dberr"
	"txnstore/pkg/log/wal"
	"txnstore/pkg/logging"
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

// DefaultCapacity is the default number of pages the pool holds at once.
const DefaultCapacity = 50

// BufferPool is the bounded page cache shared by every transaction.
type BufferPool struct {
	mu    sync.Mutex
	cache *cache
	files map[primitives.TableID]page.File
	locks *lock.Manager
	log   *wal.Log

	// dirtiedBy tracks, per transaction, the pages it has modified, so
	// commit and abort know exactly which pages to flush or discard.
	dirtiedBy map[primitives.TransactionID]map[primitives.PageID]struct{}
}

// NewBufferPool builds an empty pool of the given capacity backed by
// locks and log.
func NewBufferPool(capacity int, locks *lock.Manager, log *wal.Log) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BufferPool{
		cache:     newCache(capacity),
		files:     make(map[primitives.TableID]page.File),
		locks:     locks,
		log:       log,
		dirtiedBy: make(map[primitives.TransactionID]map[primitives.PageID]struct{}),
	}
}

// RegisterFile makes a table's backing file available to GetPage.
func (p *BufferPool) RegisterFile(f page.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[f.ID()] = f
}

// File returns the backing file for a table id, implementing
// recovery.FileSource.
func (p *BufferPool) File(id primitives.TableID) (page.File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[id]
	return f, ok
}

// Discard removes a page from the cache without writing it, implementing
// recovery.Cache. It is also used internally by abort's rollback pass.
func (p *BufferPool) Discard(pid primitives.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.remove(pid)
}

// GetPage acquires the requested lock (blocking as needed), then returns
// the cached page image, loading it from its backing file (evicting a
// clean victim if the cache is full) on a miss.
//
// GetPage is for read-only access. A caller that intends to mutate the
// returned page must use Mutate instead: the page it hands back is only
// protected by the lock table between this call and the caller's own
// dirty-marking, and in that window it is still tagged clean, so it
// remains a legal victim for a concurrent GetPage's eviction scan.
func (p *BufferPool) GetPage(tid primitives.TransactionID, pid primitives.PageID, mode lock.Mode) (page.Page, error) {
	if err := p.locks.Acquire(tid, pid, mode); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.resolve(pid)
}

// Mutate acquires pid exclusively for tid, then runs fn against the
// cached page while still holding the pool's internal lock. If fn
// reports the page as touched, the page is marked dirty for tid before
// the lock is released, so it can never be selected by a concurrent
// evictClean between resolution and dirty-marking. fn's slot return
// value is passed through unchanged for callers that need it (heap
// inserts report the slot they landed in).
func (p *BufferPool) Mutate(tid primitives.TransactionID, pid primitives.PageID, fn func(pg page.Page) (touched bool, slot int, err error)) (touched bool, slot int, err error) {
	if err := p.locks.Acquire(tid, pid, lock.Exclusive); err != nil {
		return false, 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.resolve(pid)
	if err != nil {
		return false, 0, err
	}

	touched, slot, err = fn(pg)
	if err != nil {
		return false, 0, err
	}
	if touched {
		pg.MarkDirty(tid)
		p.markDirty(tid, pid)
	}
	return touched, slot, nil
}

// resolve returns pid's cached page, loading it from its backing file
// (evicting a clean victim if the cache is full) on a miss. Callers must
// hold p.mu.
func (p *BufferPool) resolve(pid primitives.PageID) (page.Page, error) {
	if cached, ok := p.cache.get(pid); ok {
		return cached, nil
	}

	f, ok := p.files[pid.Table]
	if !ok {
		return nil, dberr.Newf(dberr.DbError, "no backing file registered for table %d", pid.Table)
	}

	if p.cache.full() {
		if err := p.evictClean(); err != nil {
			return nil, err
		}
	}

	pg, err := f.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	// Invariant: on entry to the buffer pool, before_image equals the
	// bytes on disk.
	pg.SetBeforeImage()
	p.cache.put(pid, pg)
	return pg, nil
}

// evictClean scans for any cached page that is not dirty and drops it.
// Callers must hold p.mu. Dirty pages are never stolen: with nothing
// clean to evict, the pool refuses the request rather than log-and-write
// a page out from under a still-active transaction.
func (p *BufferPool) evictClean() error {
	for _, pg := range p.cache.all() {
		if !pg.IsDirty().IsValid() {
			logging.WithPage(pg.ID()).Debug("evicting clean page")
			p.cache.remove(pg.ID())
			return nil
		}
	}
	err := dberr.New(dberr.OutOfBufferSpace, "no clean page available for eviction")
	logging.WithError(err).Warn("buffer pool exhausted")
	return err
}

// markDirty records that tid has modified pid, for later flush or undo.
func (p *BufferPool) markDirty(tid primitives.TransactionID, pid primitives.PageID) {
	set, ok := p.dirtiedBy[tid]
	if !ok {
		set = make(map[primitives.PageID]struct{})
		p.dirtiedBy[tid] = set
	}
	set[pid] = struct{}{}
}

// flushPage writes pid's Update record (before-image, current bytes) to
// the log, forces it, and only then writes the page to disk. Callers must
// hold p.mu. A clean or absent page is a no-op.
func (p *BufferPool) flushPage(pid primitives.PageID) error {
	pg, ok := p.cache.get(pid)
	if !ok {
		return nil
	}
	tid := pg.IsDirty()
	if !tid.IsValid() {
		return nil
	}

	f, ok := p.files[pid.Table]
	if !ok {
		return dberr.Newf(dberr.DbError, "no backing file registered for table %d", pid.Table)
	}

	before := pg.BeforeImage()
	if err := p.log.LogUpdate(tid, pid, before, pg); err != nil {
		return err
	}
	if err := p.log.Force(); err != nil {
		return err
	}
	logging.WithPage(pid).With("tx_id", tid.ID()).Debug("flushing dirty page")
	return f.WritePage(pg)
}

// FlushAllPages is a diagnostic operation that force-writes every dirty
// page in the cache, obeying the same WAL-before-write rule as a commit
// flush. Unlike a commit flush it does not update before-images or clear
// dirty tags: it is not part of any production transaction path.
func (p *BufferPool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pg := range p.cache.all() {
		if pg.IsDirty().IsValid() {
			if err := p.flushPage(pg.ID()); err != nil {
				return err
			}
		}
	}
	return nil
}
