package stripedmap

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"
)

// EntryOf is a key-value pair as stored in a bucket and as handed out by
// snapshots.
type EntryOf[K comparable, V any] struct {
	Key   K
	Value V
}

// bucket is a collision chain. Entries keep insertion order, which has no
// meaning outside the bucket.
type bucket[K comparable, V any] struct {
	entries []EntryOf[K, V]
}

func (b *bucket[K, V]) find(key K) int {
	for i := range b.entries {
		if b.entries[i].Key == key {
			return i
		}
	}
	return -1
}

func (b *bucket[K, V]) removeAt(i int) EntryOf[K, V] {
	e := b.entries[i]
	last := len(b.entries) - 1
	copy(b.entries[i:], b.entries[i+1:])
	b.entries[last] = EntryOf[K, V]{}
	b.entries = b.entries[:last]
	return e
}

func (b *bucket[K, V]) reset() {
	clear(b.entries)
	b.entries = b.entries[:0]
}

const (
	// spinsBeforeSleep is the number of Gosched rounds tried before the
	// waiter falls back to sleeping.
	spinsBeforeSleep = 16
	yieldSleep       = 50 * time.Microsecond
)

// bucketLock is the per-bucket mutual exclusion lock.
// It is a CAS spin lock with backoff, padded to a cache line so that the
// lock array does not suffer from false sharing. Unlike sync.Mutex it can
// give up at a deadline.
type bucketLock struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(atomic.Uint32{})%CacheLineSize) % CacheLineSize]byte

	state atomic.Uint32
}

func (l *bucketLock) tryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// lockWithin acquires the lock, waiting at most timeout.
// This function can be inlined.
func (l *bucketLock) lockWithin(timeout time.Duration) bool {
	if l.tryLock() {
		return true
	}
	return l.slowLock(timeout)
}

func (l *bucketLock) slowLock(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	spins := 0
	for !l.tryLock() {
		if !time.Now().Before(deadline) {
			return false
		}
		delay(&spins)
	}
	return true
}

func (l *bucketLock) unlock() {
	l.state.Store(0)
}

func delay(spins *int) {
	if *spins < spinsBeforeSleep {
		runtime.Gosched()
		*spins++
		return
	}
	time.Sleep(yieldSleep)
}

// tableState is one generation of the table: the bucket array and the lock
// array that guards it. A generation is never resized in place; a resize
// publishes a new tableState.
type tableState[K comparable, V any] struct {
	buckets []bucket[K, V]
	locks   []bucketLock
}

func newTableState[K comparable, V any](capacity int) *tableState[K, V] {
	return &tableState[K, V]{
		buckets: make([]bucket[K, V], capacity),
		locks:   make([]bucketLock, capacity),
	}
}

// unlockFirst releases locks [0, n).
func (st *tableState[K, V]) unlockFirst(n int) {
	for i := 0; i < n; i++ {
		st.locks[i].unlock()
	}
}
