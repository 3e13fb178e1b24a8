package stripedmap

import (
	"time"

	"go.uber.org/zap"
)

// lockAll acquires every bucket lock of the current generation in
// increasing index order. Each lock is waited for at most LockTimeout; on
// timeout the locks already held are released and ErrLockTimeout returned.
//
// If a resize published a new generation while the locks were being
// collected, they are all released and the protocol restarts on the new
// generation. Once lockAll returns, no point operation is in flight and no
// other whole-table operation can start until unlockAll.
func (t *Table[K, V]) lockAll(op string) (*tableState[K, V], error) {
	for {
		st := t.state.Load()
		for i := range st.locks {
			if !st.locks[i].lockWithin(t.cfg.LockTimeout) {
				st.unlockFirst(i)
				t.metrics.lockTimeouts.WithLabelValues(op).Inc()
				t.logger.Warn("whole-table lock timed out",
					zap.String("op", op),
					zap.Int("bucket", i),
					zap.Int("capacity", len(st.locks)),
					zap.Duration("timeout", t.cfg.LockTimeout),
				)
				return nil, ErrLockTimeout
			}
		}
		if t.state.Load() == st {
			return st, nil
		}
		st.unlockFirst(len(st.locks))
	}
}

func unlockAll[K comparable, V any](st *tableState[K, V]) {
	st.unlockFirst(len(st.locks))
}

// maybeGrow is called after an insertion has released its bucket lock.
func (t *Table[K, V]) maybeGrow() {
	if !t.counters.overloaded(t.cfg.LoadFactor) {
		return
	}
	if err := t.grow(); err != nil {
		t.abandonedResizes.Add(1)
		t.metrics.abandonedResizes.Inc()
		t.logger.Warn("resize abandoned, will retry on a later insertion", zap.Error(err))
	}
}

func (t *Table[K, V]) grow() error {
	st, err := t.lockAll("resize")
	if err != nil {
		return err
	}
	// the old generation's locks are the ones held
	defer unlockAll(st)

	// another resize may have completed while we were waiting; the
	// generation we hold is the authority on capacity
	oldCapacity := len(st.buckets)
	if !t.counters.exceeds(oldCapacity, t.cfg.LoadFactor) {
		return nil
	}

	start := time.Now()
	next := t.rehash(st, oldCapacity*growthFactor)
	// capacity must be visible before next is, so that an insertion into
	// next never checks the load factor against the old capacity
	t.counters.setCapacity(len(next.buckets))
	t.state.Store(next)

	t.totalGrowths.Add(1)
	t.metrics.resizes.Inc()
	t.logger.Debug("table grew",
		zap.Int("from", oldCapacity),
		zap.Int("to", len(next.buckets)),
		zap.Int("entries", t.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// rehash moves every entry of st into a fresh generation of the given
// capacity. Each entry is visited exactly once. st must be fully locked.
func (t *Table[K, V]) rehash(st *tableState[K, V], capacity int) *tableState[K, V] {
	next := newTableState[K, V](capacity)
	for i := range st.buckets {
		for _, e := range st.buckets[i].entries {
			b := &next.buckets[bucketIndex(t.keyHash(e.Key, t.seed), capacity)]
			b.entries = append(b.entries, e)
		}
	}
	return next
}
