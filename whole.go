package stripedmap

import (
	"iter"
	"math/rand/v2"

	"go.uber.org/zap"
)

// Clear removes every entry. The capacity is kept.
// It holds every bucket lock while doing so, so a concurrent Set is either
// wiped out entirely or applied entirely after the clear.
func (t *Table[K, V]) Clear() error {
	if t.closed.Load() {
		return opError("clear", nil, ErrClosed)
	}
	st, err := t.lockAll("clear")
	if err != nil {
		return opError("clear", nil, err)
	}
	defer unlockAll(st)

	for i := range st.buckets {
		st.buckets[i].reset()
	}
	t.counters.resetSize()
	return nil
}

// Snapshot returns a copy of every entry, taken while all buckets were
// locked. Writes that happen after Snapshot returns are not reflected.
// The order of the entries is unspecified.
func (t *Table[K, V]) Snapshot() ([]EntryOf[K, V], error) {
	if t.closed.Load() {
		return nil, opError("snapshot", nil, ErrClosed)
	}
	st, err := t.lockAll("snapshot")
	if err != nil {
		return nil, opError("snapshot", nil, err)
	}
	defer unlockAll(st)

	size, _ := t.counters.load()
	items := make([]EntryOf[K, V], 0, size)
	for i := range st.buckets {
		items = append(items, st.buckets[i].entries...)
	}
	return items, nil
}

// Items is an alias of Snapshot.
func (t *Table[K, V]) Items() ([]EntryOf[K, V], error) {
	return t.Snapshot()
}

// Keys returns the keys of a fresh snapshot.
func (t *Table[K, V]) Keys() ([]K, error) {
	items, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	keys := make([]K, len(items))
	for i := range items {
		keys[i] = items[i].Key
	}
	return keys, nil
}

// Values returns the values of a fresh snapshot.
func (t *Table[K, V]) Values() ([]V, error) {
	items, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	values := make([]V, len(items))
	for i := range items {
		values[i] = items[i].Value
	}
	return values, nil
}

// Range calls yield for each entry of a fresh snapshot until yield
// returns false. yield runs without any lock held and may use the table.
func (t *Table[K, V]) Range(yield func(key K, value V) bool) error {
	items, err := t.Snapshot()
	if err != nil {
		return err
	}
	for _, e := range items {
		if !yield(e.Key, e.Value) {
			break
		}
	}
	return nil
}

// All takes a snapshot and returns an iterator over it, for use with
// range-over-func. The snapshot is taken by All itself, so a lock timeout is
// reported here and never in the middle of a loop.
func (t *Table[K, V]) All() (iter.Seq2[K, V], error) {
	items, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	return func(yield func(K, V) bool) {
		for _, e := range items {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}, nil
}

// ToMap collects a snapshot into a map[K]V.
func (t *Table[K, V]) ToMap() (map[K]V, error) {
	items, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	m := make(map[K]V, len(items))
	for _, e := range items {
		m[e.Key] = e.Value
	}
	return m, nil
}

// Update sets every pair produced by source. It is not atomic as a whole:
// concurrent operations may interleave with the individual sets. It stops
// at the first error.
func (t *Table[K, V]) Update(source iter.Seq2[K, V]) error {
	for k, v := range source {
		if err := t.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// PopItem removes and returns some entry.
//
// It does not lock the whole table. Buckets are probed starting at a
// pseudo-random index and wrapping around, each with ProbeTimeout; the
// first entry of the first non-empty bucket is removed. ErrEmpty is
// returned once a full round found every bucket empty or busy.
func (t *Table[K, V]) PopItem() (key K, value V, err error) {
	if t.closed.Load() {
		return key, value, opError("popitem", nil, ErrClosed)
	}
	st := t.state.Load()
	n := len(st.buckets)
	start := rand.IntN(n)
	busy := 0
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		l := &st.locks[idx]
		if !l.lockWithin(t.cfg.ProbeTimeout) {
			t.metrics.lockTimeouts.WithLabelValues("popitem").Inc()
			busy++
			continue
		}
		if cur := t.state.Load(); cur != st {
			// resized under us, start over on the new generation
			l.unlock()
			st, n = cur, len(cur.buckets)
			start, i, busy = rand.IntN(n), -1, 0
			continue
		}
		b := &st.buckets[idx]
		if len(b.entries) == 0 {
			l.unlock()
			continue
		}
		e := b.removeAt(0)
		t.counters.add(-1)
		l.unlock()
		return e.Key, e.Value, nil
	}
	if busy > 0 {
		t.logger.Debug("popitem found no free non-empty bucket",
			zap.Int("busy", busy),
			zap.Int("capacity", n),
		)
	}
	return key, value, opError("popitem", nil, ErrEmpty)
}
