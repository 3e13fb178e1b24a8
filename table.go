package stripedmap

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Table is a concurrent hash table with striped locking.
//
// Key features of stripedmap.Table:
//   - One lock per bucket, so operations on keys in different buckets run
//     in parallel
//   - Automatic doubling of the bucket array once the load factor is reached
//   - Whole-table operations (Clear, Snapshot, Stats, resize) acquire every
//     bucket lock in increasing index order, which makes them atomic with
//     respect to point operations and deadlock-free among themselves
//   - Every lock acquisition is bounded by a timeout and reports
//     ErrLockTimeout instead of blocking indefinitely
//
// A Table must not be copied after first use.
type Table[K comparable, V any] struct {
	// state is swapped only by a resize holding every lock of the current
	// generation.
	state    atomic.Pointer[tableState[K, V]]
	counters counters

	cfg     Config
	seed    uint64
	keyHash HashFunc[K]
	logger  *zap.Logger
	metrics *tableMetrics

	totalGrowths     atomic.Uint32
	abandonedResizes atomic.Uint32
	closed           atomic.Bool
}

// New creates a table with the given initial capacity (number of buckets)
// and load factor. It fails with ErrInvalidArgument if capacity < 1 or
// loadFactor is outside (0.1, 1.0].
func New[K comparable, V any](
	capacity int,
	loadFactor float64,
	options ...Option,
) (*Table[K, V], error) {
	return NewWithHasher[K, V](capacity, loadFactor, nil, options...)
}

// NewWithHasher creates a table with a custom key hasher.
//
// Parameters:
//   - keyHash: nil uses the built-in hasher
//   - options: see WithLockTimeout, WithProbeTimeout, WithLogger,
//     WithRegisterer and WithName
func NewWithHasher[K comparable, V any](
	capacity int,
	loadFactor float64,
	keyHash HashFunc[K],
	options ...Option,
) (*Table[K, V], error) {
	cfg := DefaultConfig()
	for _, o := range options {
		o(&cfg)
	}
	cfg.InitialCapacity = capacity
	cfg.LoadFactor = loadFactor
	return newTable[K, V](cfg, keyHash)
}

// NewFromConfig creates a table from a complete configuration, such as one
// decoded from a file. Options are applied on top of cfg.
func NewFromConfig[K comparable, V any](cfg Config, options ...Option) (*Table[K, V], error) {
	for _, o := range options {
		o(&cfg)
	}
	return newTable[K, V](cfg, nil)
}

func newTable[K comparable, V any](cfg Config, keyHash HashFunc[K]) (*Table[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Table[K, V]{
		cfg:     cfg,
		seed:    rand.Uint64(),
		keyHash: keyHash,
		logger:  cfg.Logger,
	}
	if t.keyHash == nil {
		t.keyHash = defaultHasher[K]()
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.logger = t.logger.With(zap.String("table", cfg.Name))

	t.state.Store(newTableState[K, V](cfg.InitialCapacity))
	t.counters.setCapacity(cfg.InitialCapacity)

	metrics, err := newTableMetrics(cfg.Name, cfg.Registerer,
		func() float64 { return float64(t.Len()) },
		func() float64 { return float64(t.Capacity()) },
	)
	if err != nil {
		return nil, err
	}
	t.metrics = metrics
	return t, nil
}

// lockBucket locks the bucket that owns hash in the current generation.
//
// The lock is taken first and the generation confirmed afterwards. If a
// resize published a new generation in between, the stale lock is dropped
// and the lookup repeated against the new arrays.
func (t *Table[K, V]) lockBucket(op string, hash uint64) (*tableState[K, V], int, error) {
	for {
		st := t.state.Load()
		idx := bucketIndex(hash, len(st.buckets))
		if !st.locks[idx].lockWithin(t.cfg.LockTimeout) {
			t.metrics.lockTimeouts.WithLabelValues(op).Inc()
			return nil, 0, ErrLockTimeout
		}
		if t.state.Load() == st {
			return st, idx, nil
		}
		st.locks[idx].unlock()
	}
}

func (t *Table[K, V]) loadEntry(op string, key K) (value V, ok bool, err error) {
	if t.closed.Load() {
		return value, false, opError(op, key, ErrClosed)
	}
	st, idx, err := t.lockBucket(op, t.keyHash(key, t.seed))
	if err != nil {
		return value, false, opError(op, key, err)
	}
	defer st.locks[idx].unlock()

	b := &st.buckets[idx]
	if i := b.find(key); i >= 0 {
		return b.entries[i].Value, true, nil
	}
	return value, false, nil
}

// processEntry runs fn under the lock of the key's bucket and applies its
// verdict:
//   - returning loaded unchanged leaves the bucket as is
//   - returning a different non-nil entry stores its value under key
//   - returning nil deletes the entry if there was one
//
// An insertion triggers a resize check once the bucket lock is released.
func (t *Table[K, V]) processEntry(
	op string,
	key K,
	fn func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool),
) (V, bool, error) {
	if t.closed.Load() {
		var zero V
		return zero, false, opError(op, key, ErrClosed)
	}
	st, idx, err := t.lockBucket(op, t.keyHash(key, t.seed))
	if err != nil {
		var zero V
		return zero, false, opError(op, key, err)
	}

	inserted, value, status := t.applyLocked(st, idx, key, fn)
	if inserted {
		t.maybeGrow()
	}
	return value, status, nil
}

func (t *Table[K, V]) applyLocked(
	st *tableState[K, V],
	idx int,
	key K,
	fn func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool),
) (inserted bool, value V, status bool) {
	defer st.locks[idx].unlock()

	b := &st.buckets[idx]
	i := b.find(key)
	var loaded *EntryOf[K, V]
	if i >= 0 {
		e := b.entries[i]
		loaded = &e
	}

	newEntry, value, status := fn(loaded)
	switch {
	case loaded != nil && newEntry == loaded:
	case loaded != nil && newEntry != nil:
		b.entries[i].Value = newEntry.Value
	case loaded != nil:
		b.removeAt(i)
		t.counters.add(-1)
	case newEntry != nil:
		b.entries = append(b.entries, EntryOf[K, V]{Key: key, Value: newEntry.Value})
		t.counters.add(1)
		inserted = true
	}
	return inserted, value, status
}

// Get returns the value stored under key, or ErrNotFound.
func (t *Table[K, V]) Get(key K) (V, error) {
	value, ok, err := t.loadEntry("get", key)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, opError("get", key, ErrNotFound)
	}
	return value, nil
}

// GetOrDefault returns the value stored under key, or def if there is none.
func (t *Table[K, V]) GetOrDefault(key K, def V) (V, error) {
	value, ok, err := t.loadEntry("get", key)
	if err != nil {
		return value, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Contains reports whether key is present. It never returns ErrNotFound.
func (t *Table[K, V]) Contains(key K) (bool, error) {
	_, ok, err := t.loadEntry("contains", key)
	return ok, err
}

// Set inserts or replaces the value stored under key.
//
// If the insertion pushes the table over its load factor, the table is
// grown before Set returns. A resize that cannot acquire every lock in
// time is abandoned and retried by a later insertion; Set still succeeds.
func (t *Table[K, V]) Set(key K, value V) error {
	_, _, err := t.processEntry("set", key,
		func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool) {
			return &EntryOf[K, V]{Value: value}, value, loaded != nil
		},
	)
	return err
}

// SetDefault returns the value stored under key. If there is none, def is
// inserted and returned. The check and the insertion are atomic.
func (t *Table[K, V]) SetDefault(key K, def V) (V, error) {
	value, _, err := t.processEntry("setdefault", key,
		func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool) {
			if loaded != nil {
				return loaded, loaded.Value, true
			}
			return &EntryOf[K, V]{Value: def}, def, false
		},
	)
	return value, err
}

// Delete removes key, or returns ErrNotFound.
func (t *Table[K, V]) Delete(key K) error {
	_, err := t.pop("delete", key)
	return err
}

// Pop removes key and returns its value, or returns ErrNotFound.
func (t *Table[K, V]) Pop(key K) (V, error) {
	return t.pop("pop", key)
}

// PopOr removes key and returns its value. If key is absent, def is
// returned and no error is reported.
func (t *Table[K, V]) PopOr(key K, def V) (V, error) {
	value, err := t.pop("pop", key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return value, err
}

func (t *Table[K, V]) pop(op string, key K) (V, error) {
	value, loaded, err := t.processEntry(op, key,
		func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool) {
			if loaded == nil {
				var zero V
				return nil, zero, false
			}
			return nil, loaded.Value, true
		},
	)
	if err != nil {
		return value, err
	}
	if !loaded {
		return value, opError(op, key, ErrNotFound)
	}
	return value, nil
}

// ComputeOp tells Compute what to do with the value returned by its
// function.
type ComputeOp int

const (
	// CancelOp leaves the entry as it was, absent or present.
	CancelOp ComputeOp = iota
	// UpdateOp stores the returned value, creating the entry if necessary.
	UpdateOp
	// DeleteOp removes the entry.
	DeleteOp
)

// Compute atomically reads, modifies and writes the entry for key.
// valueFn receives the current value and whether it was present; the
// returned ComputeOp decides whether the new value is stored, the entry is
// deleted, or nothing happens. The ok result reports whether the entry is
// present after the call, and actual holds its value in that case.
//
// valueFn runs while the key's bucket is locked. It must be short and must
// not call back into the table.
func (t *Table[K, V]) Compute(
	key K,
	valueFn func(oldValue V, loaded bool) (newValue V, op ComputeOp),
) (actual V, ok bool, err error) {
	return t.processEntry("compute", key,
		func(loaded *EntryOf[K, V]) (*EntryOf[K, V], V, bool) {
			var zero V
			if loaded != nil {
				newValue, op := valueFn(loaded.Value, true)
				switch op {
				case UpdateOp:
					return &EntryOf[K, V]{Value: newValue}, newValue, true
				case DeleteOp:
					return nil, zero, false
				}
				return loaded, loaded.Value, true
			}
			newValue, op := valueFn(zero, false)
			if op == UpdateOp {
				return &EntryOf[K, V]{Value: newValue}, newValue, true
			}
			return nil, zero, false
		},
	)
}

// Len returns the number of entries. This is an O(1) operation.
func (t *Table[K, V]) Len() int {
	size, _ := t.counters.load()
	return size
}

// Capacity returns the current number of buckets.
func (t *Table[K, V]) Capacity() int {
	_, capacity := t.counters.load()
	return capacity
}

// LoadFactor returns the resize threshold the table was built with.
func (t *Table[K, V]) LoadFactor() float64 {
	return t.cfg.LoadFactor
}

// Close releases the resources held by the table: its metrics are
// unregistered and later operations fail with ErrClosed. Closing an already
// closed table is a no-op.
func (t *Table[K, V]) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.metrics.unregister()
	t.logger.Info("table closed",
		zap.Int("entries", t.Len()),
		zap.Int("capacity", t.Capacity()),
	)
	return nil
}
