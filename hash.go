package stripedmap

import (
	"hash/maphash"
	"math/bits"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// HashFunc computes the hash of a key. The seed is chosen once per table.
// Any deterministic, well-distributed function works; equal keys must
// produce equal hashes.
type HashFunc[K comparable] func(key K, seed uint64) uint64

// defaultHasher picks a hasher for K.
//
// Integer keys are used as their own hash (mixed with the seed), which
// spreads sequential keys perfectly over a modulo index. Strings go through
// xxhash. Everything else falls back to the runtime's hasher for comparable
// values.
func defaultHasher[K comparable]() HashFunc[K] {
	switch any(*new(K)).(type) {
	case uint, int, uintptr:
		return func(key K, seed uint64) uint64 {
			return mix(uint64(*(*uintptr)(unsafe.Pointer(&key))), seed)
		}
	case uint64, int64:
		return func(key K, seed uint64) uint64 {
			return mix(*(*uint64)(unsafe.Pointer(&key)), seed)
		}
	case uint32, int32:
		return func(key K, seed uint64) uint64 {
			return mix(uint64(*(*uint32)(unsafe.Pointer(&key))), seed)
		}
	case uint16, int16:
		return func(key K, seed uint64) uint64 {
			return mix(uint64(*(*uint16)(unsafe.Pointer(&key))), seed)
		}
	case uint8, int8:
		return func(key K, seed uint64) uint64 {
			return mix(uint64(*(*uint8)(unsafe.Pointer(&key))), seed)
		}
	case string:
		return func(key K, seed uint64) uint64 {
			return xxhash.Sum64String(*(*string)(unsafe.Pointer(&key))) ^ seed
		}
	default:
		ms := maphash.MakeSeed()
		return func(key K, seed uint64) uint64 {
			return maphash.Comparable(ms, key) ^ seed
		}
	}
}

// mix folds the seed into an integer key. Only the low bits are perturbed
// by a rotation of the seed so that consecutive keys stay in distinct
// buckets.
func mix(v, seed uint64) uint64 {
	return v + bits.RotateLeft64(seed, 17)
}

// bucketIndex maps a hash onto [0, n).
func bucketIndex(hash uint64, n int) int {
	return int(hash % uint64(n))
}
