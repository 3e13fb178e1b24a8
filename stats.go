package stripedmap

import (
	"fmt"
	"math"
	"strings"
)

// Stats returns statistics for the Table, collected while every bucket is
// locked, so Size and Counter always agree. It's an O(N) operation that
// blocks all other operations while it runs; use it for diagnostics only.
func (t *Table[K, V]) Stats() (*Stats, error) {
	if t.closed.Load() {
		return nil, opError("stats", nil, ErrClosed)
	}
	st, err := t.lockAll("stats")
	if err != nil {
		return nil, opError("stats", nil, err)
	}
	defer unlockAll(st)

	stats := &Stats{
		Name:             t.cfg.Name,
		Capacity:         len(st.buckets),
		LoadFactor:       t.cfg.LoadFactor,
		MinEntries:       math.MaxInt,
		TotalGrowths:     t.totalGrowths.Load(),
		AbandonedResizes: t.abandonedResizes.Load(),
	}
	stats.Counter, _ = t.counters.load()
	for i := range st.buckets {
		n := len(st.buckets[i].entries)
		stats.Size += n
		if n == 0 {
			stats.EmptyBuckets++
		}
		stats.MinEntries = min(stats.MinEntries, n)
		stats.MaxEntries = max(stats.MaxEntries, n)
	}
	return stats, nil
}

// Stats is Table statistics.
//
// Warning: table statistics are intended to be used for diagnostic
// purposes, not for production code.
type Stats struct {
	// Name is the table name from its Config.
	Name string
	// Capacity is the number of buckets.
	Capacity int
	// LoadFactor is the resize threshold.
	LoadFactor float64
	// Size is the number of entries found by walking every bucket.
	Size int
	// Counter is the number of entries according to the size counter.
	// It equals Size; a difference indicates a bug.
	Counter int
	// EmptyBuckets is the number of buckets that hold no entries.
	EmptyBuckets int
	// MinEntries is the length of the shortest collision chain.
	MinEntries int
	// MaxEntries is the length of the longest collision chain.
	MaxEntries int
	// TotalGrowths is the number of completed resizes.
	TotalGrowths uint32
	// AbandonedResizes is the number of resizes given up on lock timeout.
	AbandonedResizes uint32
}

// ToString returns string representation of table stats.
func (s *Stats) ToString() string {
	var sb strings.Builder
	sb.WriteString("Stats{\n")
	sb.WriteString(fmt.Sprintf("Name:             %s\n", s.Name))
	sb.WriteString(fmt.Sprintf("Capacity:         %d\n", s.Capacity))
	sb.WriteString(fmt.Sprintf("LoadFactor:       %g\n", s.LoadFactor))
	sb.WriteString(fmt.Sprintf("Size:             %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("Counter:          %d\n", s.Counter))
	sb.WriteString(fmt.Sprintf("EmptyBuckets:     %d\n", s.EmptyBuckets))
	sb.WriteString(fmt.Sprintf("MinEntries:       %d\n", s.MinEntries))
	sb.WriteString(fmt.Sprintf("MaxEntries:       %d\n", s.MaxEntries))
	sb.WriteString(fmt.Sprintf("TotalGrowths:     %d\n", s.TotalGrowths))
	sb.WriteString(fmt.Sprintf("AbandonedResizes: %d\n", s.AbandonedResizes))
	sb.WriteString("}\n")
	return sb.String()
}
