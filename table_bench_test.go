package stripedmap

import (
	"testing"
)

func BenchmarkTableGetSmall(b *testing.B) {
	benchmarkTableGet(b, testDataSmall[:])
}

func BenchmarkTableGet(b *testing.B) {
	benchmarkTableGet(b, testData[:])
}

func BenchmarkTableGetLarge(b *testing.B) {
	benchmarkTableGet(b, testDataLarge[:])
}

func benchmarkTableGet(b *testing.B, data []string) {
	b.ReportAllocs()
	tbl := newTestTable[string, int](b, DefaultInitialCapacity, DefaultLoadFactor)
	for i := range data {
		_ = tbl.Set(data[i], i)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = tbl.Get(data[i])
			i++
			if i >= len(data) {
				i = 0
			}
		}
	})
}

func BenchmarkTableSet(b *testing.B) {
	benchmarkTableSet(b, testData[:])
}

func BenchmarkTableSetLarge(b *testing.B) {
	benchmarkTableSet(b, testDataLarge[:])
}

func benchmarkTableSet(b *testing.B, data []string) {
	b.ReportAllocs()
	tbl := newTestTable[string, int](b, DefaultInitialCapacity, DefaultLoadFactor)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = tbl.Set(data[i], i)
			i++
			if i >= len(data) {
				i = 0
			}
		}
	})
}

func BenchmarkTableIntSet(b *testing.B) {
	b.ReportAllocs()
	tbl := newTestTable[int, int](b, DefaultInitialCapacity, DefaultLoadFactor)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = tbl.Set(i, i)
			i++
		}
	})
}

func BenchmarkTableCompute(b *testing.B) {
	b.ReportAllocs()
	tbl := newTestTable[string, int](b, DefaultInitialCapacity, DefaultLoadFactor)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = tbl.Compute(testData[i], func(old int, _ bool) (int, ComputeOp) {
				return old + 1, UpdateOp
			})
			i++
			if i >= len(testData) {
				i = 0
			}
		}
	})
}

func BenchmarkTableSnapshot(b *testing.B) {
	b.ReportAllocs()
	tbl := newTestTable[string, int](b, DefaultInitialCapacity, DefaultLoadFactor)
	for i := range testData {
		_ = tbl.Set(testData[i], i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tbl.Snapshot()
	}
}
