package stripedmap

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTableMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tbl, err := NewWithHasher[int, int](4, 0.5, identityHasher,
		WithName("orders"),
		WithRegisterer(reg),
		WithLockTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, tbl.Set(i, i))
	}
	require.Equal(t, 8, tbl.Capacity())
	require.Equal(t, 1.0, testutil.ToFloat64(tbl.metrics.resizes))

	expected := `
# HELP stripedmap_capacity Number of buckets in the table.
# TYPE stripedmap_capacity gauge
stripedmap_capacity{table="orders"} 8
# HELP stripedmap_entries Number of entries in the table.
# TYPE stripedmap_entries gauge
stripedmap_entries{table="orders"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"stripedmap_capacity", "stripedmap_entries"))

	st := tbl.state.Load()
	require.True(t, st.locks[0].tryLock())
	_, err = tbl.Get(0)
	require.ErrorIs(t, err, ErrLockTimeout)
	require.ErrorIs(t, tbl.Clear(), ErrLockTimeout)
	st.locks[0].unlock()
	require.Equal(t, 1.0, testutil.ToFloat64(tbl.metrics.lockTimeouts.WithLabelValues("get")))
	require.Equal(t, 1.0, testutil.ToFloat64(tbl.metrics.lockTimeouts.WithLabelValues("clear")))

	// a second table with the same name collides
	_, err = New[int, int](4, 0.5, WithName("orders"), WithRegisterer(reg))
	require.Error(t, err)

	require.NoError(t, tbl.Close())
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)

	// the name is free again
	other, err := New[int, int](4, 0.5, WithName("orders"), WithRegisterer(reg))
	require.NoError(t, err)
	require.NoError(t, other.Close())
}

func TestTableLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tbl, err := NewWithHasher[int, int](4, 0.5, identityHasher,
		WithName("logged"),
		WithLogger(zap.New(core)),
		WithLockTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	require.NoError(t, tbl.Set(0, 0))
	require.NoError(t, tbl.Set(1, 1))
	st := tbl.state.Load()
	require.True(t, st.locks[3].tryLock())
	require.NoError(t, tbl.Set(2, 2))
	st.locks[3].unlock()
	require.NoError(t, tbl.Set(5, 5))
	require.NoError(t, tbl.Close())

	require.Equal(t, 1, logs.FilterMessage("whole-table lock timed out").Len())
	require.Equal(t, 1, logs.FilterMessage("resize abandoned, will retry on a later insertion").Len())
	grew := logs.FilterMessage("table grew").All()
	require.Len(t, grew, 1)
	require.Equal(t, int64(8), grew[0].ContextMap()["to"])
	require.Equal(t, "logged", grew[0].ContextMap()["table"])
	require.Equal(t, 1, logs.FilterMessage("table closed").Len())
}
