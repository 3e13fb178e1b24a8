package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/llxisdsh/stripedmap"
)

func TestLoadConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "from-file"
initial-capacity = 64
load-factor = 0.5
lock-timeout = "300ms"
`), 0o600))

	cmd := stressCommand(&globalOptions{})
	require.NoError(t, cmd.Flags().Parse([]string{"--capacity", "128", "--probe-timeout", "3ms"}))

	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Name)
	require.Equal(t, 128, cfg.InitialCapacity)
	require.Equal(t, 0.5, cfg.LoadFactor)
	require.Equal(t, 300*time.Millisecond, cfg.LockTimeout)
	require.Equal(t, 3*time.Millisecond, cfg.ProbeTimeout)

	repl := replCommand(&globalOptions{})
	require.NoError(t, repl.Flags().Parse([]string{"--probe-timeout", "0s"}))
	_, err = loadConfig(path, repl.Flags())
	require.ErrorIs(t, err, stripedmap.ErrInvalidArgument)

	cfg, err = loadConfig(path, replCommand(&globalOptions{}).Flags())
	require.NoError(t, err)
	require.Equal(t, stripedmap.DefaultProbeTimeout, cfg.ProbeTimeout)
}

func TestLoadConfigRejects(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("shards = 4\n"), 0o600))

	cmd := stressCommand(&globalOptions{})
	_, err := loadConfig(unknown, cmd.Flags())
	require.ErrorContains(t, err, "unknown config keys")

	_, err = loadConfig(filepath.Join(dir, "missing.toml"), cmd.Flags())
	require.Error(t, err)

	require.NoError(t, cmd.Flags().Parse([]string{"--load-factor", "1.5"}))
	_, err = loadConfig("", cmd.Flags())
	require.ErrorIs(t, err, stripedmap.ErrInvalidArgument)
}

func TestRunStress(t *testing.T) {
	cfg := stripedmap.DefaultConfig()
	cfg.InitialCapacity = 1
	var out bytes.Buffer
	stats, err := runStress(cfg, &stressOptions{workers: 4, keys: 500, dumpMetrics: true},
		zap.NewNop(), &out)
	require.NoError(t, err)
	require.Equal(t, 2000, stats.Size)
	require.Equal(t, stats.Size, stats.Counter)
	require.Positive(t, stats.TotalGrowths)
	require.Contains(t, out.String(), "stripedmap_resizes_total")
	require.Contains(t, out.String(), `stripedmap_entries{table="default"} 2000`)
}

func TestRunStressWithClear(t *testing.T) {
	cfg := stripedmap.DefaultConfig()
	stats, err := runStress(cfg, &stressOptions{workers: 4, keys: 2000, clearEvery: time.Millisecond},
		zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	require.LessOrEqual(t, stats.Size, 8000)
}

func TestREPL(t *testing.T) {
	tbl, err := stripedmap.New[string, string](8, 0.75)
	require.NoError(t, err)
	defer tbl.Close()

	in := strings.NewReader(strings.Join([]string{
		"SET a hello world",
		"set b 2",
		"GET a",
		"HAS b",
		"LEN",
		"KEYS",
		"DEL b",
		"GET b",
		"frobnicate",
		"POPITEM",
		"POPITEM",
		"EXIT",
		"SET never 1",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runREPL(tbl, in, &out))

	got := strings.Split(strings.TrimSuffix(out.String(), "> "), "> ")
	want := []string{
		"",
		"OK\n",
		"OK\n",
		"hello world\n",
		"true\n",
		"2\n",
		"a b\n",
		"OK\n",
		"error: get b: key not found\n",
		"error: unknown command \"frobnicate\", try HELP: usage\n",
		"a hello world\n",
		"error: popitem: table is empty\n",
	}
	require.Equal(t, want, got)

	ok, err := tbl.Contains("never")
	require.NoError(t, err)
	require.False(t, ok)
}
