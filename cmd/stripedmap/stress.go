package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llxisdsh/stripedmap"
)

type stressOptions struct {
	workers     int
	keys        int
	clearEvery  time.Duration
	dumpMetrics bool
}

func stressCommand(global *globalOptions) *cobra.Command {
	opts := &stressOptions{}
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Insert disjoint key ranges from concurrent workers and verify the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(global.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig(global.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			stats, err := runStress(cfg, opts, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), stats.ToString())
			return nil
		},
	}
	addTableFlags(cmd.Flags())
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "number of concurrent writers")
	cmd.Flags().IntVar(&opts.keys, "keys", 10000, "keys inserted by each writer")
	cmd.Flags().DurationVar(&opts.clearEvery, "clear-every", 0, "clear the table at this interval while writing (0 disables)")
	cmd.Flags().BoolVar(&opts.dumpMetrics, "dump-metrics", false, "print the table metrics before exiting")
	return cmd
}

func runStress(
	cfg stripedmap.Config,
	opts *stressOptions,
	logger *zap.Logger,
	out io.Writer,
) (*stripedmap.Stats, error) {
	if opts.workers < 1 || opts.keys < 1 {
		return nil, errors.Newf("workers (%d) and keys (%d) must be positive", opts.workers, opts.keys)
	}
	reg := prometheus.NewRegistry()
	tbl, err := stripedmap.NewFromConfig[int, int](cfg,
		stripedmap.WithLogger(logger),
		stripedmap.WithRegisterer(reg),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tbl.Close() }()

	pool, err := ants.NewPool(opts.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	start := time.Now()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		base := w * opts.keys
		if err := pool.Submit(func() {
			defer wg.Done()
			for k := base; k < base+opts.keys; k++ {
				if err := tbl.Set(k, -k); err != nil {
					record(err)
					return
				}
			}
		}); err != nil {
			wg.Done()
			record(err)
		}
	}

	stopClear := make(chan struct{})
	clearDone := make(chan int)
	go func() {
		clears := 0
		defer func() { clearDone <- clears }()
		if opts.clearEvery <= 0 {
			return
		}
		ticker := time.NewTicker(opts.clearEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stopClear:
				return
			case <-ticker.C:
				if err := tbl.Clear(); err != nil {
					logger.Warn("clear failed", zap.Error(err))
					continue
				}
				clears++
			}
		}
	}()

	wg.Wait()
	close(stopClear)
	clears := <-clearDone
	if firstErr != nil {
		return nil, firstErr
	}
	logger.Info("writers finished",
		zap.Int("workers", opts.workers),
		zap.Int("keys", opts.workers*opts.keys),
		zap.Int("clears", clears),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := verify(tbl, opts.workers*opts.keys, clears == 0); err != nil {
		return nil, err
	}
	stats, err := tbl.Stats()
	if err != nil {
		return nil, err
	}
	if stats.Size != stats.Counter {
		return nil, errors.Newf("size counter %d disagrees with %d stored entries", stats.Counter, stats.Size)
	}
	if opts.dumpMetrics {
		if err := dumpMetrics(reg, out); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// verify checks every key in [0, total). Keys may only be missing when a
// concurrent clear ran.
func verify(tbl *stripedmap.Table[int, int], total int, complete bool) error {
	missing := 0
	for k := 0; k < total; k++ {
		v, err := tbl.Get(k)
		switch {
		case errors.Is(err, stripedmap.ErrNotFound):
			missing++
		case err != nil:
			return err
		case v != -k:
			return errors.Newf("key %d holds %d, want %d", k, v, -k)
		}
	}
	if complete && missing > 0 {
		return errors.Newf("%d of %d keys missing", missing, total)
	}
	return nil
}

func dumpMetrics(reg *prometheus.Registry, out io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
