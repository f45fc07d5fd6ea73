package dataframe

import (
	"context"
	"sync"

	"github.com/paveg/rfm/internal/parallel"
)

// DefaultParallelThreshold is the row count from which column-wise work is
// spread over the worker pool.
const DefaultParallelThreshold = 1000

// EngineOptions tunes how the engine executes column-wise work.
type EngineOptions struct {
	ParallelThreshold int // minimum rows to go parallel
	WorkerPoolSize    int // 0 = runtime.NumCPU()
}

var (
	engineOptions = EngineOptions{ParallelThreshold: DefaultParallelThreshold}
	optionsMutex  sync.RWMutex
)

// Configure replaces the engine options. Zero values fall back to defaults.
func Configure(opts EngineOptions) {
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	if opts.WorkerPoolSize < 0 {
		opts.WorkerPoolSize = 0
	}
	optionsMutex.Lock()
	defer optionsMutex.Unlock()
	engineOptions = opts
}

// Options returns the current engine options.
func Options() EngineOptions {
	optionsMutex.RLock()
	defer optionsMutex.RUnlock()
	return engineOptions
}

// forEachColumn runs fn for every column in order, in parallel when the frame
// is large enough.
func forEachColumn[R any](df *DataFrame, fn func(s ISeries) R) []R {
	cols := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		cols = append(cols, df.columns[name])
	}

	opts := Options()
	if df.Len() < opts.ParallelThreshold || len(cols) < 2 {
		results := make([]R, len(cols))
		for i, s := range cols {
			results[i] = fn(s)
		}
		return results
	}

	pool := parallel.NewWorkerPoolContext(context.Background(), opts.WorkerPoolSize)
	defer pool.Close()

	return parallel.ProcessIndexed(pool, cols, func(_ int, s ISeries) R {
		return fn(s)
	})
}
