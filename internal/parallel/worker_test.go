package parallel_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/paveg/rfm/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()
	assert.Equal(t, 4, pool.Workers())

	auto := parallel.NewWorkerPool(-1)
	defer auto.Close()
	assert.Positive(t, auto.Workers())
}

func TestProcessIndexedPreservesOrder(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	defer pool.Close()

	columns := []string{"InvoiceNo", "StockCode", "Description", "Quantity", "Country"}
	var calls atomic.Int32

	lengths := parallel.ProcessIndexed(pool, columns, func(i int, name string) int {
		calls.Add(1)
		return len(name)*10 + i
	})

	require.Len(t, lengths, len(columns))
	assert.Equal(t, []int{90, 91, 112, 83, 74}, lengths)
	assert.Equal(t, int32(len(columns)), calls.Load())
	assert.NoError(t, pool.Err())
}

func TestProcessIndexedEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	results := parallel.ProcessIndexed(pool, []int{}, func(_ int, x int) int { return x })
	assert.Nil(t, results)
}

func TestProcessIndexedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := parallel.NewWorkerPoolContext(ctx, 2)
	defer pool.Close()

	results := parallel.ProcessIndexed(pool, []int{1, 2, 3}, func(_ int, x int) int { return x })
	assert.Len(t, results, 3)
	assert.ErrorIs(t, pool.Err(), context.Canceled)
}
