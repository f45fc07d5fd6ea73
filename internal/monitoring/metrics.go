// Package monitoring records the cost of every stage of a pipeline run.
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// StageMetrics represents the cost of one pipeline stage.
type StageMetrics struct {
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"duration"`
	RowsIn     int           `json:"rows_in"`
	RowsOut    int           `json:"rows_out"`
	MemoryUsed int64         `json:"memory_used"` // heap growth, may be negative after a GC
	Failed     bool          `json:"failed"`
}

// Collector collects stage metrics. It is safe for concurrent use.
type Collector struct {
	mu          sync.RWMutex
	stages      []StageMetrics
	trackMemory bool
}

// NewCollector creates a collector. With trackMemory every stage samples
// runtime memory statistics before and after it runs.
func NewCollector(trackMemory bool) *Collector {
	return &Collector{trackMemory: trackMemory}
}

// Record runs fn as stage and stores its metrics. fn returns the number of
// rows it produced.
func (c *Collector) Record(stage string, rowsIn int, fn func() (int, error)) (StageMetrics, error) {
	var memBefore runtime.MemStats
	if c.trackMemory {
		runtime.ReadMemStats(&memBefore)
	}

	start := time.Now()
	rowsOut, err := fn()
	m := StageMetrics{
		Stage:    stage,
		Duration: time.Since(start),
		RowsIn:   rowsIn,
		RowsOut:  rowsOut,
		Failed:   err != nil,
	}

	if c.trackMemory {
		var memAfter runtime.MemStats
		runtime.ReadMemStats(&memAfter)
		m.MemoryUsed = int64(memAfter.HeapAlloc) - int64(memBefore.HeapAlloc) //nolint:gosec // heap sizes fit in int64
	}

	c.mu.Lock()
	c.stages = append(c.stages, m)
	c.mu.Unlock()
	return m, err
}

// Stages returns a copy of the recorded metrics in completion order.
func (c *Collector) Stages() []StageMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]StageMetrics, len(c.stages))
	copy(result, c.stages)
	return result
}

// Summary returns aggregate statistics of the recorded stages.
func (c *Collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Summary
	for _, m := range c.stages {
		s.Stages++
		s.TotalDuration += m.Duration
		if m.Failed {
			s.Failed++
		}
		if m.Duration >= s.SlowestDuration {
			s.Slowest, s.SlowestDuration = m.Stage, m.Duration
		}
	}
	return s
}

// Summary provides aggregate statistics for recorded stages. Stages that ran
// concurrently all count towards TotalDuration.
type Summary struct {
	Stages          int           `json:"stages"`
	Failed          int           `json:"failed"`
	TotalDuration   time.Duration `json:"total_duration"`
	Slowest         string        `json:"slowest"`
	SlowestDuration time.Duration `json:"slowest_duration"`
}
