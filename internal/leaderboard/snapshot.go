package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/results"
	"llmperf/internal/stats"
)

// Status symbols used by the dashboard tables.
const (
	StatusOK   = "✅"
	StatusFail = "⛔️"
)

// Table names accepted by Snapshot.Table.
const (
	TableStatus         = "status"
	TableBenchmarks     = "benchmarks"
	TableMachines       = "machines"
	TableConfigurations = "configurations"
)

var (
	statusColumns    = []string{"Backend", "Hardware", "Subset", "Machine", "Status"}
	benchmarkColumns = []string{"Backend", "Hardware", "Subset", "Machine", "Status", "Model", "Experiment", "Traceback", "Full Data"}
)

// CellStatus tells whether a cell's namespace exists.
type CellStatus struct {
	hardware.Cell
	Available bool `json:"available"`
}

// Snapshot is the dashboard state at a point in time.
type Snapshot struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	Cells          []CellStatus     `json:"cells"`
	Records        []results.Record `json:"records"`
	Machines       []stats.Row      `json:"machines"`
	Configurations []stats.Row      `json:"configurations"`
}

// Build gathers every cell once. A cell whose namespace exists but could not
// be processed still counts as available and contributes no records.
func Build(ctx context.Context, g *results.Gatherer, cells []hardware.Cell, parallelism int, log *logger.Logger) (*Snapshot, error) {
	gathered, err := results.GatherAll(ctx, g, cells, parallelism, log)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{GeneratedAt: time.Now().UTC()}
	for _, res := range gathered {
		snap.Cells = append(snap.Cells, CellStatus{Cell: res.Cell, Available: !res.Missing()})
	}
	snap.Records = results.Records(gathered)
	if snap.Machines, err = stats.ByMachine(snap.Records); err != nil {
		return nil, err
	}
	if snap.Configurations, err = stats.ByConfiguration(snap.Records); err != nil {
		return nil, err
	}
	return snap, nil
}

// StatusTable renders the per cell availability table.
func (s *Snapshot) StatusTable() stats.Table {
	t := stats.Table{Columns: statusColumns, Rows: make([][]string, 0, len(s.Cells))}
	for _, c := range s.Cells {
		t.Rows = append(t.Rows, []string{c.Backend, c.Hardware, c.Subset, c.Machine, symbol(c.Available)})
	}
	return t
}

// BenchmarksTable renders one row per record.
func (s *Snapshot) BenchmarksTable() stats.Table {
	t := stats.Table{Columns: benchmarkColumns, Rows: make([][]string, 0, len(s.Records))}
	for _, r := range s.Records {
		t.Rows = append(t.Rows, []string{
			r.Backend, r.Hardware, r.Subset, r.Machine,
			symbol(!r.Failed()),
			r.Model, r.Experiment, r.Traceback, r.FullData(),
		})
	}
	return t
}

// Table looks a table up by name.
func (s *Snapshot) Table(name string) (stats.Table, error) {
	switch name {
	case TableStatus:
		return s.StatusTable(), nil
	case TableBenchmarks:
		return s.BenchmarksTable(), nil
	case TableMachines:
		return stats.MachineTable(s.Machines), nil
	case TableConfigurations:
		return stats.ConfigurationTable(s.Configurations), nil
	}
	return stats.Table{}, fmt.Errorf("unknown table %q (want status, benchmarks, machines or configurations)", name)
}

func symbol(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusFail
}

// BuildFunc produces a fresh snapshot.
type BuildFunc func(ctx context.Context) (*Snapshot, error)

// Cache keeps the last snapshot for ttl. Concurrent callers share one build.
type Cache struct {
	build BuildFunc
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	snap *Snapshot
	at   time.Time
}

// NewCache wraps build. A ttl of zero rebuilds on every call.
func NewCache(build BuildFunc, ttl time.Duration) *Cache {
	return &Cache{build: build, ttl: ttl, now: time.Now}
}

// Get returns the cached snapshot or builds a new one when it is stale or
// refresh is set. A failed build keeps the previous snapshot.
func (c *Cache) Get(ctx context.Context, refresh bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !refresh && c.snap != nil && c.now().Sub(c.at) < c.ttl {
		return c.snap, nil
	}
	snap, err := c.build(ctx)
	if err != nil {
		return nil, err
	}
	c.snap, c.at = snap, c.now()
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}
