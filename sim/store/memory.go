/*
memory.go - In-memory record store

PURPOSE:
  The default RecordStore: mutex-guarded maps, no persistence. Used by
  tests, single-run CLI invocations and Monte Carlo batches that only
  need the summaries.

APPEND-ONLY:
  Appending the same (run, farm, date) twice fails with
  sim.ErrDuplicateRecord; records are never updated in place. Readers
  get copies, so a caller can never mutate stored history.
*/
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/farmsim/sim"
)

// Memory is a thread-safe in-memory sim.RecordStore.
type Memory struct {
	mu      sync.RWMutex
	runs    map[sim.RunID]sim.RunMeta
	order   []sim.RunID
	records map[sim.RunID][]sim.DailyRecord
	seen    map[string]bool // RecordKey idempotency index
	sales   map[sim.RunID][]sim.SaleEvent
}

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[sim.RunID]sim.RunMeta),
		records: make(map[sim.RunID][]sim.DailyRecord),
		seen:    make(map[string]bool),
		sales:   make(map[sim.RunID][]sim.SaleEvent),
	}
}

func (m *Memory) CreateRun(ctx context.Context, meta sim.RunMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[meta.ID]; exists {
		return fmt.Errorf("run %s: %w", meta.ID, sim.ErrDuplicateRecord)
	}
	m.runs[meta.ID] = meta
	m.order = append(m.order, meta.ID)
	return nil
}

func (m *Memory) AppendRecord(ctx context.Context, run sim.RunID, rec sim.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run]; !exists {
		return fmt.Errorf("run %s: %w", run, sim.ErrRunNotFound)
	}
	key := sim.RecordKey(run, rec.Farm, rec.Date)
	if m.seen[key] {
		return fmt.Errorf("%s: %w", key, sim.ErrDuplicateRecord)
	}
	m.seen[key] = true
	m.records[run] = append(m.records[run], rec)
	return nil
}

func (m *Memory) AppendSales(ctx context.Context, run sim.RunID, events []sim.SaleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run]; !exists {
		return fmt.Errorf("run %s: %w", run, sim.ErrRunNotFound)
	}
	m.sales[run] = append(m.sales[run], events...)
	return nil
}

func (m *Memory) Runs(ctx context.Context) ([]sim.RunMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sim.RunMeta, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.runs[id])
	}
	return out, nil
}

func (m *Memory) Records(ctx context.Context, run sim.RunID, farm sim.FarmID) ([]sim.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, exists := m.runs[run]; !exists {
		return nil, fmt.Errorf("run %s: %w", run, sim.ErrRunNotFound)
	}
	var out []sim.DailyRecord
	for _, rec := range m.records[run] {
		if farm == "" || rec.Farm == farm {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) Sales(ctx context.Context, run sim.RunID) ([]sim.SaleEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, exists := m.runs[run]; !exists {
		return nil, fmt.Errorf("run %s: %w", run, sim.ErrRunNotFound)
	}
	return append([]sim.SaleEvent(nil), m.sales[run]...), nil
}
