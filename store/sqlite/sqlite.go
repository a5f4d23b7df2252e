/*
Package sqlite provides a SQLite-backed implementation of sim.RecordStore.

PURPOSE:
  Persists the audit trail of simulation runs: run metadata, per-farm
  daily records, and sale events. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on daily_records or sale_events
  - A UNIQUE index on (run_id, farm_id, date) maps constraint failures
    to sim.ErrDuplicateRecord, so a re-run of the same day can never
    silently overwrite history

KEY TABLES:
  runs:          One row per simulation run (scenario, date range, seed)
  daily_records: Immutable per-farm-per-day audit records
  sale_events:   Every sale with its per-farm revenue attribution (JSON)

PRECISION:
  Monetary columns store decimal strings, never floats. Physical flows
  store as REAL.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): multiple readers do not block,
  a single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/farmsim.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - sim/record.go: RecordStore interface and record types
  - sim/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/farmsim/sim"
)

// Store implements sim.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		seed INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	-- Daily records (append-only)
	CREATE TABLE IF NOT EXISTS daily_records (
		run_id TEXT NOT NULL,
		farm_id TEXT NOT NULL,
		date TEXT NOT NULL,

		water_demand_m3 REAL NOT NULL,
		groundwater_m3 REAL NOT NULL,
		municipal_m3 REAL NOT NULL,
		water_energy_kwh REAL NOT NULL,
		water_cost_usd TEXT NOT NULL,
		water_policy TEXT NOT NULL,
		constraint_hit TEXT NOT NULL,

		energy_demand_kwh REAL NOT NULL,
		energy_cost_usd TEXT NOT NULL,

		harvest_kg REAL NOT NULL,
		processed_kg REAL NOT NULL,
		weight_loss_kg REAL NOT NULL,
		waste_kg REAL NOT NULL,
		processing_energy_kwh REAL NOT NULL,
		processing_labor_usd TEXT NOT NULL,

		field_labor_usd TEXT NOT NULL,
		input_cost_usd TEXT NOT NULL,
		storage_cost_usd TEXT NOT NULL,
		shared_opex_usd TEXT NOT NULL,
		total_cost_usd TEXT NOT NULL,
		revenue_usd TEXT NOT NULL,
		net_income_usd TEXT NOT NULL,
		cash_after_usd TEXT NOT NULL,

		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- CRITICAL: one record per farm-day per run, enforced by the database
	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_run_farm_date
		ON daily_records(run_id, farm_id, date);
	CREATE INDEX IF NOT EXISTS idx_records_run_date
		ON daily_records(run_id, date);

	-- Sale events (append-only)
	CREATE TABLE IF NOT EXISTS sale_events (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		date TEXT NOT NULL,
		tranche_id TEXT NOT NULL,
		product TEXT NOT NULL,
		crop TEXT NOT NULL,
		kg REAL NOT NULL,
		unit_price TEXT NOT NULL,
		revenue_usd TEXT NOT NULL,
		farm_revenue_json TEXT NOT NULL,
		tag TEXT NOT NULL,

		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sales_run_date
		ON sale_events(run_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (sim.RecordStore interface)
// =============================================================================

// CreateRun registers a run. A duplicate run ID is ErrDuplicateRecord.
func (s *Store) CreateRun(ctx context.Context, meta sim.RunMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, start_date, end_date, seed) VALUES (?, ?, ?, ?, ?)`,
		string(meta.ID), meta.Scenario, meta.Start.String(), meta.End.String(), meta.Seed,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("run %s: %w", meta.ID, sim.ErrDuplicateRecord)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// AppendRecord inserts one farm-day record. The unique index turns a
// replayed day into ErrDuplicateRecord.
func (s *Store) AppendRecord(ctx context.Context, run sim.RunID, rec sim.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO daily_records
		(run_id, farm_id, date,
		 water_demand_m3, groundwater_m3, municipal_m3, water_energy_kwh,
		 water_cost_usd, water_policy, constraint_hit,
		 energy_demand_kwh, energy_cost_usd,
		 harvest_kg, processed_kg, weight_loss_kg, waste_kg,
		 processing_energy_kwh, processing_labor_usd,
		 field_labor_usd, input_cost_usd, storage_cost_usd,
		 shared_opex_usd, total_cost_usd, revenue_usd, net_income_usd, cash_after_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		string(run), string(rec.Farm), rec.Date.String(),
		rec.WaterDemandM3, rec.GroundwaterM3, rec.MunicipalM3, rec.WaterEnergyKWh,
		rec.WaterCostUSD.String(), rec.WaterPolicy, rec.ConstraintHit,
		rec.EnergyDemandKWh, rec.EnergyCostUSD.String(),
		rec.HarvestKg, rec.ProcessedKg, rec.WeightLossKg, rec.WasteKg,
		rec.ProcessingEnergyKWh, rec.ProcessingLaborUSD.String(),
		rec.FieldLaborUSD.String(), rec.InputCostUSD.String(), rec.StorageCostUSD.String(),
		rec.SharedOpexUSD.String(), rec.TotalCostUSD.String(),
		rec.RevenueUSD.String(), rec.NetIncomeUSD.String(), rec.CashAfterUSD.String(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%s: %w", sim.RecordKey(run, rec.Farm, rec.Date), sim.ErrDuplicateRecord)
		}
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// AppendSales inserts a day's sale events atomically.
func (s *Store) AppendSales(ctx context.Context, run sim.RunID, events []sim.SaleEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sale_events
		(id, run_id, date, tranche_id, product, crop, kg, unit_price, revenue_usd, farm_revenue_json, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, ev := range events {
		attributed := make(map[string]string, len(ev.FarmRevenue))
		for farm, usd := range ev.FarmRevenue {
			attributed[string(farm)] = usd.String()
		}
		revenueJSON, _ := json.Marshal(attributed)

		if _, err := tx.ExecContext(ctx, query,
			ev.ID, string(run), ev.Date.String(), ev.TrancheID,
			string(ev.Product), string(ev.Crop), ev.Kg,
			ev.UnitPrice.String(), ev.RevenueUSD.String(),
			string(revenueJSON), ev.Tag,
		); err != nil {
			return fmt.Errorf("failed to append sale event: %w", err)
		}
	}
	return tx.Commit()
}

// Runs lists every run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]sim.RunMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, scenario, start_date, end_date, seed FROM runs ORDER BY created_at ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []sim.RunMeta
	for rows.Next() {
		var meta sim.RunMeta
		var id, start, end string
		if err := rows.Scan(&id, &meta.Scenario, &start, &end, &meta.Seed); err != nil {
			return nil, err
		}
		meta.ID = sim.RunID(id)
		meta.Start, _ = sim.ParseDate(start)
		meta.End, _ = sim.ParseDate(end)
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// Records returns a run's daily records in date order, optionally filtered
// to one farm (empty farm matches all).
func (s *Store) Records(ctx context.Context, run sim.RunID, farm sim.FarmID) ([]sim.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireRun(ctx, run); err != nil {
		return nil, err
	}

	query := `
		SELECT farm_id, date,
		       water_demand_m3, groundwater_m3, municipal_m3, water_energy_kwh,
		       water_cost_usd, water_policy, constraint_hit,
		       energy_demand_kwh, energy_cost_usd,
		       harvest_kg, processed_kg, weight_loss_kg, waste_kg,
		       processing_energy_kwh, processing_labor_usd,
		       field_labor_usd, input_cost_usd, storage_cost_usd,
		       shared_opex_usd, total_cost_usd, revenue_usd, net_income_usd, cash_after_usd
		FROM daily_records
		WHERE run_id = ?` + whereFarm(farm) + `
		ORDER BY date ASC, farm_id ASC
	`

	args := []any{string(run)}
	if farm != "" {
		args = append(args, string(farm))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []sim.DailyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Sales returns a run's sale events in date order.
func (s *Store) Sales(ctx context.Context, run sim.RunID) ([]sim.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireRun(ctx, run); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, tranche_id, product, crop, kg, unit_price, revenue_usd, farm_revenue_json, tag
		FROM sale_events
		WHERE run_id = ?
		ORDER BY date ASC, id ASC
	`, string(run))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var events []sim.SaleEvent
	for rows.Next() {
		var ev sim.SaleEvent
		var date, product, crop, unitPrice, revenue, revenueJSON string
		if err := rows.Scan(&ev.ID, &date, &ev.TrancheID, &product, &crop,
			&ev.Kg, &unitPrice, &revenue, &revenueJSON, &ev.Tag); err != nil {
			return nil, err
		}
		ev.Date, _ = sim.ParseDate(date)
		ev.Product = sim.ProductType(product)
		ev.Crop = sim.CropName(crop)
		ev.UnitPrice = mustDecimal(unitPrice)
		ev.RevenueUSD = mustDecimal(revenue)

		attributed := map[string]string{}
		json.Unmarshal([]byte(revenueJSON), &attributed)
		ev.FarmRevenue = make(map[sim.FarmID]decimal.Decimal, len(attributed))
		for farm, usd := range attributed {
			ev.FarmRevenue[sim.FarmID(farm)] = mustDecimal(usd)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) requireRun(ctx context.Context, run sim.RunID) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM runs WHERE id = ?", string(run)).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("run %s: %w", run, sim.ErrRunNotFound)
	}
	return nil
}

func whereFarm(farm sim.FarmID) string {
	if farm == "" {
		return ""
	}
	return " AND farm_id = ?"
}

func scanRecord(rows *sql.Rows) (sim.DailyRecord, error) {
	var rec sim.DailyRecord
	var farm, date, waterCost, energyCost, laborCost string
	var fieldLabor, inputCost, storageCost string
	var sharedOpex, totalCost, revenue, netIncome, cashAfter string

	err := rows.Scan(
		&farm, &date,
		&rec.WaterDemandM3, &rec.GroundwaterM3, &rec.MunicipalM3, &rec.WaterEnergyKWh,
		&waterCost, &rec.WaterPolicy, &rec.ConstraintHit,
		&rec.EnergyDemandKWh, &energyCost,
		&rec.HarvestKg, &rec.ProcessedKg, &rec.WeightLossKg, &rec.WasteKg,
		&rec.ProcessingEnergyKWh, &laborCost,
		&fieldLabor, &inputCost, &storageCost,
		&sharedOpex, &totalCost, &revenue, &netIncome, &cashAfter,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Farm = sim.FarmID(farm)
	rec.Date, _ = sim.ParseDate(date)
	rec.WaterCostUSD = mustDecimal(waterCost)
	rec.EnergyCostUSD = mustDecimal(energyCost)
	rec.ProcessingLaborUSD = mustDecimal(laborCost)
	rec.FieldLaborUSD = mustDecimal(fieldLabor)
	rec.InputCostUSD = mustDecimal(inputCost)
	rec.StorageCostUSD = mustDecimal(storageCost)
	rec.SharedOpexUSD = mustDecimal(sharedOpex)
	rec.TotalCostUSD = mustDecimal(totalCost)
	rec.RevenueUSD = mustDecimal(revenue)
	rec.NetIncomeUSD = mustDecimal(netIncome)
	rec.CashAfterUSD = mustDecimal(cashAfter)
	return rec, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
