/*
record.go - Daily audit records, metrics snapshots, and the record store

PURPOSE:
  DailyRecord is the immutable per-farm-per-day audit trail every other
  surface consumes. A record is validated (no NaN, exact net income, closed
  balances) before it is appended; after that it never changes.

GUARDS:
  - CheckNaN names the exact offending field and date; a NaN is a modeling
    bug and aborts the run.
  - Net income must equal revenue minus cost exactly (decimal arithmetic
    makes this a hard equality, not a tolerance check).
  - Water mass balance (groundwater + municipal == demand) closes within
    MassTolerance.

SEE ALSO:
  - store/memory.go (sim/store): in-memory RecordStore
  - ../store/sqlite: persistent RecordStore
*/
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAILY RECORD
// =============================================================================

// DailyRecord is the audit trail of one farm-day. Appended once, immutable
// after creation.
type DailyRecord struct {
	Farm FarmID
	Date SimDate

	// Water
	WaterDemandM3  float64
	GroundwaterM3  float64
	MunicipalM3    float64
	WaterEnergyKWh float64
	WaterCostUSD   decimal.Decimal
	WaterPolicy    string
	ConstraintHit  string

	// Energy (farm-attributed share of the community dispatch)
	EnergyDemandKWh float64
	EnergyCostUSD   decimal.Decimal

	// Crop / processing
	HarvestKg           float64
	ProcessedKg         float64
	WeightLossKg        float64
	WasteKg             float64
	ProcessingEnergyKWh float64
	ProcessingLaborUSD  decimal.Decimal

	// Economics
	FieldLaborUSD  decimal.Decimal // field + harvest labor, valued at the community wage
	InputCostUSD   decimal.Decimal // seed/fertilizer/inputs accrued daily per active cycle
	StorageCostUSD decimal.Decimal // holding cost on end-of-day inventory, by tranche shares
	SharedOpexUSD  decimal.Decimal
	TotalCostUSD   decimal.Decimal
	RevenueUSD     decimal.Decimal
	NetIncomeUSD   decimal.Decimal
	CashAfterUSD   decimal.Decimal
}

// floatFields enumerates every float64 field for the NaN guard. Kept next
// to the struct so additions stay in sync.
func (r *DailyRecord) floatFields() map[string]float64 {
	return map[string]float64{
		"water_demand_m3":       r.WaterDemandM3,
		"groundwater_m3":        r.GroundwaterM3,
		"municipal_m3":          r.MunicipalM3,
		"water_energy_kwh":      r.WaterEnergyKWh,
		"energy_demand_kwh":     r.EnergyDemandKWh,
		"harvest_kg":            r.HarvestKg,
		"processed_kg":          r.ProcessedKg,
		"weight_loss_kg":        r.WeightLossKg,
		"waste_kg":              r.WasteKg,
		"processing_energy_kwh": r.ProcessingEnergyKWh,
	}
}

// CheckNaN raises an ArithmeticHazard naming the first NaN/Inf field.
func (r *DailyRecord) CheckNaN() error {
	for field, v := range r.floatFields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NaNError{Farm: r.Farm, Date: r.Date, Field: field}
		}
	}
	return nil
}

// Validate runs every development-time assertion on the record: NaN guard,
// exact net income identity, and water mass balance.
func (r *DailyRecord) Validate() error {
	if err := r.CheckNaN(); err != nil {
		return err
	}
	if !r.RevenueUSD.Sub(r.TotalCostUSD).Equal(r.NetIncomeUSD) {
		return &BalanceError{Farm: r.Farm, Date: r.Date, Domain: "cash",
			Gap: r.RevenueUSD.Sub(r.TotalCostUSD).Sub(r.NetIncomeUSD).InexactFloat64()}
	}
	gap := r.GroundwaterM3 + r.MunicipalM3 - r.WaterDemandM3
	if gap < -MassTolerance || gap > MassTolerance {
		return &BalanceError{Farm: r.Farm, Date: r.Date, Domain: "water", Gap: gap}
	}
	return nil
}

// =============================================================================
// METRICS SNAPSHOTS
// =============================================================================

// MonthlySnapshot aggregates one farm's completed month. The economic
// policy is always evaluated on a completed month, never a partial one.
type MonthlySnapshot struct {
	Farm     FarmID
	MonthKey string // YYYY-MM
	Days     int

	WaterDemandM3 float64
	GroundwaterM3 float64
	MunicipalM3   float64
	HarvestKg     float64

	RevenueUSD   decimal.Decimal
	TotalCostUSD decimal.Decimal
	NetIncomeUSD decimal.Decimal
}

// AggregateMonth folds a month of daily records into a snapshot.
func AggregateMonth(farm FarmID, monthKey string, records []DailyRecord) MonthlySnapshot {
	m := MonthlySnapshot{
		Farm: farm, MonthKey: monthKey,
		RevenueUSD: decimal.Zero, TotalCostUSD: decimal.Zero, NetIncomeUSD: decimal.Zero,
	}
	for i := range records {
		r := &records[i]
		if r.Farm != farm || r.Date.MonthKey() != monthKey {
			continue
		}
		m.Days++
		m.WaterDemandM3 += r.WaterDemandM3
		m.GroundwaterM3 += r.GroundwaterM3
		m.MunicipalM3 += r.MunicipalM3
		m.HarvestKg += r.HarvestKg
		m.RevenueUSD = m.RevenueUSD.Add(r.RevenueUSD)
		m.TotalCostUSD = m.TotalCostUSD.Add(r.TotalCostUSD)
		m.NetIncomeUSD = m.NetIncomeUSD.Add(r.NetIncomeUSD)
	}
	return m
}

// YearlySnapshot is the community's end-of-year resilience and financial
// picture.
type YearlySnapshot struct {
	Year int

	// Water
	GroundwaterM3        float64
	MunicipalM3          float64
	WaterSelfSufficiency float64 // groundwater share of total supply
	AquiferDepletion     float64

	// Energy
	RenewableKWh          float64
	GridImportKWh         float64
	GeneratorKWh          float64
	UnmetDemandKWh        float64
	EnergySelfSufficiency float64 // non-grid share of energy supplied

	// Crop / food
	HarvestKg float64
	WasteKg   float64

	// Financial
	RevenueUSD       decimal.Decimal
	TotalCostUSD     decimal.Decimal
	NetIncomeUSD     decimal.Decimal
	DebtServiceUSD   decimal.Decimal
	CommunityCashUSD decimal.Decimal
	TotalDebtUSD     decimal.Decimal
}

// =============================================================================
// RUN METADATA AND RECORD STORE
// =============================================================================

// RunMeta identifies one simulation run in the record store.
type RunMeta struct {
	ID       RunID
	Scenario string
	Start    SimDate
	End      SimDate
	Seed     int64
}

// RecordStore persists the audit trail of runs. Append-only: daily records
// and sale events are never updated or deleted, and appending the same
// (run, farm, date) twice fails with ErrDuplicateRecord.
type RecordStore interface {
	CreateRun(ctx context.Context, meta RunMeta) error
	AppendRecord(ctx context.Context, run RunID, rec DailyRecord) error
	AppendSales(ctx context.Context, run RunID, events []SaleEvent) error

	Runs(ctx context.Context) ([]RunMeta, error)
	Records(ctx context.Context, run RunID, farm FarmID) ([]DailyRecord, error)
	Sales(ctx context.Context, run RunID) ([]SaleEvent, error)
}

// RecordKey builds the idempotency key for one farm-day record.
func RecordKey(run RunID, farm FarmID, date SimDate) string {
	return fmt.Sprintf("%s|%s|%s", run, farm, date)
}
