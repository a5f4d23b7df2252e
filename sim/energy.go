/*
energy.go - Merit-order energy dispatch

PURPOSE:
  Meets one day's total electricity demand from PV, wind, battery, grid and
  a diesel generator, in that strict order, under flags supplied by the
  community energy policy. The policy parameterizes the dispatch; it never
  executes it.

MERIT ORDER:
  1. self-consume PV, then wind      (use_renewables)
  2. discharge battery to reserve    (use_battery)
  3. import from grid                (grid_import)
  4. run generator                   (use_generator, min-load enforced)
  remaining deficit -> unmet_demand

SURPLUS ROUTING:
  battery charge (respecting charge efficiency) -> grid export -> curtail.
  sell_renewables_to_grid overrides everything and exports 100% of the
  renewable output.

GENERATOR MODEL:
  Fuel follows a two-coefficient linear model
      fuel_L = a * rated_kw * hours + b * energy_kwh
  (no-load plus load-proportional terms). A deficit below the minimum-load
  block forces the generator up to minimum output for one hour; the excess
  is curtailed fuel-burn. A needed generator is never silently skipped.

BALANCE INVARIANT (per dispatch call):
  pv_used + wind_used + grid_imported + generator_used + battery_discharged
    == demand + grid_exported + battery_charged + curtailed + unmet
  where pv_used/wind_used count the full renewable output entering the bus
  and battery_charged counts energy drawn into the battery before charge
  losses (losses live inside the SOC update).

SEE ALSO:
  - water.go: pumping energy arrives in the day's demand
  - processing.go: processing energy arrives with a one-day lag
*/
package sim

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// BATTERY
// =============================================================================

// BatterySpec is the immutable battery configuration. SOC bounds are
// fractions of capacity.
type BatterySpec struct {
	CapacityKWh         float64
	SOCMin              float64 // reserve fraction, discharge floor
	SOCMax              float64
	ChargeEfficiency    float64
	DischargeEfficiency float64
}

// BatteryState carries the state of charge between days. SOC is clamped to
// [SOCMin, SOCMax] x capacity after every dispatch.
type BatteryState struct {
	Spec   BatterySpec
	SOCKWh float64
}

func NewBatteryState(spec BatterySpec) *BatteryState {
	// Start at the reserve floor: an empty battery cannot discharge.
	return &BatteryState{Spec: spec, SOCKWh: spec.SOCMin * spec.CapacityKWh}
}

// dischargeable is the energy deliverable to the bus without breaching the
// reserve, after discharge losses.
func (b *BatteryState) dischargeable() float64 {
	stored := b.SOCKWh - b.Spec.SOCMin*b.Spec.CapacityKWh
	if stored <= 0 {
		return 0
	}
	return stored * b.Spec.DischargeEfficiency
}

// chargeRoom is the bus-side energy the battery can absorb before hitting
// SOCMax, accounting for charge losses.
func (b *BatteryState) chargeRoom() float64 {
	room := b.Spec.SOCMax*b.Spec.CapacityKWh - b.SOCKWh
	if room <= 0 || b.Spec.ChargeEfficiency <= 0 {
		return 0
	}
	return room / b.Spec.ChargeEfficiency
}

func (b *BatteryState) clamp() {
	lo := b.Spec.SOCMin * b.Spec.CapacityKWh
	hi := b.Spec.SOCMax * b.Spec.CapacityKWh
	if b.SOCKWh < lo {
		b.SOCKWh = lo
	}
	if b.SOCKWh > hi {
		b.SOCKWh = hi
	}
}

// =============================================================================
// GENERATOR
// =============================================================================

// GeneratorSpec configures the backup diesel generator.
type GeneratorSpec struct {
	RatedKW         float64
	MinLoadFraction float64 // default 0.30 when unset
	FuelA           float64 // L per rated-kW-hour (no-load term)
	FuelB           float64 // L per kWh produced (load term)
}

// DefaultGeneratorMinLoad applies when a scenario leaves the fraction unset.
const DefaultGeneratorMinLoad = 0.30

func (g GeneratorSpec) minLoad() float64 {
	if g.MinLoadFraction <= 0 {
		return DefaultGeneratorMinLoad
	}
	return g.MinLoadFraction
}

// =============================================================================
// DISPATCH
// =============================================================================

// DispatchFlags parameterize one day's dispatch. They come from the energy
// policy; the engine executes them literally.
type DispatchFlags struct {
	UseRenewables        bool
	UseBattery           bool
	GridImport           bool
	UseGenerator         bool
	GridExport           bool
	SellRenewablesToGrid bool
}

// EnergyPolicy supplies dispatch flags per day. A single community-level
// policy governs dispatch; farm-level preferences are not consulted.
type EnergyPolicy interface {
	Name() string
	Flags(date SimDate) DispatchFlags
}

// DispatchInput is one day's supply and price picture.
type DispatchInput struct {
	DemandKWh float64
	PVKWh     float64 // available PV production (degradation applied)
	WindKWh   float64

	GridPrice   decimal.Decimal // USD/kWh import
	ExportPrice decimal.Decimal // USD/kWh export
	DieselPrice decimal.Decimal // USD/L
}

// DispatchResult is the full accounting of one day's dispatch.
// PVUsedKWh/WindUsedKWh count all renewable output that entered the bus,
// including the portion later charged, exported or curtailed.
type DispatchResult struct {
	PVUsedKWh            float64
	WindUsedKWh          float64
	BatteryChargedKWh    float64 // bus-side, before charge losses
	BatteryDischargedKWh float64 // bus-side, after discharge losses
	GridImportKWh        float64
	GridExportKWh        float64
	GeneratorKWh         float64
	CurtailedKWh         float64
	UnmetKWh             float64

	GeneratorHours float64
	FuelL          float64

	GridCostUSD      decimal.Decimal
	FuelCostUSD      decimal.Decimal
	ExportRevenueUSD decimal.Decimal
	NetCostUSD       decimal.Decimal
}

// EnergyDispatchEngine owns the battery state across days.
type EnergyDispatchEngine struct {
	Battery   *BatteryState
	Generator GeneratorSpec
}

func NewEnergyDispatchEngine(battery BatterySpec, generator GeneratorSpec) *EnergyDispatchEngine {
	return &EnergyDispatchEngine{Battery: NewBatteryState(battery), Generator: generator}
}

// Dispatch meets the day's demand per the merit order and mutates battery
// SOC. It never errors: shortfall is reported as UnmetKWh.
func (e *EnergyDispatchEngine) Dispatch(in DispatchInput, flags DispatchFlags) DispatchResult {
	res := DispatchResult{
		GridCostUSD:      decimal.Zero,
		FuelCostUSD:      decimal.Zero,
		ExportRevenueUSD: decimal.Zero,
	}

	remaining := in.DemandKWh
	surplus := 0.0

	// All renewable production enters the bus.
	res.PVUsedKWh = in.PVKWh
	res.WindUsedKWh = in.WindKWh

	if flags.SellRenewablesToGrid {
		// Override: route 100% of renewable output to export; demand is
		// served by the rest of the merit order.
		res.GridExportKWh = in.PVKWh + in.WindKWh
	} else if flags.UseRenewables {
		// 1. Self-consume PV first, then wind.
		pvToLoad := minf(in.PVKWh, remaining)
		remaining -= pvToLoad
		windToLoad := minf(in.WindKWh, remaining)
		remaining -= windToLoad
		surplus = (in.PVKWh - pvToLoad) + (in.WindKWh - windToLoad)
	} else {
		// Renewables not self-consumed; whole output is surplus.
		surplus = in.PVKWh + in.WindKWh
	}

	// 2. Battery discharge down to the reserve.
	if flags.UseBattery && remaining > 0 && e.Battery != nil {
		discharge := minf(e.Battery.dischargeable(), remaining)
		if discharge > 0 {
			res.BatteryDischargedKWh = discharge
			e.Battery.SOCKWh -= discharge / e.Battery.Spec.DischargeEfficiency
			remaining -= discharge
		}
	}

	// 3. Grid import.
	if flags.GridImport && remaining > 0 {
		res.GridImportKWh = remaining
		remaining = 0
	}

	// 4. Generator, minimum-load enforced.
	if flags.UseGenerator && remaining > 0 && e.Generator.RatedKW > 0 {
		output, hours := e.runGenerator(remaining)
		if output > remaining {
			res.CurtailedKWh += output - remaining
			remaining = 0
		} else {
			remaining -= output
		}
		res.GeneratorKWh = output
		res.GeneratorHours = hours
		res.FuelL = e.Generator.FuelA*e.Generator.RatedKW*hours + e.Generator.FuelB*output
	}

	res.UnmetKWh = remaining

	// Surplus routing: battery charge, then export, then curtailment.
	if !flags.SellRenewablesToGrid && surplus > 0 {
		if flags.UseBattery && e.Battery != nil {
			charge := minf(e.Battery.chargeRoom(), surplus)
			if charge > 0 {
				res.BatteryChargedKWh = charge
				e.Battery.SOCKWh += charge * e.Battery.Spec.ChargeEfficiency
				surplus -= charge
			}
		}
		if flags.GridExport && surplus > 0 {
			res.GridExportKWh += surplus
			surplus = 0
		}
		res.CurtailedKWh += surplus
	}

	if e.Battery != nil {
		e.Battery.clamp()
	}

	// Cost: grid purchases plus fuel, less export revenue.
	res.GridCostUSD = MulFloat(in.GridPrice, res.GridImportKWh)
	res.FuelCostUSD = MulFloat(in.DieselPrice, res.FuelL)
	res.ExportRevenueUSD = MulFloat(in.ExportPrice, res.GridExportKWh)
	res.NetCostUSD = res.GridCostUSD.Add(res.FuelCostUSD).Sub(res.ExportRevenueUSD)

	return res
}

// runGenerator sizes the generator run for the given deficit. A deficit at
// or above one minimum-load-hour runs at rated power for as long as needed
// (capped at 24h). A smaller deficit still runs one block at minimum load;
// the caller curtails the excess.
func (e *EnergyDispatchEngine) runGenerator(deficit float64) (outputKWh, hours float64) {
	g := e.Generator
	minBlock := g.RatedKW * g.minLoad() // one hour at minimum load
	if deficit < minBlock {
		return minBlock, 1
	}
	maxOutput := g.RatedKW * 24
	output := minf(deficit, maxOutput)
	return output, output / g.RatedKW
}

// CheckDispatchBalance verifies the dispatch closure identity within the
// material tolerance. Returns a BalanceError naming the gap on failure.
func CheckDispatchBalance(date SimDate, in DispatchInput, res DispatchResult) error {
	lhs := res.PVUsedKWh + res.WindUsedKWh + res.GridImportKWh + res.GeneratorKWh + res.BatteryDischargedKWh
	rhs := in.DemandKWh + res.GridExportKWh + res.BatteryChargedKWh + res.CurtailedKWh + res.UnmetKWh
	gap := lhs - rhs
	if gap < -MassTolerance || gap > MassTolerance {
		return &BalanceError{Date: date, Domain: "energy", Gap: gap}
	}
	return nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
