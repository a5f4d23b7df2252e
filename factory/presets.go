/*
presets.go - Built-in demo scenarios and a synthetic environment

PURPOSE:
  Ready-to-run scenario definitions for the API's scenario browser and
  the CLI demo mode, plus a synthetic TableEnvironment so the server can
  run without external datasets. Presets go through the same YAML path
  user-authored scenarios do, so they double as schema examples.

AVAILABLE PRESETS:
  groundwater-baseline:  two farms, groundwater-first water, renewables
                         with battery, mixed processing
  municipal-grid:        municipal water, grid-first energy with full
                         renewable export, all-fresh sales
  quota-conservation:    quota-enforced pumping, preservation-heavy
                         processing, hold-for-price marketing
*/
package factory

import (
	"fmt"
	"math"

	"github.com/warp/farmsim/sim"
)

// =============================================================================
// PRESET SCENARIOS
// =============================================================================

// Presets returns the built-in scenarios keyed by name.
func Presets() map[string]string {
	return map[string]string{
		"groundwater-baseline": groundwaterBaselineYAML,
		"municipal-grid":       municipalGridYAML,
		"quota-conservation":   quotaConservationYAML,
	}
}

// LoadPreset builds a validated scenario from a built-in definition.
func LoadPreset(name string) (*sim.Scenario, error) {
	src, ok := Presets()[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset scenario: %s", name)
	}
	return ParseScenario([]byte(src))
}

const scenarioCommonYAML = `
farms:
  - id: farm-a
    name: North Field
    area_ha: 12
    starting_cash: 60000
    crops:
      - crop: tomato
        area_ha: 6
        plant_month: 3
        plant_day: 1
        stages: {initial: 30, development: 40, mid_season: 45, late_season: 25}
        yield_kg_per_ha: 60000
        field_labor_hours_per_ha_day: 0.6
        harvest_labor_hours_per_kg: 0.002
        input_cost_per_ha_day: 2.0
      - crop: cucumber
        area_ha: 4
        plant_month: 4
        plant_day: 15
        stages: {initial: 20, development: 30, mid_season: 35, late_season: 15}
        yield_kg_per_ha: 45000
        field_labor_hours_per_ha_day: 0.5
        harvest_labor_hours_per_kg: 0.002
        input_cost_per_ha_day: 1.8
  - id: farm-b
    name: South Field
    area_ha: 8
    starting_cash: 45000
    crops:
      - crop: tomato
        area_ha: 5
        plant_month: 3
        plant_day: 1
        stages: {initial: 30, development: 40, mid_season: 45, late_season: 25}
        yield_kg_per_ha: 55000
        field_labor_hours_per_ha_day: 0.6
        harvest_labor_hours_per_kg: 0.002
        input_cost_per_ha_day: 2.0
infrastructure:
  well_max_m3_per_day: 400
  treatment_max_m3_per_day: 350
  groundwater_salinity_ppm: 2500
  pump_kwh_per_m3_per_m: 0.0045
  pv_capacity_kw: 250
  wind_capacity_kw: 100
  pv_degradation_rate: 0.005
  wind_degradation_rate: 0.008
  battery:
    capacity_kwh: 500
    soc_min: 0.10
    soc_max: 0.95
    charge_efficiency: 0.93
    discharge_efficiency: 0.93
  generator:
    rated_kw: 80
    min_load_fraction: 0.30
    fuel_a: 0.08
    fuel_b: 0.24
  processing:
    throughput_kg_per_day: {packaged: 2000, canned: 1500, dried: 800}
    energy_kwh_per_kg: {packaged: 0.05, canned: 0.25, dried: 0.60}
    labor_hours_per_kg: {fresh: 0.002, packaged: 0.008, canned: 0.015, dried: 0.012}
    weight_loss_fraction: {packaged: 0.05, canned: 0.15, dried: 0.80}
    shelf_life_days: {fresh: 10, packaged: 45, canned: 720, dried: 365}
    waste_fraction: 0.03
    wage_per_hour: 9.5
  storage_capacity_kg: {fresh: 8000, packaged: 20000, canned: 60000, dried: 15000}
  storage_cost_per_kg_day: 0.002
community:
  domestic_water_m3_per_day: 35
  domestic_energy_kwh_per_day: 420
aquifer:
  exploitable_m3: 2500000
  initial_head_m: 45
  head_rise_per_depletion_m: 30
  annual_quota_m3: 120000
  monthly_quota_m3: 15000
tariffs:
  ag_water_per_m3: 0.85
  ag_water_escalation: 0.03
  domestic_subsidized: true
  domestic_tiers:
    - {max_m3: 500, rate: 0.30}
    - {max_m3: 1000, rate: 0.65}
    - {max_m3: 0, rate: 1.20}
  domestic_water_per_m3: 1.10
  wastewater_surcharge: 0.25
  domestic_escalation: 0.02
  grid_per_kwh: 0.14
  grid_escalation: 0.025
  net_metering_ratio: 0.70
  farmgate_per_kg: {tomato: 0.55, cucumber: 0.48}
  product_multiplier: {fresh: 1.0, packaged: 1.4, canned: 2.2, dried: 4.5}
debts:
  - name: infrastructure-loan
    principal_usd: 400000
    annual_rate: 0.055
    monthly_payment: 4300
    remaining_months: 120
shared_opex_annual_usd: 36500
community_cash_usd: 180000
`

const groundwaterBaselineYAML = `
name: groundwater-baseline
start: 2026-01-01
end: 2027-12-31
` + scenarioCommonYAML + `
cost_allocation: area
policies:
  water: always_groundwater
  energy: renewable_first
  food: {fresh: 0.40, packaged: 0.30, canned: 0.20, dried: 0.10}
  market: sell_at_harvest
  economic: distress_watch
  cost_revenue_ratio_limit: 1.5
`

const municipalGridYAML = `
name: municipal-grid
start: 2026-01-01
end: 2027-12-31
` + scenarioCommonYAML + `
cost_allocation: equal
policies:
  water: always_municipal
  energy: grid_first
  market: sell_at_harvest
  economic: distress_watch
`

const quotaConservationYAML = `
name: quota-conservation
start: 2026-01-01
end: 2027-12-31
` + scenarioCommonYAML + `
cost_allocation: usage
policies:
  water: quota_enforced
  energy: renewable_first
  food: {fresh: 0.20, packaged: 0.20, canned: 0.35, dried: 0.25}
  market: hold_for_price
  hold_threshold_per_kg: 1.0
  hold_max_days: 30
  economic: distress_watch
  cost_revenue_ratio_limit: 1.2
`

// =============================================================================
// SYNTHETIC ENVIRONMENT
// =============================================================================

// DemoEnvironment builds a deterministic synthetic environment covering
// [start, end]: sinusoidal seasonal PV/wind and irrigation profiles with
// a flat diesel price. Good enough for demos and classroom runs; real
// courses load pre-computed datasets instead.
func DemoEnvironment(scenario *sim.Scenario) *sim.TableEnvironment {
	weather := map[string]sim.Weather{}
	pv := map[string]float64{}
	wind := map[string]float64{}
	diesel := map[string]float64{}
	irrigation := map[string]float64{}

	// Per-crop planting dates drive the irrigation table keys.
	type planting struct {
		crop    sim.CropName
		planted sim.SimDate
		days    int
	}
	var plantings []planting
	for _, farm := range scenario.Farms {
		for _, plan := range farm.Crops {
			for year := scenario.Start.Year(); year <= scenario.End.Year(); year++ {
				p := sim.NewDate(year, plan.PlantMonth, plan.PlantDay)
				plantings = append(plantings, planting{plan.Crop, p, plan.Stages.Total()})
			}
		}
	}

	for date := scenario.Start; date.BeforeOrEqual(scenario.End); date = date.AddDays(1) {
		key := date.String()
		season := 2 * math.Pi * float64(date.DayOfYear()) / 365

		weather[key] = sim.Weather{
			TempC:  22 - 10*math.Cos(season),
			RainMM: math.Max(0, 2.5*math.Cos(season)),
			ETOmm:  4 - 2*math.Cos(season),
		}
		// Summer-peaking PV, winter-leaning wind.
		pv[key] = 4.2 - 1.6*math.Cos(season)
		wind[key] = 3.0 + 1.0*math.Cos(season)
		diesel[key] = 1.05

		for _, pl := range plantings {
			age := sim.DaysBetween(pl.planted, date)
			if age < 0 || age >= pl.days {
				continue
			}
			// Demand ramps through the cycle, peaking mid-season.
			progress := float64(age) / float64(pl.days)
			demand := 30 * math.Sin(math.Pi*progress) * (4 - 2*math.Cos(season)) / 4
			if demand > 0 {
				irrigation[sim.IrrigationKey(pl.crop, pl.planted, date)] = demand
			}
		}
	}

	return sim.NewTableEnvironment(weather, irrigation, pv, wind, diesel, 1.1)
}
