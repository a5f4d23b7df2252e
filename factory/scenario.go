/*
Package factory provides YAML to Go scenario conversion.

PURPOSE:
  Converts YAML scenario definitions into sim.Scenario objects. This
  enables scenario configuration without code changes - an instructor
  can define a community in YAML, and the factory assembles the proper
  Go structs and policy instances.

WHY YAML?
  - Non-developers can author scenarios
  - Easy integration with the API's scenario loader
  - Version control for classroom scenario sets

YAML SCHEMA:
  name: renewable-first-baseline
  start: 2026-01-01
  end: 2027-12-31
  farms:
    - id: farm-a
      name: North Field
      area_ha: 12
      starting_cash: 50000
      crops:
        - crop: tomato
          area_ha: 6
          plant_month: 3
          plant_day: 1
          stages: {initial: 30, development: 40, mid_season: 45, late_season: 25}
          yield_kg_per_ha: 60000
  infrastructure:
    well_max_m3_per_day: 400
    ...
  policies:
    water: always_groundwater
    energy: renewable_first
    food: {fresh: 0.4, packaged: 0.3, canned: 0.2, dried: 0.1}
    market: sell_at_harvest
    economic: distress_watch

KEY FEATURES:
  - Validates structure via sim.Scenario.Validate()
  - Sets sensible defaults (net metering, generator min load, policies)
  - Resolves policy names to concrete policy instances

USAGE:
  scenario, err := factory.ParseScenario(yamlBytes)

SEE ALSO:
  - sim/scenario.go: Scenario type and validation
  - sim/policies.go: pre-built policy bundles
  - api/scenarios.go: HTTP scenario loading
*/
package factory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/farmsim/sim"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// ScenarioYAML is the YAML representation of a scenario.
type ScenarioYAML struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	Farms []FarmYAML `yaml:"farms"`

	Infrastructure InfrastructureYAML `yaml:"infrastructure"`
	Community      CommunityYAML      `yaml:"community"`
	Aquifer        AquiferYAML        `yaml:"aquifer"`
	Tariffs        TariffsYAML        `yaml:"tariffs"`

	Debts               []DebtYAML `yaml:"debts,omitempty"`
	SharedOpexAnnualUSD float64    `yaml:"shared_opex_annual_usd"`
	CommunityCashUSD    float64    `yaml:"community_cash_usd"`
	CostAllocation      string     `yaml:"cost_allocation,omitempty"` // equal, area, usage
	NegativeCash        string     `yaml:"negative_cash,omitempty"`   // unlimited, penalty_interest, hard_ceiling

	Policies PoliciesYAML `yaml:"policies"`

	DisableBalanceChecks bool `yaml:"disable_balance_checks,omitempty"`
}

// FarmYAML represents one member farm.
type FarmYAML struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	AreaHa       float64    `yaml:"area_ha"`
	StartingCash float64    `yaml:"starting_cash"`
	Crops        []CropYAML `yaml:"crops"`
}

// CropYAML represents one recurring planting plan.
type CropYAML struct {
	Crop         string     `yaml:"crop"`
	AreaHa       float64    `yaml:"area_ha"`
	PlantMonth   int        `yaml:"plant_month"`
	PlantDay     int        `yaml:"plant_day"`
	Stages       StagesYAML `yaml:"stages"`
	YieldKgPerHa float64    `yaml:"yield_kg_per_ha"`

	FieldLaborHoursPerHaDay float64 `yaml:"field_labor_hours_per_ha_day,omitempty"`
	HarvestLaborHoursPerKg  float64 `yaml:"harvest_labor_hours_per_kg,omitempty"`
	InputCostPerHaDay       float64 `yaml:"input_cost_per_ha_day,omitempty"`
}

// StagesYAML holds growth stage lengths in days.
type StagesYAML struct {
	Initial     int `yaml:"initial"`
	Development int `yaml:"development"`
	MidSeason   int `yaml:"mid_season"`
	LateSeason  int `yaml:"late_season"`
}

// InfrastructureYAML represents the community's shared equipment.
type InfrastructureYAML struct {
	WellMaxM3PerDay      float64 `yaml:"well_max_m3_per_day"`
	TreatmentMaxM3PerDay float64 `yaml:"treatment_max_m3_per_day"`
	GroundwaterSalinity  float64 `yaml:"groundwater_salinity_ppm"`
	PumpKWhPerM3PerM     float64 `yaml:"pump_kwh_per_m3_per_m"`

	PVCapacityKW        float64 `yaml:"pv_capacity_kw"`
	WindCapacityKW      float64 `yaml:"wind_capacity_kw"`
	PVDegradationRate   float64 `yaml:"pv_degradation_rate,omitempty"`
	WindDegradationRate float64 `yaml:"wind_degradation_rate,omitempty"`

	Battery   BatteryYAML   `yaml:"battery,omitempty"`
	Generator GeneratorYAML `yaml:"generator,omitempty"`

	Processing          ProcessingYAML     `yaml:"processing"`
	StorageCapacityKg   map[string]float64 `yaml:"storage_capacity_kg,omitempty"`
	StorageCostPerKgDay float64            `yaml:"storage_cost_per_kg_day,omitempty"`
}

// BatteryYAML represents the battery configuration.
type BatteryYAML struct {
	CapacityKWh         float64 `yaml:"capacity_kwh"`
	SOCMin              float64 `yaml:"soc_min"`
	SOCMax              float64 `yaml:"soc_max"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency"`
}

// GeneratorYAML represents the backup generator.
type GeneratorYAML struct {
	RatedKW         float64 `yaml:"rated_kw"`
	MinLoadFraction float64 `yaml:"min_load_fraction,omitempty"`
	FuelA           float64 `yaml:"fuel_a"`
	FuelB           float64 `yaml:"fuel_b"`
}

// ProcessingYAML represents the food processing equipment.
type ProcessingYAML struct {
	ThroughputKgPerDay map[string]float64 `yaml:"throughput_kg_per_day,omitempty"`
	EnergyKWhPerKg     map[string]float64 `yaml:"energy_kwh_per_kg,omitempty"`
	LaborHoursPerKg    map[string]float64 `yaml:"labor_hours_per_kg,omitempty"`
	WeightLossFraction map[string]float64 `yaml:"weight_loss_fraction,omitempty"`
	ShelfLifeDays      map[string]int     `yaml:"shelf_life_days,omitempty"`
	WasteFraction      float64            `yaml:"waste_fraction,omitempty"`
	WagePerHour        float64            `yaml:"wage_per_hour"`
}

// CommunityYAML represents household loads.
type CommunityYAML struct {
	DomesticWaterM3PerDay   float64 `yaml:"domestic_water_m3_per_day"`
	DomesticEnergyKWhPerDay float64 `yaml:"domestic_energy_kwh_per_day"`
}

// AquiferYAML represents the shared groundwater resource.
type AquiferYAML struct {
	ExploitableM3         float64 `yaml:"exploitable_m3"`
	InitialHeadM          float64 `yaml:"initial_head_m"`
	HeadRisePerDepletionM float64 `yaml:"head_rise_per_depletion_m,omitempty"`
	AnnualQuotaM3         float64 `yaml:"annual_quota_m3,omitempty"`
	MonthlyQuotaM3        float64 `yaml:"monthly_quota_m3,omitempty"`
}

// TariffsYAML represents the price book.
type TariffsYAML struct {
	AgWaterPerM3      float64 `yaml:"ag_water_per_m3"`
	AgWaterEscalation float64 `yaml:"ag_water_escalation,omitempty"`

	DomesticSubsidized  bool       `yaml:"domestic_subsidized,omitempty"`
	DomesticTiers       []TierYAML `yaml:"domestic_tiers,omitempty"`
	DomesticWaterPerM3  float64    `yaml:"domestic_water_per_m3"`
	WastewaterSurcharge float64    `yaml:"wastewater_surcharge,omitempty"`
	DomesticEscalation  float64    `yaml:"domestic_escalation,omitempty"`

	GridPerKWh       float64 `yaml:"grid_per_kwh"`
	GridEscalation   float64 `yaml:"grid_escalation,omitempty"`
	NetMeteringRatio float64 `yaml:"net_metering_ratio,omitempty"`

	FarmgatePerKg     map[string]float64 `yaml:"farmgate_per_kg"`
	ProductMultiplier map[string]float64 `yaml:"product_multiplier,omitempty"`
}

// TierYAML is one domestic water tariff bracket.
type TierYAML struct {
	MaxM3 float64 `yaml:"max_m3"`
	Rate  float64 `yaml:"rate"`
}

// DebtYAML is one community debt schedule.
type DebtYAML struct {
	Name            string  `yaml:"name"`
	PrincipalUSD    float64 `yaml:"principal_usd"`
	AnnualRate      float64 `yaml:"annual_rate"`
	MonthlyPayment  float64 `yaml:"monthly_payment"`
	RemainingMonths int     `yaml:"remaining_months"`
}

// PoliciesYAML selects a policy per domain by name. Food takes explicit
// pathway fractions.
type PoliciesYAML struct {
	Water  string `yaml:"water"`  // always_groundwater, always_municipal, cheapest_source, conserve_groundwater, quota_enforced
	Energy string `yaml:"energy"` // renewable_first, grid_first, off_grid
	Market string `yaml:"market"` // sell_at_harvest, hold_for_price

	Food map[string]float64 `yaml:"food,omitempty"` // pathway fractions; empty = all fresh

	ConserveMaxDepletion float64 `yaml:"conserve_max_depletion,omitempty"`
	HoldThresholdPerKg   float64 `yaml:"hold_threshold_per_kg,omitempty"`
	HoldMaxDays          int     `yaml:"hold_max_days,omitempty"`

	Economic              string  `yaml:"economic,omitempty"` // distress_watch
	CostRevenueRatioLimit float64 `yaml:"cost_revenue_ratio_limit,omitempty"`
}

// =============================================================================
// SCENARIO FACTORY
// =============================================================================

// ParseScenario parses YAML bytes into a validated sim.Scenario.
func ParseScenario(data []byte) (*sim.Scenario, error) {
	var sy ScenarioYAML
	if err := yaml.Unmarshal(data, &sy); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	return FromYAML(sy)
}

// FromYAML converts ScenarioYAML to a validated sim.Scenario.
func FromYAML(sy ScenarioYAML) (*sim.Scenario, error) {
	start, err := sim.ParseDate(sy.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", sy.Start, err)
	}
	end, err := sim.ParseDate(sy.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", sy.End, err)
	}

	farms := make([]sim.Farm, 0, len(sy.Farms))
	for _, fy := range sy.Farms {
		farms = append(farms, parseFarm(fy))
	}

	policies, err := parsePolicies(sy.Policies)
	if err != nil {
		return nil, err
	}

	debts := make([]sim.DebtState, 0, len(sy.Debts))
	for _, dy := range sy.Debts {
		debts = append(debts, sim.DebtState{
			Name:            dy.Name,
			PrincipalUSD:    sim.USD(dy.PrincipalUSD),
			AnnualRate:      dy.AnnualRate,
			MonthlyPayment:  sim.USD(dy.MonthlyPayment),
			RemainingMonths: dy.RemainingMonths,
		})
	}

	scenario := &sim.Scenario{
		Name:  sy.Name,
		Start: start,
		End:   end,
		Farms: farms,
		Infra: parseInfrastructure(sy.Infrastructure),
		Community: sim.Community{
			DomesticWaterM3PerDay:   sy.Community.DomesticWaterM3PerDay,
			DomesticEnergyKWhPerDay: sy.Community.DomesticEnergyKWhPerDay,
		},
		Aquifer: sim.AquiferSpec{
			ExploitableM3:         sy.Aquifer.ExploitableM3,
			InitialHeadM:          sy.Aquifer.InitialHeadM,
			HeadRisePerDepletionM: sy.Aquifer.HeadRisePerDepletionM,
			AnnualQuotaM3:         sy.Aquifer.AnnualQuotaM3,
			MonthlyQuotaM3:        sy.Aquifer.MonthlyQuotaM3,
		},
		Tariffs:             parseTariffs(sy.Tariffs),
		Debts:               debts,
		SharedOpexAnnualUSD: sim.USD(sy.SharedOpexAnnualUSD),
		CommunityCashUSD:    sim.USD(sy.CommunityCashUSD),
		CostAllocation:      parseCostAllocation(sy.CostAllocation),
		NegativeCash:        parseNegativeCash(sy.NegativeCash),
		Policies:            policies,
		BalanceChecks:       !sy.DisableBalanceChecks,
	}

	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return scenario, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseFarm(fy FarmYAML) sim.Farm {
	crops := make([]sim.CropPlan, 0, len(fy.Crops))
	for _, cy := range fy.Crops {
		crops = append(crops, sim.CropPlan{
			Crop:       sim.CropName(cy.Crop),
			AreaHa:     cy.AreaHa,
			PlantMonth: time.Month(cy.PlantMonth),
			PlantDay:   cy.PlantDay,
			Stages: sim.StageLengths{
				Initial:     cy.Stages.Initial,
				Development: cy.Stages.Development,
				MidSeason:   cy.Stages.MidSeason,
				LateSeason:  cy.Stages.LateSeason,
			},
			YieldKgPerHa:            cy.YieldKgPerHa,
			FieldLaborHoursPerHaDay: cy.FieldLaborHoursPerHaDay,
			HarvestLaborHoursPerKg:  cy.HarvestLaborHoursPerKg,
			InputCostPerHaDay:       sim.USD(cy.InputCostPerHaDay),
		})
	}
	return sim.Farm{
		ID:           sim.FarmID(fy.ID),
		Name:         fy.Name,
		AreaHa:       fy.AreaHa,
		StartingCash: sim.USD(fy.StartingCash),
		Crops:        crops,
	}
}

func parseInfrastructure(iy InfrastructureYAML) sim.Infrastructure {
	return sim.Infrastructure{
		WellMaxM3PerDay:      iy.WellMaxM3PerDay,
		TreatmentMaxM3PerDay: iy.TreatmentMaxM3PerDay,
		GroundwaterSalinity:  iy.GroundwaterSalinity,
		PumpKWhPerM3PerM:     iy.PumpKWhPerM3PerM,
		PVCapacityKW:         iy.PVCapacityKW,
		WindCapacityKW:       iy.WindCapacityKW,
		PVDegradationRate:    iy.PVDegradationRate,
		WindDegradationRate:  iy.WindDegradationRate,
		Battery: sim.BatterySpec{
			CapacityKWh:         iy.Battery.CapacityKWh,
			SOCMin:              iy.Battery.SOCMin,
			SOCMax:              iy.Battery.SOCMax,
			ChargeEfficiency:    iy.Battery.ChargeEfficiency,
			DischargeEfficiency: iy.Battery.DischargeEfficiency,
		},
		Generator: sim.GeneratorSpec{
			RatedKW:         iy.Generator.RatedKW,
			MinLoadFraction: iy.Generator.MinLoadFraction,
			FuelA:           iy.Generator.FuelA,
			FuelB:           iy.Generator.FuelB,
		},
		Processing: sim.ProcessingSpec{
			ThroughputKgPerDay: productMap(iy.Processing.ThroughputKgPerDay),
			EnergyKWhPerKg:     productMap(iy.Processing.EnergyKWhPerKg),
			LaborHoursPerKg:    productMap(iy.Processing.LaborHoursPerKg),
			WeightLossFraction: productMap(iy.Processing.WeightLossFraction),
			ShelfLifeDays:      productMap(iy.Processing.ShelfLifeDays),
			WasteFraction:      iy.Processing.WasteFraction,
			WagePerHour:        sim.USD(iy.Processing.WagePerHour),
		},
		StorageCapacityKg:   productMap(iy.StorageCapacityKg),
		StorageCostPerKgDay: sim.USD(iy.StorageCostPerKgDay),
	}
}

func parseTariffs(ty TariffsYAML) sim.Tariffs {
	tiers := make([]sim.WaterTier, 0, len(ty.DomesticTiers))
	for _, t := range ty.DomesticTiers {
		tiers = append(tiers, sim.WaterTier{MaxM3: t.MaxM3, Rate: sim.USD(t.Rate)})
	}
	out := sim.Tariffs{
		AgWaterPerM3:        sim.USD(ty.AgWaterPerM3),
		AgWaterEscalation:   ty.AgWaterEscalation,
		DomesticSubsidized:  ty.DomesticSubsidized,
		DomesticTiers:       tiers,
		DomesticWaterPerM3:  sim.USD(ty.DomesticWaterPerM3),
		WastewaterSurcharge: ty.WastewaterSurcharge,
		DomesticEscalation:  ty.DomesticEscalation,
		GridPerKWh:          sim.USD(ty.GridPerKWh),
		GridEscalation:      ty.GridEscalation,
		NetMeteringRatio:    ty.NetMeteringRatio,
		ProductMultiplier:   productMap(ty.ProductMultiplier),
	}
	out.FarmgatePerKg = make(map[sim.CropName]decimal.Decimal, len(ty.FarmgatePerKg))
	for crop, price := range ty.FarmgatePerKg {
		out.FarmgatePerKg[sim.CropName(crop)] = sim.USD(price)
	}
	return out
}

func parseCostAllocation(s string) sim.CostAllocation {
	switch s {
	case "area":
		return sim.AllocByArea
	case "usage":
		return sim.AllocByUsage
	default:
		return sim.AllocEqual
	}
}

func parseNegativeCash(s string) sim.NegativeCashPolicy {
	switch s {
	case "penalty_interest":
		return sim.CashPenaltyInterest
	case "hard_ceiling":
		return sim.CashHardCeiling
	default:
		return sim.CashUnlimited
	}
}

func parsePolicies(py PoliciesYAML) (sim.Policies, error) {
	p := sim.Policies{Crop: sim.FixedCalendar{}}

	switch py.Water {
	case "", "always_groundwater":
		p.Water = sim.AlwaysGroundwater{}
	case "always_municipal":
		p.Water = sim.AlwaysMunicipal{}
	case "cheapest_source":
		p.Water = sim.CheapestSource{}
	case "conserve_groundwater":
		p.Water = sim.ConserveGroundwater{MaxDepletionFraction: py.ConserveMaxDepletion}
	case "quota_enforced":
		p.Water = sim.QuotaEnforced{}
	default:
		return p, fmt.Errorf("unknown water policy: %s", py.Water)
	}

	switch py.Energy {
	case "", "renewable_first":
		p.Energy = sim.RenewableFirst{}
	case "grid_first":
		p.Energy = sim.GridFirst{}
	case "off_grid":
		p.Energy = sim.OffGrid{}
	default:
		return p, fmt.Errorf("unknown energy policy: %s", py.Energy)
	}

	if len(py.Food) == 0 {
		p.Food = sim.AllFresh{}
	} else {
		split, err := sim.NewFixedSplit("configured_split", productMap(py.Food))
		if err != nil {
			return p, err
		}
		p.Food = split
	}

	switch py.Market {
	case "", "sell_at_harvest":
		p.Market = sim.SellAtHarvest{}
	case "hold_for_price":
		p.Market = sim.HoldForPrice{ThresholdPerKg: py.HoldThresholdPerKg, MaxHoldDays: py.HoldMaxDays}
	default:
		return p, fmt.Errorf("unknown market policy: %s", py.Market)
	}

	p.Economic = sim.DistressWatch{CostRevenueRatioLimit: py.CostRevenueRatioLimit}
	return p, nil
}

// productMap rekeys a string map onto sim.ProductType.
func productMap[V any](m map[string]V) map[sim.ProductType]V {
	if m == nil {
		return nil
	}
	out := make(map[sim.ProductType]V, len(m))
	for k, v := range m {
		out[sim.ProductType(k)] = v
	}
	return out
}
