/*
dto.go - JSON wire types for the HTTP API

PURPOSE:
  Decouples the HTTP surface from engine types. Monetary amounts cross
  the wire as decimal strings, never floats, so a frontend can render
  them without precision loss. Physical flows stay numeric.

SEE ALSO:
  - handlers.go: where these are populated
  - sim/record.go: the engine-side record types
*/
package api

import (
	"github.com/warp/farmsim/sim"
)

// ScenarioDTO describes one loadable scenario.
type ScenarioDTO struct {
	Name      string `json:"name"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Farms     int    `json:"farms"`
	Preset    bool   `json:"preset"`
	WaterPol  string `json:"water_policy"`
	EnergyPol string `json:"energy_policy"`
}

// RunRequestDTO starts a single run.
type RunRequestDTO struct {
	Scenario string `json:"scenario"`
	Seed     int64  `json:"seed,omitempty"`
}

// RunDTO is one run's metadata.
type RunDTO struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Seed     int64  `json:"seed"`
}

// RecordDTO is one farm-day audit record.
type RecordDTO struct {
	Farm string `json:"farm"`
	Date string `json:"date"`

	WaterDemandM3  float64 `json:"water_demand_m3"`
	GroundwaterM3  float64 `json:"groundwater_m3"`
	MunicipalM3    float64 `json:"municipal_m3"`
	WaterEnergyKWh float64 `json:"water_energy_kwh"`
	WaterCostUSD   string  `json:"water_cost_usd"`
	WaterPolicy    string  `json:"water_policy"`
	ConstraintHit  string  `json:"constraint_hit,omitempty"`

	EnergyDemandKWh float64 `json:"energy_demand_kwh"`
	EnergyCostUSD   string  `json:"energy_cost_usd"`

	HarvestKg           float64 `json:"harvest_kg"`
	ProcessedKg         float64 `json:"processed_kg"`
	WeightLossKg        float64 `json:"weight_loss_kg"`
	WasteKg             float64 `json:"waste_kg"`
	ProcessingEnergyKWh float64 `json:"processing_energy_kwh"`
	ProcessingLaborUSD  string  `json:"processing_labor_usd"`

	FieldLaborUSD  string `json:"field_labor_usd"`
	InputCostUSD   string `json:"input_cost_usd"`
	StorageCostUSD string `json:"storage_cost_usd"`
	SharedOpexUSD  string `json:"shared_opex_usd"`
	TotalCostUSD   string `json:"total_cost_usd"`
	RevenueUSD     string `json:"revenue_usd"`
	NetIncomeUSD   string `json:"net_income_usd"`
	CashAfterUSD   string `json:"cash_after_usd"`
}

// YearDTO is one community year snapshot.
type YearDTO struct {
	Year int `json:"year"`

	GroundwaterM3        float64 `json:"groundwater_m3"`
	MunicipalM3          float64 `json:"municipal_m3"`
	WaterSelfSufficiency float64 `json:"water_self_sufficiency"`
	AquiferDepletion     float64 `json:"aquifer_depletion"`

	RenewableKWh          float64 `json:"renewable_kwh"`
	GridImportKWh         float64 `json:"grid_import_kwh"`
	GeneratorKWh          float64 `json:"generator_kwh"`
	UnmetDemandKWh        float64 `json:"unmet_demand_kwh"`
	EnergySelfSufficiency float64 `json:"energy_self_sufficiency"`

	HarvestKg float64 `json:"harvest_kg"`
	WasteKg   float64 `json:"waste_kg"`

	RevenueUSD       string `json:"revenue_usd"`
	TotalCostUSD     string `json:"total_cost_usd"`
	NetIncomeUSD     string `json:"net_income_usd"`
	DebtServiceUSD   string `json:"debt_service_usd"`
	CommunityCashUSD string `json:"community_cash_usd"`
	TotalDebtUSD     string `json:"total_debt_usd"`
}

// SummaryDTO is one completed run's outcome.
type SummaryDTO struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Seed     int64  `json:"seed"`
	Days     int    `json:"days"`

	Years []YearDTO `json:"years"`

	FinalCashByFarm  map[string]string `json:"final_cash_by_farm"`
	CommunityCashUSD string            `json:"community_cash_usd"`
	TotalDebtUSD     string            `json:"total_debt_usd"`
	NetIncomeUSD     string            `json:"net_income_usd"`
	UnmetDemandKWh   float64           `json:"unmet_demand_kwh"`
}

// MonteCarloRequestDTO starts a batch.
type MonteCarloRequestDTO struct {
	Scenario string `json:"scenario"`
	Runs     int    `json:"runs"`
	BaseSeed int64  `json:"base_seed,omitempty"`
	Workers  int    `json:"workers,omitempty"`

	YieldSigma  float64 `json:"yield_sigma,omitempty"`
	PriceSigma  float64 `json:"price_sigma,omitempty"`
	SupplySigma float64 `json:"supply_sigma,omitempty"`

	DisableBalanceChecks bool `json:"disable_balance_checks,omitempty"`
}

// MonteCarloResultDTO is the batch statistics.
type MonteCarloResultDTO struct {
	Runs int `json:"runs"`

	MeanNetIncomeUSD string `json:"mean_net_income_usd"`
	MinNetIncomeUSD  string `json:"min_net_income_usd"`
	MaxNetIncomeUSD  string `json:"max_net_income_usd"`
	P10NetIncomeUSD  string `json:"p10_net_income_usd"`
	P50NetIncomeUSD  string `json:"p50_net_income_usd"`
	P90NetIncomeUSD  string `json:"p90_net_income_usd"`
}

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func scenarioDTO(s *sim.Scenario, preset bool) ScenarioDTO {
	return ScenarioDTO{
		Name:      s.Name,
		Start:     s.Start.String(),
		End:       s.End.String(),
		Farms:     len(s.Farms),
		Preset:    preset,
		WaterPol:  s.Policies.Water.Name(),
		EnergyPol: s.Policies.Energy.Name(),
	}
}

func runDTO(meta sim.RunMeta) RunDTO {
	return RunDTO{
		ID:       string(meta.ID),
		Scenario: meta.Scenario,
		Start:    meta.Start.String(),
		End:      meta.End.String(),
		Seed:     meta.Seed,
	}
}

func recordDTO(r sim.DailyRecord) RecordDTO {
	return RecordDTO{
		Farm:                string(r.Farm),
		Date:                r.Date.String(),
		WaterDemandM3:       r.WaterDemandM3,
		GroundwaterM3:       r.GroundwaterM3,
		MunicipalM3:         r.MunicipalM3,
		WaterEnergyKWh:      r.WaterEnergyKWh,
		WaterCostUSD:        r.WaterCostUSD.StringFixed(2),
		WaterPolicy:         r.WaterPolicy,
		ConstraintHit:       r.ConstraintHit,
		EnergyDemandKWh:     r.EnergyDemandKWh,
		EnergyCostUSD:       r.EnergyCostUSD.StringFixed(2),
		HarvestKg:           r.HarvestKg,
		ProcessedKg:         r.ProcessedKg,
		WeightLossKg:        r.WeightLossKg,
		WasteKg:             r.WasteKg,
		ProcessingEnergyKWh: r.ProcessingEnergyKWh,
		ProcessingLaborUSD:  r.ProcessingLaborUSD.StringFixed(2),
		FieldLaborUSD:       r.FieldLaborUSD.StringFixed(2),
		InputCostUSD:        r.InputCostUSD.StringFixed(2),
		StorageCostUSD:      r.StorageCostUSD.StringFixed(2),
		SharedOpexUSD:       r.SharedOpexUSD.StringFixed(2),
		TotalCostUSD:        r.TotalCostUSD.StringFixed(2),
		RevenueUSD:          r.RevenueUSD.StringFixed(2),
		NetIncomeUSD:        r.NetIncomeUSD.StringFixed(2),
		CashAfterUSD:        r.CashAfterUSD.StringFixed(2),
	}
}

func yearDTO(y sim.YearlySnapshot) YearDTO {
	return YearDTO{
		Year:                  y.Year,
		GroundwaterM3:         y.GroundwaterM3,
		MunicipalM3:           y.MunicipalM3,
		WaterSelfSufficiency:  y.WaterSelfSufficiency,
		AquiferDepletion:      y.AquiferDepletion,
		RenewableKWh:          y.RenewableKWh,
		GridImportKWh:         y.GridImportKWh,
		GeneratorKWh:          y.GeneratorKWh,
		UnmetDemandKWh:        y.UnmetDemandKWh,
		EnergySelfSufficiency: y.EnergySelfSufficiency,
		HarvestKg:             y.HarvestKg,
		WasteKg:               y.WasteKg,
		RevenueUSD:            y.RevenueUSD.StringFixed(2),
		TotalCostUSD:          y.TotalCostUSD.StringFixed(2),
		NetIncomeUSD:          y.NetIncomeUSD.StringFixed(2),
		DebtServiceUSD:        y.DebtServiceUSD.StringFixed(2),
		CommunityCashUSD:      y.CommunityCashUSD.StringFixed(2),
		TotalDebtUSD:          y.TotalDebtUSD.StringFixed(2),
	}
}

func summaryDTO(s *sim.RunSummary) SummaryDTO {
	years := make([]YearDTO, 0, len(s.Years))
	for _, y := range s.Years {
		years = append(years, yearDTO(y))
	}
	finalCash := make(map[string]string, len(s.FinalCashByFarm))
	for farm, cash := range s.FinalCashByFarm {
		finalCash[string(farm)] = cash.StringFixed(2)
	}
	return SummaryDTO{
		RunID:            string(s.RunID),
		Scenario:         s.Scenario,
		Seed:             s.Seed,
		Days:             s.Days,
		Years:            years,
		FinalCashByFarm:  finalCash,
		CommunityCashUSD: s.CommunityCashUSD.StringFixed(2),
		TotalDebtUSD:     s.TotalDebtUSD.StringFixed(2),
		NetIncomeUSD:     s.NetIncomeUSD.StringFixed(2),
		UnmetDemandKWh:   s.UnmetDemandKWh,
	}
}

func monteCarloDTO(r *sim.MonteCarloResult) MonteCarloResultDTO {
	return MonteCarloResultDTO{
		Runs:             r.Runs,
		MeanNetIncomeUSD: r.MeanNetIncomeUSD.StringFixed(2),
		MinNetIncomeUSD:  r.MinNetIncomeUSD.StringFixed(2),
		MaxNetIncomeUSD:  r.MaxNetIncomeUSD.StringFixed(2),
		P10NetIncomeUSD:  r.P10NetIncomeUSD.StringFixed(2),
		P50NetIncomeUSD:  r.P50NetIncomeUSD.StringFixed(2),
		P90NetIncomeUSD:  r.P90NetIncomeUSD.StringFixed(2),
	}
}
