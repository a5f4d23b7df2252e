/*
orchestrator.go - The daily simulation loop

PURPOSE:
  Advances the simulation one day at a time through the strict step order:

    1. crop       planting + growth advance, irrigation demand
    2. water      two-phase community allocation, single aquifer write
    3. energy     merit-order dispatch of ALL demand, including
                  yesterday's processing energy (one-day lag)
    4. food       harvest processing under shared daily throughput
    5. forced     expiry + overflow sweeps
    6. market     voluntary sales from what remains
    7. economic   daily posting, record validation, persistence

  followed by month-end and year-end boundary postings. The ordering is
  part of the contract: later steps read state earlier steps wrote, and
  the processing-energy lag breaks the same-day circular dependency
  between food processing and energy dispatch.

TWO-PHASE DISCIPLINE:
  Shared resources (aquifer, treatment, processing throughput, storage)
  are allocated from aggregate demand and then apportioned to farms.
  Shared state is written exactly once per step, never inside a per-farm
  loop.

FAILURE:
  A NaN or an open balance aborts the run with the offending farm, date
  and field. No partial output is presented as complete.
*/
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RUN STATE
// =============================================================================

// FarmState is one farm's mutable daily state.
type FarmState struct {
	ID      FarmID
	AreaHa  float64
	CashUSD decimal.Decimal
	Crops   map[CropName]*CropState
}

// RunSummary is the outcome of one completed run.
type RunSummary struct {
	RunID    RunID
	Scenario string
	Seed     int64
	Days     int

	Years []YearlySnapshot

	FinalCashByFarm  map[FarmID]decimal.Decimal
	CommunityCashUSD decimal.Decimal
	TotalDebtUSD     decimal.Decimal
	NetIncomeUSD     decimal.Decimal
	UnmetDemandKWh   float64
}

// yearAccumulator gathers the community-level yearly snapshot inputs.
type yearAccumulator struct {
	groundwaterM3 float64
	municipalM3   float64
	renewableKWh  float64
	gridImportKWh float64
	generatorKWh  float64
	batteryKWh    float64
	unmetKWh      float64
	harvestKg     float64
	wasteKg       float64
	revenueUSD    decimal.Decimal
	costUSD       decimal.Decimal
}

func newYearAccumulator() yearAccumulator {
	return yearAccumulator{revenueUSD: decimal.Zero, costUSD: decimal.Zero}
}

// dayLedger carries one day's intermediate results between steps so the
// posting step sees everything at once.
type dayLedger struct {
	date  SimDate
	alloc WaterAllocation

	farmDemand map[FarmID]float64
	gwByFarm   map[FarmID]float64
	munByFarm  map[FarmID]float64

	municipalPrice decimal.Decimal
	pumpIntensity  float64

	dispatch           DispatchResult
	farmEnergyKWh      map[FarmID]float64
	energyCostByFarm   map[FarmID]decimal.Decimal
	domesticEnergyCost decimal.Decimal

	fieldHours map[FarmID]float64         // field + harvest labor hours
	inputCost  map[FarmID]decimal.Decimal // per-plan inputs accrued daily

	procResults map[FarmID][]ProcessingResult
	sales       []SaleEvent
}

// =============================================================================
// DAILY ORCHESTRATOR
// =============================================================================

// DailyOrchestrator owns one run: the scenario, all mutable state, and the
// component engines. Single-threaded and deterministic; parallelism exists
// only across independent runs.
type DailyOrchestrator struct {
	Scenario *Scenario
	Env      Environment
	Store    RecordStore
	Logger   *slog.Logger

	pricing    *PricingResolver
	dispatch   *EnergyDispatchEngine
	pipeline   *FoodProcessingPipeline
	inventory  *InventoryLedger
	accountant *EconomicAccountant
	aquifer    *AquiferState
	econ       *EconomicState

	runID RunID
	seed  int64
	farms []*FarmState

	// One-day processing-energy lag: written at the end of step 4, read at
	// the start of the next day's step 3. A single slot, nothing fancier.
	prevProcessingKWh    float64
	prevProcessingByFarm map[FarmID]float64

	pvFactor, windFactor float64 // equipment degradation, updated yearly

	domesticMonthM3 float64 // tiered-tariff counter, resets monthly

	monthRecords []DailyRecord
	yearAgg      yearAccumulator
	years        []YearlySnapshot

	totalNetIncome decimal.Decimal
	totalUnmetKWh  float64
}

// NewRun validates the scenario and assembles a run with fresh state.
func NewRun(scenario *Scenario, env Environment, store RecordStore, seed int64, logger *slog.Logger) (*DailyOrchestrator, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	farms := make([]*FarmState, 0, len(scenario.Farms))
	for _, f := range scenario.Farms {
		farms = append(farms, &FarmState{
			ID:      f.ID,
			AreaHa:  f.AreaHa,
			CashUSD: f.StartingCash,
			Crops:   make(map[CropName]*CropState),
		})
	}

	return &DailyOrchestrator{
		Scenario:             scenario,
		Env:                  env,
		Store:                store,
		Logger:               logger,
		pricing:              NewPricingResolver(scenario.Tariffs, env, scenario.Start.Year()),
		dispatch:             NewEnergyDispatchEngine(scenario.Infra.Battery, scenario.Infra.Generator),
		pipeline:             NewFoodProcessingPipeline(scenario.Infra.Processing),
		inventory:            NewInventoryLedger(scenario.Infra.StorageCapacityKg),
		accountant:           NewEconomicAccountant(scenario.CostAllocation, scenario.NegativeCash, logger),
		aquifer:              NewAquiferState(scenario.Aquifer),
		econ:                 NewEconomicState(scenario.CommunityCashUSD, append([]DebtState(nil), scenario.Debts...)),
		runID:                RunID(uuid.NewString()),
		seed:                 seed,
		farms:                farms,
		prevProcessingByFarm: map[FarmID]float64{},
		pvFactor:             1,
		windFactor:           1,
		yearAgg:              newYearAccumulator(),
		totalNetIncome:       decimal.Zero,
	}, nil
}

// ID returns the identifier assigned to this run.
func (o *DailyOrchestrator) ID() RunID { return o.runID }

// Aquifer exposes the aquifer state for inspection after a run.
func (o *DailyOrchestrator) Aquifer() *AquiferState { return o.aquifer }

// Battery exposes the battery state for inspection after a run.
func (o *DailyOrchestrator) Battery() *BatteryState { return o.dispatch.Battery }

// Run executes the scenario from start to end and returns the summary.
// A fatal error aborts immediately; there is no partial-result salvage.
func (o *DailyOrchestrator) Run(ctx context.Context) (*RunSummary, error) {
	s := o.Scenario
	if o.Store != nil {
		meta := RunMeta{ID: o.runID, Scenario: s.Name, Start: s.Start, End: s.End, Seed: o.seed}
		if err := o.Store.CreateRun(ctx, meta); err != nil {
			return nil, err
		}
	}
	o.Logger.Info("run started", "run", string(o.runID), "scenario", s.Name,
		"start", s.Start.String(), "end", s.End.String())

	days := 0
	for date := s.Start; date.BeforeOrEqual(s.End); date = date.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.stepDay(ctx, date); err != nil {
			o.Logger.Error("run aborted", "run", string(o.runID), "date", date.String(), "err", err)
			return nil, fmt.Errorf("day %s: %w", date, err)
		}
		days++
		if date.IsMonthEnd() {
			o.postMonth(date)
		}
		if date.IsYearEnd() {
			o.postYear(date)
		}
	}

	summary := o.summary(days)
	o.Logger.Info("run complete", "run", string(o.runID), "days", days,
		"net_income", summary.NetIncomeUSD.StringFixed(2))
	return summary, nil
}

// =============================================================================
// THE DAILY STEP
// =============================================================================

func (o *DailyOrchestrator) stepDay(ctx context.Context, date SimDate) error {
	s := o.Scenario
	flags := s.Policies.Energy.Flags(date)
	day := &dayLedger{date: date}

	// ---- Step 1: crop. Plant, advance, collect irrigation demand. -------
	day.farmDemand = make(map[FarmID]float64, len(o.farms))
	day.fieldHours = make(map[FarmID]float64, len(o.farms))
	day.inputCost = make(map[FarmID]decimal.Decimal, len(o.farms))
	cropDemand := make(map[*CropState]float64)
	harvestReady := make(map[FarmID][]*CropState)

	for i, farm := range o.farms {
		day.farmDemand[farm.ID] = 0
		day.inputCost[farm.ID] = decimal.Zero
		// Walk the plan slice, never the state map: harvest order decides
		// who consumes shared processing throughput first, so it must not
		// depend on map iteration. One plan per crop per farm (validated).
		for _, plan := range s.Farms[i].Crops {
			if s.Policies.Crop.ShouldPlant(plan, date, farm.Crops[plan.Crop]) {
				farm.Crops[plan.Crop] = NewCropState(farm.ID, plan, date)
			}
			crop := farm.Crops[plan.Crop]
			if crop == nil || !crop.Active() {
				continue
			}
			if !crop.PlantedOn.Equal(date) && crop.Advance() {
				harvestReady[farm.ID] = append(harvestReady[farm.ID], crop)
			}
			day.fieldHours[farm.ID] += plan.FieldLaborHoursPerHaDay * plan.AreaHa
			day.inputCost[farm.ID] = day.inputCost[farm.ID].Add(MulFloat(plan.InputCostPerHaDay, plan.AreaHa))
			demand := o.Env.IrrigationDemand(crop.Plan.Crop, crop.PlantedOn, date) * crop.Plan.AreaHa
			if demand > 0 {
				crop.WaterDemandM3 += demand
				cropDemand[crop] = demand
				day.farmDemand[farm.ID] += demand
			}
		}
	}

	// ---- Step 2: water. Aggregate, allocate once, apportion. ------------
	totalDemand := 0.0
	for _, farm := range o.farms {
		totalDemand += day.farmDemand[farm.ID]
	}

	day.pumpIntensity = s.Infra.PumpKWhPerM3PerM*o.aquifer.HeadM +
		o.Env.TreatmentEnergy(s.Infra.GroundwaterSalinity)
	gridPrice := o.pricing.GridImportPrice(date)
	day.municipalPrice = o.pricing.ResolvePrice(ConsumerAgricultural, ResourceWater, date, 0)

	wctx := &WaterContext{
		Date:             date,
		DemandM3:         totalDemand,
		GroundwaterPerM3: MulFloat(gridPrice, day.pumpIntensity),
		MunicipalPerM3:   day.municipalPrice,
		WellMaxM3:        s.Infra.WellMaxM3PerDay,
		TreatmentMaxM3:   s.Infra.TreatmentMaxM3PerDay,
		EnergyLimitKWh:   o.waterEnergyBudget(date, flags),
		PumpKWhPerM3:     day.pumpIntensity,
		Aquifer:          o.aquifer,
	}
	day.alloc = s.Policies.Water.Allocate(wctx)

	// Phase two: apportion supply and write shared state exactly once.
	day.gwByFarm = ApportionProportional(day.farmDemand, day.alloc.GroundwaterM3)
	day.munByFarm = ApportionProportional(day.farmDemand, day.alloc.MunicipalM3)
	o.aquifer.Extract(day.alloc.GroundwaterM3)

	// Delivered water reaches crops in proportion to their demand.
	for crop, demand := range cropDemand {
		if day.farmDemand[crop.Farm] > 0 {
			delivered := (day.gwByFarm[crop.Farm] + day.munByFarm[crop.Farm]) * demand / day.farmDemand[crop.Farm]
			crop.WaterReceivedM3 += delivered
		}
	}

	// ---- Step 3: energy. Dispatch all demand incl. yesterday's lag. -----
	domesticKWh := s.Community.DomesticEnergyKWhPerDay
	demandKWh := day.alloc.EnergyKWh + o.prevProcessingKWh + domesticKWh

	in := DispatchInput{
		DemandKWh:   demandKWh,
		PVKWh:       o.Env.PVOutput(date) * s.Infra.PVCapacityKW * o.pvFactor,
		WindKWh:     o.Env.WindOutput(date) * s.Infra.WindCapacityKW * o.windFactor,
		GridPrice:   gridPrice,
		ExportPrice: o.pricing.GridExportPrice(date),
		DieselPrice: o.pricing.DieselPrice(date),
	}
	day.dispatch = o.dispatch.Dispatch(in, flags)
	if s.BalanceChecks {
		if err := CheckDispatchBalance(date, in, day.dispatch); err != nil {
			return err
		}
	}

	// Attribute energy cost: farms carry the agricultural share by usage;
	// the household share joins the community shared costs.
	day.farmEnergyKWh = make(map[FarmID]float64, len(o.farms))
	agKWh := 0.0
	for _, farm := range o.farms {
		kwh := day.gwByFarm[farm.ID]*day.pumpIntensity + o.prevProcessingByFarm[farm.ID]
		day.farmEnergyKWh[farm.ID] = kwh
		agKWh += kwh
	}
	day.energyCostByFarm = make(map[FarmID]decimal.Decimal, len(o.farms))
	day.domesticEnergyCost = decimal.Zero
	if demandKWh > 0 {
		agCost := MulFloat(day.dispatch.NetCostUSD, agKWh/demandKWh)
		day.domesticEnergyCost = MulFloat(day.dispatch.NetCostUSD, domesticKWh/demandKWh)
		for _, farm := range o.farms {
			if agKWh > 0 {
				day.energyCostByFarm[farm.ID] = MulFloat(agCost, day.farmEnergyKWh[farm.ID]/agKWh)
			} else {
				day.energyCostByFarm[farm.ID] = decimal.Zero
			}
		}
	} else {
		for _, farm := range o.farms {
			day.energyCostByFarm[farm.ID] = decimal.Zero
		}
		// Export-only days still move money; it lands in shared costs.
		day.domesticEnergyCost = day.dispatch.NetCostUSD
	}

	// ---- Step 4: food processing on harvest days. -----------------------
	capacity := NewDailyCapacity(s.Infra.Processing)
	day.procResults = make(map[FarmID][]ProcessingResult)
	procKWhByFarm := make(map[FarmID]float64)
	totalProcKWh := 0.0

	for _, farm := range o.farms {
		for _, crop := range harvestReady[farm.ID] {
			yield := crop.Harvest()
			crop.Retire()
			day.fieldHours[farm.ID] += yield * crop.Plan.HarvestLaborHoursPerKg
			res, err := o.pipeline.Process(
				crop.Plan.Crop, date, yield,
				map[FarmID]float64{farm.ID: 1},
				s.Policies.Food, capacity,
			)
			if err != nil {
				return err
			}
			for _, t := range res.Tranches {
				o.inventory.Add(t)
			}
			day.procResults[farm.ID] = append(day.procResults[farm.ID], res)
			procKWhByFarm[farm.ID] += res.EnergyKWh
			totalProcKWh += res.EnergyKWh
		}
	}

	// ---- Steps 5+6: forced sweeps, then voluntary market sales. ---------
	price := PriceFn(o.pricing.ProductPrice)
	day.sales = o.inventory.Tick(date, price)

	mctx := MarketContext{Date: date, Ledger: o.inventory, Price: price}
	for _, order := range s.Policies.Market.Decide(mctx) {
		day.sales = append(day.sales,
			o.inventory.Sell(date, order.Product, order.Crop, order.Kg, price, s.Policies.Market.Name())...)
	}

	// ---- Step 7: economic posting per farm. -----------------------------
	if err := o.postDay(ctx, day); err != nil {
		return err
	}

	// Overwrite the lag slot at the very end of the day.
	o.prevProcessingKWh = totalProcKWh
	o.prevProcessingByFarm = procKWhByFarm

	return nil
}

// waterEnergyBudget estimates the energy available for pumping/treatment
// today. With grid import allowed the budget is effectively unbounded;
// off-grid it is what renewables, battery and generator can deliver.
func (o *DailyOrchestrator) waterEnergyBudget(date SimDate, flags DispatchFlags) float64 {
	if flags.GridImport {
		return 1e12
	}
	s := o.Scenario
	budget := o.Env.PVOutput(date)*s.Infra.PVCapacityKW*o.pvFactor +
		o.Env.WindOutput(date)*s.Infra.WindCapacityKW*o.windFactor
	if flags.UseBattery && o.dispatch.Battery != nil {
		budget += o.dispatch.Battery.dischargeable()
	}
	if flags.UseGenerator {
		budget += s.Infra.Generator.RatedKW * 24
	}
	return budget
}

// =============================================================================
// DAILY POSTING
// =============================================================================

// postDay builds, validates and persists each farm's DailyRecord, then
// rolls community accumulators.
func (o *DailyOrchestrator) postDay(ctx context.Context, day *dayLedger) error {
	s := o.Scenario

	// Community shared costs for the day: annualized OPEX plus the
	// household water and energy bills.
	domesticWaterRate := o.pricing.ResolvePrice(ConsumerDomestic, ResourceWater, day.date, o.domesticMonthM3)
	domesticWaterCost := MulFloat(domesticWaterRate, s.Community.DomesticWaterM3PerDay)
	o.domesticMonthM3 += s.Community.DomesticWaterM3PerDay

	sharedDaily := MulFloat(s.SharedOpexAnnualUSD, 1.0/365).
		Add(domesticWaterCost).
		Add(day.domesticEnergyCost)

	areas := make(map[FarmID]float64, len(o.farms))
	for _, farm := range o.farms {
		areas[farm.ID] = farm.AreaHa
	}
	shares := o.accountant.SharedShares(areas, day.farmDemand)

	// Revenue attribution reads tranche shares via the sale events.
	revenueByFarm := make(map[FarmID]decimal.Decimal, len(o.farms))
	for _, farm := range o.farms {
		revenueByFarm[farm.ID] = decimal.Zero
	}
	for _, ev := range day.sales {
		for farm, usd := range ev.FarmRevenue {
			revenueByFarm[farm] = revenueByFarm[farm].Add(usd)
		}
	}

	// Holding cost on what is still in the cold store at end of day,
	// attributed by the same tranche shares that attribute revenue.
	storageByFarm := make(map[FarmID]decimal.Decimal, len(o.farms))
	for _, farm := range o.farms {
		storageByFarm[farm.ID] = decimal.Zero
	}
	if s.Infra.StorageCostPerKgDay.IsPositive() {
		for _, t := range o.inventory.Tranches() {
			cost := MulFloat(s.Infra.StorageCostPerKgDay, t.Kg)
			for farm, share := range t.FarmShares {
				storageByFarm[farm] = storageByFarm[farm].Add(MulFloat(cost, share))
			}
		}
	}

	dayRevenue := decimal.Zero
	dayCost := decimal.Zero

	for _, farm := range o.farms {
		rec := DailyRecord{
			Farm:               farm.ID,
			Date:               day.date,
			WaterDemandM3:      day.farmDemand[farm.ID],
			GroundwaterM3:      day.gwByFarm[farm.ID],
			MunicipalM3:        day.munByFarm[farm.ID],
			WaterEnergyKWh:     day.gwByFarm[farm.ID] * day.pumpIntensity,
			WaterCostUSD:       MulFloat(day.municipalPrice, day.munByFarm[farm.ID]),
			WaterPolicy:        day.alloc.Reason,
			ConstraintHit:      day.alloc.ConstraintHit,
			EnergyDemandKWh:    day.farmEnergyKWh[farm.ID],
			EnergyCostUSD:      day.energyCostByFarm[farm.ID],
			FieldLaborUSD:      MulFloat(s.Infra.Processing.WagePerHour, day.fieldHours[farm.ID]),
			InputCostUSD:       day.inputCost[farm.ID],
			StorageCostUSD:     storageByFarm[farm.ID],
			SharedOpexUSD:      MulFloat(sharedDaily, shares[farm.ID]),
			RevenueUSD:         revenueByFarm[farm.ID],
			ProcessingLaborUSD: decimal.Zero,
		}
		for _, res := range day.procResults[farm.ID] {
			rec.HarvestKg += res.InputKg
			for _, kg := range res.OutputKg {
				rec.ProcessedKg += kg
			}
			rec.WeightLossKg += res.WeightLossKg
			rec.WasteKg += res.WasteKg
			rec.ProcessingEnergyKWh += res.EnergyKWh
			rec.ProcessingLaborUSD = rec.ProcessingLaborUSD.Add(res.LaborCostUSD)
		}

		farm.CashUSD = o.accountant.PostDay(farm.CashUSD, &rec)

		if err := rec.CheckNaN(); err != nil {
			return err
		}
		if s.BalanceChecks {
			if err := rec.Validate(); err != nil {
				return err
			}
		}

		if o.Store != nil {
			if err := o.Store.AppendRecord(ctx, o.runID, rec); err != nil {
				return err
			}
		}
		o.monthRecords = append(o.monthRecords, rec)

		dayRevenue = dayRevenue.Add(rec.RevenueUSD)
		dayCost = dayCost.Add(rec.TotalCostUSD)
		o.yearAgg.harvestKg += rec.HarvestKg
		o.yearAgg.wasteKg += rec.WasteKg
	}

	if o.Store != nil && len(day.sales) > 0 {
		if err := o.Store.AppendSales(ctx, o.runID, day.sales); err != nil {
			return err
		}
	}

	// Community-level accumulators.
	o.yearAgg.groundwaterM3 += day.alloc.GroundwaterM3
	o.yearAgg.municipalM3 += day.alloc.MunicipalM3
	o.yearAgg.renewableKWh += day.dispatch.PVUsedKWh + day.dispatch.WindUsedKWh
	o.yearAgg.gridImportKWh += day.dispatch.GridImportKWh
	o.yearAgg.generatorKWh += day.dispatch.GeneratorKWh
	o.yearAgg.batteryKWh += day.dispatch.BatteryDischargedKWh
	o.yearAgg.unmetKWh += day.dispatch.UnmetKWh
	o.yearAgg.revenueUSD = o.yearAgg.revenueUSD.Add(dayRevenue)
	o.yearAgg.costUSD = o.yearAgg.costUSD.Add(dayCost)
	o.totalNetIncome = o.totalNetIncome.Add(dayRevenue).Sub(dayCost)
	o.totalUnmetKWh += day.dispatch.UnmetKWh
	o.econ.YearRevenueUSD = o.econ.YearRevenueUSD.Add(dayRevenue)
	o.econ.YearCostUSD = o.econ.YearCostUSD.Add(dayCost)

	return nil
}

// =============================================================================
// BOUNDARY POSTINGS
// =============================================================================

// postMonth amortizes debt and evaluates the economic policy over the
// month that just completed, then resets monthly counters.
func (o *DailyOrchestrator) postMonth(date SimDate) {
	snapshots := make(map[FarmID]MonthlySnapshot, len(o.farms))
	for _, farm := range o.farms {
		snapshots[farm.ID] = AggregateMonth(farm.ID, date.MonthKey(), o.monthRecords)
	}
	debtService, _ := o.accountant.PostMonth(o.econ, o.Scenario.Policies.Economic, snapshots)
	if debtService.IsPositive() {
		o.Logger.Info("debt service posted", "month", date.MonthKey(),
			"payment", debtService.StringFixed(2))
	}

	o.aquifer.ResetMonth()
	o.domesticMonthM3 = 0
	o.monthRecords = o.monthRecords[:0]
}

// postYear snapshots the year, applies drawdown and degradation feedback,
// resets yearly accumulators, and retires any cycle that never completed.
func (o *DailyOrchestrator) postYear(date SimDate) {
	supply := o.yearAgg.groundwaterM3 + o.yearAgg.municipalM3
	served := o.yearAgg.renewableKWh + o.yearAgg.gridImportKWh + o.yearAgg.generatorKWh

	snap := YearlySnapshot{
		Year:             date.Year(),
		GroundwaterM3:    o.yearAgg.groundwaterM3,
		MunicipalM3:      o.yearAgg.municipalM3,
		AquiferDepletion: o.aquifer.DepletionFraction(),
		RenewableKWh:     o.yearAgg.renewableKWh,
		GridImportKWh:    o.yearAgg.gridImportKWh,
		GeneratorKWh:     o.yearAgg.generatorKWh,
		UnmetDemandKWh:   o.yearAgg.unmetKWh,
		HarvestKg:        o.yearAgg.harvestKg,
		WasteKg:          o.yearAgg.wasteKg,
		RevenueUSD:       o.yearAgg.revenueUSD,
		TotalCostUSD:     o.yearAgg.costUSD,
		NetIncomeUSD:     o.yearAgg.revenueUSD.Sub(o.yearAgg.costUSD),
		DebtServiceUSD:   o.econ.YearDebtServiceUSD,
		CommunityCashUSD: o.econ.CommunityCashUSD,
		TotalDebtUSD:     o.econ.TotalDebt(),
	}
	if supply > 0 {
		snap.WaterSelfSufficiency = o.yearAgg.groundwaterM3 / supply
	}
	if served > 0 {
		snap.EnergySelfSufficiency = (served - o.yearAgg.gridImportKWh) / served
	}
	o.years = append(o.years, snap)

	// Feedback loops: deeper water table, aged panels.
	o.aquifer.ApplyDrawdown()
	o.aquifer.ResetYear()
	o.pvFactor *= 1 - o.Scenario.Infra.PVDegradationRate
	o.windFactor *= 1 - o.Scenario.Infra.WindDegradationRate

	for _, farm := range o.farms {
		for _, crop := range farm.Crops {
			crop.Retire()
		}
	}

	o.yearAgg = newYearAccumulator()
	o.econ.YearRevenueUSD = decimal.Zero
	o.econ.YearCostUSD = decimal.Zero
	o.econ.YearDebtServiceUSD = decimal.Zero

	o.Logger.Info("year closed", "year", snap.Year,
		"net_income", snap.NetIncomeUSD.StringFixed(2),
		"aquifer_depletion", fmt.Sprintf("%.4f", snap.AquiferDepletion))
}

func (o *DailyOrchestrator) summary(days int) *RunSummary {
	finalCash := make(map[FarmID]decimal.Decimal, len(o.farms))
	for _, farm := range o.farms {
		finalCash[farm.ID] = farm.CashUSD
	}
	return &RunSummary{
		RunID:            o.runID,
		Scenario:         o.Scenario.Name,
		Seed:             o.seed,
		Days:             days,
		Years:            o.years,
		FinalCashByFarm:  finalCash,
		CommunityCashUSD: o.econ.CommunityCashUSD,
		TotalDebtUSD:     o.econ.TotalDebt(),
		NetIncomeUSD:     o.totalNetIncome,
		UnmetDemandKWh:   o.totalUnmetKWh,
	}
}
