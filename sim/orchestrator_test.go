/*
orchestrator_test.go - End-to-end daily loop tests

Runs a small two-farm, one-quarter scenario through the full engine and
verifies the contract visible from outside: every farm-day produces a
validated record, balances close, replays are deterministic, and the
record log stays append-only.
*/
package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
	"github.com/warp/farmsim/sim/store"
)

// quarterScenario is a two-farm tomato quarter: planted Feb 1, 20-day
// cycle, harvested Feb 21, groundwater-first with renewables.
func quarterScenario() *sim.Scenario {
	plan := func(areaHa, yield float64) sim.CropPlan {
		return sim.CropPlan{
			Crop: "tomato", AreaHa: areaHa,
			PlantMonth: time.February, PlantDay: 1,
			Stages:       sim.StageLengths{Initial: 5, Development: 5, MidSeason: 5, LateSeason: 5},
			YieldKgPerHa: yield,
		}
	}
	return &sim.Scenario{
		Name:  "test-quarter",
		Start: sim.NewDate(2026, time.January, 1),
		End:   sim.NewDate(2026, time.March, 31),
		Farms: []sim.Farm{
			{ID: "farm-a", Name: "North", AreaHa: 10, StartingCash: sim.USD(50000),
				Crops: []sim.CropPlan{plan(4, 1000)}},
			{ID: "farm-b", Name: "South", AreaHa: 5, StartingCash: sim.USD(30000),
				Crops: []sim.CropPlan{plan(2, 800)}},
		},
		Infra: sim.Infrastructure{
			WellMaxM3PerDay:      500,
			TreatmentMaxM3PerDay: 500,
			GroundwaterSalinity:  2000,
			PumpKWhPerM3PerM:     0.004,
			PVCapacityKW:         100,
			Processing: sim.ProcessingSpec{
				LaborHoursPerKg: map[sim.ProductType]float64{sim.ProductFresh: 0.002},
				ShelfLifeDays:   map[sim.ProductType]int{sim.ProductFresh: 7},
				WasteFraction:   0.02,
				WagePerHour:     sim.USD(9),
			},
		},
		Community: sim.Community{DomesticWaterM3PerDay: 10, DomesticEnergyKWhPerDay: 100},
		Aquifer:   sim.AquiferSpec{ExploitableM3: 100000, InitialHeadM: 40, HeadRisePerDepletionM: 20},
		Tariffs: sim.Tariffs{
			AgWaterPerM3:       sim.USD(0.80),
			DomesticWaterPerM3: sim.USD(1.10),
			GridPerKWh:         sim.USD(0.15),
			NetMeteringRatio:   0.70,
			FarmgatePerKg:      map[sim.CropName]decimal.Decimal{"tomato": sim.USD(0.5)},
			ProductMultiplier:  map[sim.ProductType]float64{sim.ProductFresh: 1.0},
		},
		SharedOpexAnnualUSD: sim.USD(3650),
		CommunityCashUSD:    sim.USD(10000),
		CostAllocation:      sim.AllocByArea,
		Policies: sim.Policies{
			Crop:     sim.FixedCalendar{},
			Water:    sim.AlwaysGroundwater{},
			Energy:   sim.RenewableFirst{},
			Food:     sim.AllFresh{},
			Market:   sim.SellAtHarvest{},
			Economic: sim.DistressWatch{},
		},
		BalanceChecks: true,
	}
}

// quarterEnvironment covers the scenario: 2 m3/ha irrigation through the
// cycle, 5 kWh/kW PV, flat diesel.
func quarterEnvironment() *sim.TableEnvironment {
	planted := sim.NewDate(2026, time.February, 1)
	irrigation := map[string]float64{}
	for age := 0; age < 20; age++ {
		date := planted.AddDays(age)
		irrigation[sim.IrrigationKey("tomato", planted, date)] = 2.0
	}
	pv := map[string]float64{"2026-01-01": 5.0}
	diesel := map[string]float64{"2026-01-01": 1.05}
	return sim.NewTableEnvironment(nil, irrigation, pv, nil, diesel, 1.1)
}

func runQuarter(t *testing.T, seed int64) (*sim.RunSummary, *store.Memory, sim.RunID) {
	t.Helper()
	mem := store.NewMemory()
	run, err := sim.NewRun(quarterScenario(), quarterEnvironment(), mem, seed, nil)
	require.NoError(t, err)

	summary, err := run.Run(context.Background())
	require.NoError(t, err)
	return summary, mem, run.ID()
}

func TestRun_EveryFarmDayProducesAValidatedRecord(t *testing.T) {
	// GIVEN: a 90-day quarter with two farms
	// THEN: exactly 180 records exist and each one passes validation

	summary, mem, runID := runQuarter(t, 42)

	assert.Equal(t, 90, summary.Days)

	records, err := mem.Records(context.Background(), runID, "")
	require.NoError(t, err)
	require.Len(t, records, 180)

	for i := range records {
		assert.NoError(t, records[i].Validate(), "record %s/%s", records[i].Farm, records[i].Date)
	}
}

func TestRun_HarvestDayFlowsThroughToRevenue(t *testing.T) {
	// GIVEN: farm-a's 4 ha of tomato at 1000 kg/ha, fully watered
	// WHEN: the cycle completes on Feb 21
	// THEN: the harvest-day record carries the yield, the 2% waste, and
	//       the same-day sell-at-harvest revenue at 0.5 USD/kg

	_, mem, runID := runQuarter(t, 42)

	records, err := mem.Records(context.Background(), runID, "farm-a")
	require.NoError(t, err)

	var harvestDay *sim.DailyRecord
	for i := range records {
		if records[i].HarvestKg > 0 {
			require.Nil(t, harvestDay, "exactly one harvest in the quarter")
			harvestDay = &records[i]
		}
	}
	require.NotNil(t, harvestDay)

	assert.Equal(t, "2026-02-21", harvestDay.Date.String())
	assert.InDelta(t, 4000, harvestDay.HarvestKg, 1e-6)
	assert.InDelta(t, 4000*0.98, harvestDay.ProcessedKg, 1e-6)
	assert.InDelta(t, 4000*0.02, harvestDay.WasteKg, 1e-6)
	assert.InDelta(t, 4000*0.98*0.5, harvestDay.RevenueUSD.InexactFloat64(), 1e-6)
	assert.InDelta(t, 4000*0.002*9, harvestDay.ProcessingLaborUSD.InexactFloat64(), 1e-6)
}

func TestRun_WaterMassBalanceClosesDaily(t *testing.T) {
	_, mem, runID := runQuarter(t, 42)

	records, err := mem.Records(context.Background(), runID, "")
	require.NoError(t, err)

	for i := range records {
		r := &records[i]
		gap := r.GroundwaterM3 + r.MunicipalM3 - r.WaterDemandM3
		assert.InDelta(t, 0, gap, sim.MassTolerance, "open water balance on %s", r.Date)
	}
}

func TestRun_AquiferDrawsExactlyTheAllocatedVolume(t *testing.T) {
	// GIVEN: 12 m3/day of demand over the 20-day irrigation window, all
	//        satisfied from groundwater
	// THEN: the aquifer loses exactly 240 m3

	s := quarterScenario()
	run, err := sim.NewRun(s, quarterEnvironment(), nil, 1, nil)
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 100000-240, run.Aquifer().RemainingM3, 1e-6)
}

func TestRun_SameSeedReplaysIdentically(t *testing.T) {
	// GIVEN: two runs of the same scenario and seed
	// THEN: every record and the summary agree exactly

	sum1, mem1, id1 := runQuarter(t, 42)
	sum2, mem2, id2 := runQuarter(t, 42)

	assert.True(t, sum1.NetIncomeUSD.Equal(sum2.NetIncomeUSD))
	assert.True(t, sum1.CommunityCashUSD.Equal(sum2.CommunityCashUSD))
	for farm, cash := range sum1.FinalCashByFarm {
		assert.True(t, cash.Equal(sum2.FinalCashByFarm[farm]), "cash diverged for %s", farm)
	}

	rec1, err := mem1.Records(context.Background(), id1, "")
	require.NoError(t, err)
	rec2, err := mem2.Records(context.Background(), id2, "")
	require.NoError(t, err)
	require.Equal(t, len(rec1), len(rec2))

	for i := range rec1 {
		a, b := &rec1[i], &rec2[i]
		assert.Equal(t, a.Farm, b.Farm)
		assert.True(t, a.Date.Equal(b.Date))
		assert.Equal(t, a.WaterDemandM3, b.WaterDemandM3)
		assert.Equal(t, a.GroundwaterM3, b.GroundwaterM3)
		assert.True(t, a.NetIncomeUSD.Equal(b.NetIncomeUSD), "income diverged on %s", a.Date)
		assert.True(t, a.CashAfterUSD.Equal(b.CashAfterUSD))
	}
}

// twoCropScenario plants tomato and pepper on farm-a on the same day,
// with a dried line too small for even the tomato harvest alone. Which
// crop gets the dried throughput is decided purely by processing order.
func twoCropScenario(t *testing.T) *sim.Scenario {
	t.Helper()
	s := quarterScenario()
	s.Farms[0].Crops = append(s.Farms[0].Crops, sim.CropPlan{
		Crop: "pepper", AreaHa: 2,
		PlantMonth: time.February, PlantDay: 1,
		Stages:       sim.StageLengths{Initial: 5, Development: 5, MidSeason: 5, LateSeason: 5},
		YieldKgPerHa: 1000,
	})
	s.Infra.Processing.ThroughputKgPerDay = map[sim.ProductType]float64{sim.ProductDried: 1500}
	s.Infra.Processing.EnergyKWhPerKg = map[sim.ProductType]float64{sim.ProductDried: 0.6}
	s.Infra.Processing.LaborHoursPerKg[sim.ProductDried] = 0.012
	s.Infra.Processing.WeightLossFraction = map[sim.ProductType]float64{sim.ProductDried: 0.8}
	s.Infra.Processing.ShelfLifeDays[sim.ProductDried] = 365
	s.Tariffs.FarmgatePerKg["pepper"] = sim.USD(0.5)
	s.Tariffs.ProductMultiplier[sim.ProductDried] = 4.0

	split, err := sim.NewFixedSplit("half_dried", map[sim.ProductType]float64{
		sim.ProductFresh: 0.5, sim.ProductDried: 0.5,
	})
	require.NoError(t, err)
	s.Policies.Food = split
	return s
}

func TestRun_SharedThroughputFollowsPlanOrderAndReplays(t *testing.T) {
	// GIVEN: tomato and pepper harvested the same day against a 1500 kg
	//        dried line that cannot absorb even the tomato harvest
	// THEN: tomato (first in the plan) takes the whole dried line, the
	//       rest runs fresh, and a same-seed replay agrees exactly

	run := func() (*sim.RunSummary, []sim.SaleEvent, []sim.DailyRecord) {
		mem := store.NewMemory()
		r, err := sim.NewRun(twoCropScenario(t), quarterEnvironment(), mem, 42, nil)
		require.NoError(t, err)
		summary, err := r.Run(context.Background())
		require.NoError(t, err)
		sales, err := mem.Sales(context.Background(), r.ID())
		require.NoError(t, err)
		records, err := mem.Records(context.Background(), r.ID(), "")
		require.NoError(t, err)
		return summary, sales, records
	}

	sum1, sales1, rec1 := run()
	sum2, sales2, rec2 := run()

	driedKg := 0.0
	for _, ev := range sales1 {
		if ev.Product == sim.ProductDried {
			assert.Equal(t, sim.CropName("tomato"), ev.Crop, "dried line goes to the first plan")
			driedKg += ev.Kg
		}
	}
	assert.InDelta(t, 1500*0.2*0.98, driedKg, 1e-6)

	assert.True(t, sum1.NetIncomeUSD.Equal(sum2.NetIncomeUSD),
		"replay diverged: %s vs %s", sum1.NetIncomeUSD, sum2.NetIncomeUSD)

	require.Equal(t, len(rec1), len(rec2))
	for i := range rec1 {
		a, b := &rec1[i], &rec2[i]
		assert.Equal(t, a.Farm, b.Farm)
		assert.Equal(t, a.HarvestKg, b.HarvestKg)
		assert.True(t, a.NetIncomeUSD.Equal(b.NetIncomeUSD), "income diverged on %s/%s", a.Farm, a.Date)
		assert.True(t, a.CashAfterUSD.Equal(b.CashAfterUSD))
	}
	require.Equal(t, len(sales1), len(sales2))
	for i := range sales1 {
		assert.Equal(t, sales1[i].Product, sales2[i].Product)
		assert.Equal(t, sales1[i].Crop, sales2[i].Crop)
		assert.Equal(t, sales1[i].Kg, sales2[i].Kg)
	}
}

func TestRun_FieldLaborAndInputCostsAccrueWithActiveCycles(t *testing.T) {
	// GIVEN: farm-a's tomato plan costing 0.5 h/ha-day of field labor,
	//        0.001 h/kg at harvest and 1.5 USD/ha-day of inputs
	// THEN: daily records carry 18 USD labor + 6 USD inputs through the
	//       cycle, 54 USD labor on the harvest day, nothing outside it

	s := quarterScenario()
	s.Farms[0].Crops[0].FieldLaborHoursPerHaDay = 0.5
	s.Farms[0].Crops[0].HarvestLaborHoursPerKg = 0.001
	s.Farms[0].Crops[0].InputCostPerHaDay = sim.USD(1.5)

	mem := store.NewMemory()
	run, err := sim.NewRun(s, quarterEnvironment(), mem, 42, nil)
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	require.NoError(t, err)

	records, err := mem.Records(context.Background(), run.ID(), "farm-a")
	require.NoError(t, err)
	byDate := map[string]*sim.DailyRecord{}
	for i := range records {
		byDate[records[i].Date.String()] = &records[i]
	}

	assert.True(t, byDate["2026-01-15"].FieldLaborUSD.IsZero(), "no cycle, no field labor")
	assert.True(t, byDate["2026-01-15"].InputCostUSD.IsZero())

	mid := byDate["2026-02-10"]
	assert.InDelta(t, 0.5*4*9, mid.FieldLaborUSD.InexactFloat64(), 1e-9)
	assert.True(t, mid.InputCostUSD.Equal(sim.USD(6)), "1.5 USD/ha-day over 4 ha")

	harvest := byDate["2026-02-21"]
	assert.InDelta(t, 18+4000*0.001*9, harvest.FieldLaborUSD.InexactFloat64(), 1e-6)
	assert.NoError(t, harvest.Validate())

	assert.True(t, byDate["2026-03-10"].FieldLaborUSD.IsZero(), "dormant cycle accrues nothing")
	assert.True(t, byDate["2026-03-10"].InputCostUSD.IsZero())
}

func TestRun_StorageCostChargedWhileStockIsHeld(t *testing.T) {
	// GIVEN: hold-for-price marketing with a 3-day backstop and a 0.01
	//        USD/kg-day holding cost
	// THEN: each farm pays for its own tranche on the three held evenings
	//       and nothing once the backstop sale clears the store

	s := quarterScenario()
	s.Infra.StorageCostPerKgDay = sim.USD(0.01)
	s.Policies.Market = sim.HoldForPrice{ThresholdPerKg: 2.0, MaxHoldDays: 3}

	mem := store.NewMemory()
	run, err := sim.NewRun(s, quarterEnvironment(), mem, 42, nil)
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	require.NoError(t, err)

	totalsByFarm := map[sim.FarmID]float64{}
	records, err := mem.Records(context.Background(), run.ID(), "")
	require.NoError(t, err)
	for i := range records {
		r := &records[i]
		totalsByFarm[r.Farm] += r.StorageCostUSD.InexactFloat64()
		switch r.Date.String() {
		case "2026-02-21", "2026-02-22", "2026-02-23":
			if r.Farm == "farm-a" {
				assert.InDelta(t, 3920*0.01, r.StorageCostUSD.InexactFloat64(), 1e-6,
					"held 3920 kg on %s", r.Date)
			}
		case "2026-02-24":
			assert.True(t, r.StorageCostUSD.IsZero(), "store cleared on %s", r.Date)
		}
	}
	assert.InDelta(t, 3*3920*0.01, totalsByFarm["farm-a"], 1e-6)
	assert.InDelta(t, 3*1568*0.01, totalsByFarm["farm-b"], 1e-6)

	// The backstop sale lands on day 3, tagged as a voluntary sale.
	sales, err := mem.Sales(context.Background(), run.ID())
	require.NoError(t, err)
	require.NotEmpty(t, sales)
	for _, ev := range sales {
		assert.Equal(t, "hold_for_price", ev.Tag)
		assert.Equal(t, "2026-02-24", ev.Date.String())
	}
}

func TestRun_RecordLogIsAppendOnly(t *testing.T) {
	// GIVEN: a completed run
	// WHEN: replaying an already-posted farm-day into the store
	// THEN: the append fails with ErrDuplicateRecord

	_, mem, runID := runQuarter(t, 42)

	err := mem.AppendRecord(context.Background(), runID, sim.DailyRecord{
		Farm: "farm-a", Date: sim.NewDate(2026, time.January, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrDuplicateRecord)
}

func TestRun_SalesArePersistedWithAttribution(t *testing.T) {
	_, mem, runID := runQuarter(t, 42)

	sales, err := mem.Sales(context.Background(), runID)
	require.NoError(t, err)
	require.NotEmpty(t, sales)

	// Both farms harvested on the same day; each sale attributes its full
	// revenue to the owning farm.
	total := decimal.Zero
	for _, ev := range sales {
		assert.Equal(t, "sell_at_harvest", ev.Tag)
		attributed := decimal.Zero
		for _, usd := range ev.FarmRevenue {
			attributed = attributed.Add(usd)
		}
		assert.True(t, ev.RevenueUSD.Sub(attributed).Abs().LessThan(sim.USD(0.01)),
			"attributed revenue must equal event revenue")
		total = total.Add(ev.RevenueUSD)
	}
	assert.InDelta(t, (4000*0.98+1600*0.98)*0.5, total.InexactFloat64(), 1e-6)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := sim.NewRun(quarterScenario(), quarterEnvironment(), nil, 1, nil)
	require.NoError(t, err)

	_, err = run.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRun_RejectsInvalidScenario(t *testing.T) {
	s := quarterScenario()
	s.Farms = nil

	_, err := sim.NewRun(s, quarterEnvironment(), nil, 1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}
