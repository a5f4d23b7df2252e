/*
water_test.go - Water allocation engine tests

These tests document the source-selection behaviors: the shared
constraint clipping, the mass-balance closure every policy must honor,
quota enforcement, and the two-phase proportional apportionment.
*/
package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
)

// newWaterContext returns a context with generous limits; tests tighten
// the one constraint under examination.
func newWaterContext(demand float64) *sim.WaterContext {
	return &sim.WaterContext{
		Date:             sim.NewDate(2026, 6, 15),
		DemandM3:         demand,
		GroundwaterPerM3: sim.USD(0.40),
		MunicipalPerM3:   sim.USD(0.85),
		WellMaxM3:        10000,
		TreatmentMaxM3:   10000,
		EnergyLimitKWh:   1e9,
		PumpKWhPerM3:     0.5,
		Aquifer: sim.NewAquiferState(sim.AquiferSpec{
			ExploitableM3: 1e6,
			InitialHeadM:  40,
		}),
	}
}

func TestAlwaysGroundwater_WellLimitSplitsSupply(t *testing.T) {
	// GIVEN: demand of 100 m3 against a well that can pump only 60 m3/day
	// WHEN: the groundwater-first policy allocates
	// THEN: 60 m3 comes from the well, 40 m3 from municipal, and the
	//       well limit is reported as the binding constraint

	ctx := newWaterContext(100)
	ctx.WellMaxM3 = 60

	alloc := sim.AlwaysGroundwater{}.Allocate(ctx)

	assert.Equal(t, 60.0, alloc.GroundwaterM3)
	assert.Equal(t, 40.0, alloc.MunicipalM3)
	assert.Equal(t, sim.ConstraintWell, alloc.ConstraintHit)
	assert.Equal(t, "always_groundwater", alloc.Reason)

	// Mass balance: groundwater + municipal == demand, exactly.
	assert.InDelta(t, ctx.DemandM3, alloc.GroundwaterM3+alloc.MunicipalM3, sim.MassTolerance)

	// Pumping energy follows the groundwater volume only.
	assert.InDelta(t, 60*0.5, alloc.EnergyKWh, 1e-9)
}

func TestAlwaysGroundwater_UnconstrainedTakesEverything(t *testing.T) {
	ctx := newWaterContext(200)

	alloc := sim.AlwaysGroundwater{}.Allocate(ctx)

	assert.Equal(t, 200.0, alloc.GroundwaterM3)
	assert.Equal(t, 0.0, alloc.MunicipalM3)
	assert.Equal(t, sim.ConstraintNone, alloc.ConstraintHit)
	assert.True(t, alloc.CostUSD.IsZero(), "no municipal purchase, no cash cost")
}

func TestWaterPolicies_ZeroDemandShortCircuits(t *testing.T) {
	// GIVEN: a day with no irrigation demand
	// THEN: every policy returns a zero allocation tagged zero_demand,
	//       without running its own logic

	policies := []sim.WaterPolicy{
		sim.AlwaysGroundwater{},
		sim.AlwaysMunicipal{},
		sim.CheapestSource{},
		sim.ConserveGroundwater{MaxDepletionFraction: 0.5},
		sim.QuotaEnforced{},
	}
	for _, p := range policies {
		alloc := p.Allocate(newWaterContext(0))
		assert.Equal(t, sim.ReasonZeroDemand, alloc.Reason, p.Name())
		assert.Zero(t, alloc.GroundwaterM3, p.Name())
		assert.Zero(t, alloc.MunicipalM3, p.Name())
	}
}

func TestAlwaysMunicipal_BuysEverything(t *testing.T) {
	ctx := newWaterContext(80)

	alloc := sim.AlwaysMunicipal{}.Allocate(ctx)

	assert.Equal(t, 0.0, alloc.GroundwaterM3)
	assert.Equal(t, 80.0, alloc.MunicipalM3)
	assert.True(t, alloc.CostUSD.Equal(sim.MulFloat(ctx.MunicipalPerM3, 80)))
}

func TestCheapestSource_FollowsMarginalPrice(t *testing.T) {
	// GIVEN: groundwater cheaper than municipal
	ctx := newWaterContext(50)
	ctx.GroundwaterPerM3 = sim.USD(0.40)
	ctx.MunicipalPerM3 = sim.USD(0.85)
	alloc := sim.CheapestSource{}.Allocate(ctx)
	assert.Equal(t, 50.0, alloc.GroundwaterM3, "cheap groundwater pumps first")

	// GIVEN: energy prices push groundwater above the municipal rate
	ctx = newWaterContext(50)
	ctx.GroundwaterPerM3 = sim.USD(1.20)
	ctx.MunicipalPerM3 = sim.USD(0.85)
	alloc = sim.CheapestSource{}.Allocate(ctx)
	assert.Equal(t, 0.0, alloc.GroundwaterM3, "expensive groundwater stays in the ground")
	assert.Equal(t, 50.0, alloc.MunicipalM3)
}

func TestConserveGroundwater_StopsAtDepletionThreshold(t *testing.T) {
	// GIVEN: an aquifer already depleted past the 50% threshold
	ctx := newWaterContext(40)
	ctx.Aquifer = sim.NewAquiferState(sim.AquiferSpec{ExploitableM3: 1000, InitialHeadM: 40})
	ctx.Aquifer.Extract(600) // 60% depleted

	alloc := sim.ConserveGroundwater{MaxDepletionFraction: 0.5}.Allocate(ctx)

	assert.Equal(t, 0.0, alloc.GroundwaterM3)
	assert.Equal(t, 40.0, alloc.MunicipalM3)

	// Below the threshold the policy pumps normally.
	ctx.Aquifer = sim.NewAquiferState(sim.AquiferSpec{ExploitableM3: 1000, InitialHeadM: 40})
	alloc = sim.ConserveGroundwater{MaxDepletionFraction: 0.5}.Allocate(ctx)
	assert.Equal(t, 40.0, alloc.GroundwaterM3)
}

func TestQuotaEnforced_MonthlyAndAnnualBudgets(t *testing.T) {
	// GIVEN: a monthly quota of 100 m3 with 70 m3 already pumped this month
	// WHEN: the day demands 50 m3
	// THEN: only the remaining 30 m3 budget is pumped and the quota is
	//       reported as the binding constraint

	ctx := newWaterContext(50)
	ctx.Aquifer = sim.NewAquiferState(sim.AquiferSpec{
		ExploitableM3:  1e6,
		InitialHeadM:   40,
		AnnualQuotaM3:  10000,
		MonthlyQuotaM3: 100,
	})
	ctx.Aquifer.Extract(70)

	alloc := sim.QuotaEnforced{}.Allocate(ctx)

	assert.Equal(t, 30.0, alloc.GroundwaterM3)
	assert.Equal(t, 20.0, alloc.MunicipalM3)
	assert.Equal(t, sim.ConstraintQuota, alloc.ConstraintHit)

	// An exhausted budget never goes negative.
	ctx.Aquifer.Extract(50)
	alloc = sim.QuotaEnforced{}.Allocate(ctx)
	assert.Equal(t, 0.0, alloc.GroundwaterM3)
	assert.Equal(t, 50.0, alloc.MunicipalM3)
}

func TestConstraintOrder_AquiferStockBinds(t *testing.T) {
	// GIVEN: only 25 m3 left in the aquifer
	ctx := newWaterContext(100)
	ctx.Aquifer = sim.NewAquiferState(sim.AquiferSpec{ExploitableM3: 25, InitialHeadM: 40})

	alloc := sim.AlwaysGroundwater{}.Allocate(ctx)

	assert.Equal(t, 25.0, alloc.GroundwaterM3)
	assert.Equal(t, 75.0, alloc.MunicipalM3)
	assert.Equal(t, sim.ConstraintAquifer, alloc.ConstraintHit)
}

func TestConstraintOrder_EnergyBudgetBinds(t *testing.T) {
	// GIVEN: 20 kWh of energy budget at 0.5 kWh/m3 intensity
	ctx := newWaterContext(100)
	ctx.EnergyLimitKWh = 20

	alloc := sim.AlwaysGroundwater{}.Allocate(ctx)

	assert.InDelta(t, 40.0, alloc.GroundwaterM3, 1e-9)
	assert.Equal(t, sim.ConstraintEnergy, alloc.ConstraintHit)
}

// =============================================================================
// AQUIFER STATE
// =============================================================================

func TestAquifer_ExtractionAndDrawdownFeedback(t *testing.T) {
	a := sim.NewAquiferState(sim.AquiferSpec{
		ExploitableM3:         1000,
		InitialHeadM:          40,
		HeadRisePerDepletionM: 30,
	})

	a.Extract(250)
	assert.Equal(t, 750.0, a.RemainingM3)
	assert.InDelta(t, 0.25, a.DepletionFraction(), 1e-9)
	assert.Equal(t, 40.0, a.HeadM, "head only moves at the yearly boundary")

	a.ApplyDrawdown()
	assert.InDelta(t, 40+30*0.25, a.HeadM, 1e-9)

	// Counters reset independently of stock.
	a.ResetMonth()
	a.ResetYear()
	assert.Zero(t, a.MonthExtractedM3)
	assert.Zero(t, a.YearExtractedM3)
	assert.Equal(t, 750.0, a.RemainingM3)
}

func TestAquifer_RemainingNeverNegative(t *testing.T) {
	a := sim.NewAquiferState(sim.AquiferSpec{ExploitableM3: 100, InitialHeadM: 40})
	a.Extract(150)
	assert.Equal(t, 0.0, a.RemainingM3)
	assert.Equal(t, 1.0, a.DepletionFraction())
}

// =============================================================================
// TWO-PHASE APPORTIONMENT
// =============================================================================

func TestApportionProportional_SplitsByDemand(t *testing.T) {
	// GIVEN: two farms demanding 60 and 40 m3, supply of 50 m3
	// THEN: each farm receives its demand share of the supply

	demands := map[sim.FarmID]float64{"farm-a": 60, "farm-b": 40}
	out := sim.ApportionProportional(demands, 50)

	require.Len(t, out, 2)
	assert.InDelta(t, 30.0, out["farm-a"], 1e-9)
	assert.InDelta(t, 20.0, out["farm-b"], 1e-9)
}

func TestApportionProportional_ZeroCases(t *testing.T) {
	demands := map[sim.FarmID]float64{"farm-a": 60, "farm-b": 0}

	// Zero supply: every farm gets zero, no division blowup.
	out := sim.ApportionProportional(demands, 0)
	assert.Zero(t, out["farm-a"])
	assert.Zero(t, out["farm-b"])

	// A zero-demand farm never receives water.
	out = sim.ApportionProportional(demands, 30)
	assert.InDelta(t, 30.0, out["farm-a"], 1e-9)
	assert.Zero(t, out["farm-b"])
}
