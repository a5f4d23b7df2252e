/*
montecarlo_test.go - Perturbed batch tests

The batch contract: deterministic replay regardless of worker count,
zero sigmas reproducing the base scenario, ordered statistics, and
config rejection.
*/
package sim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
)

func TestMonteCarlo_BatchReplaysIdentically(t *testing.T) {
	// GIVEN: the same scenario, seed and sigmas
	// WHEN: two batches run with different worker counts
	// THEN: the statistics agree exactly - determinism is independent of
	//       scheduling

	cfg := sim.MonteCarloConfig{
		Runs: 4, BaseSeed: 7,
		YieldSigma: 0.10, PriceSigma: 0.05, SupplySigma: 0.10,
	}

	first, err := sim.RunMonteCarlo(context.Background(),
		quarterScenario(), quarterEnvironment(), nil, cfg, nil)
	require.NoError(t, err)

	cfg.Workers = 2
	second, err := sim.RunMonteCarlo(context.Background(),
		quarterScenario(), quarterEnvironment(), nil, cfg, nil)
	require.NoError(t, err)

	assert.True(t, first.MeanNetIncomeUSD.Equal(second.MeanNetIncomeUSD))
	assert.True(t, first.MinNetIncomeUSD.Equal(second.MinNetIncomeUSD))
	assert.True(t, first.MaxNetIncomeUSD.Equal(second.MaxNetIncomeUSD))
	for i := range first.Summaries {
		assert.True(t, first.Summaries[i].NetIncomeUSD.Equal(second.Summaries[i].NetIncomeUSD),
			"run %d diverged", i)
	}
}

func TestMonteCarlo_ManyCropPricesReplayIdentically(t *testing.T) {
	// GIVEN: a price book with eight crops and heavy price noise
	// WHEN: the same one-run batch executes twice
	// THEN: outcomes agree exactly - every crop pairs with the same draw
	//       no matter how the price map happens to iterate

	scen := func() *sim.Scenario {
		s := quarterScenario()
		for _, crop := range []sim.CropName{
			"pepper", "cucumber", "eggplant", "zucchini", "melon", "okra", "squash",
		} {
			s.Tariffs.FarmgatePerKg[crop] = sim.USD(0.4)
		}
		return s
	}
	cfg := sim.MonteCarloConfig{Runs: 1, BaseSeed: 7, PriceSigma: 0.5}

	first, err := sim.RunMonteCarlo(context.Background(),
		scen(), quarterEnvironment(), nil, cfg, nil)
	require.NoError(t, err)
	second, err := sim.RunMonteCarlo(context.Background(),
		scen(), quarterEnvironment(), nil, cfg, nil)
	require.NoError(t, err)

	assert.True(t, first.MeanNetIncomeUSD.Equal(second.MeanNetIncomeUSD),
		"replay diverged: %s vs %s", first.MeanNetIncomeUSD, second.MeanNetIncomeUSD)
}

func TestMonteCarlo_ZeroSigmasReproduceBaseRun(t *testing.T) {
	// GIVEN: sigmas of zero
	// THEN: a one-run batch produces exactly the base scenario's outcome

	base, err := sim.NewRun(quarterScenario(), quarterEnvironment(), nil, 7, nil)
	require.NoError(t, err)
	baseSummary, err := base.Run(context.Background())
	require.NoError(t, err)

	result, err := sim.RunMonteCarlo(context.Background(),
		quarterScenario(), quarterEnvironment(), nil,
		sim.MonteCarloConfig{Runs: 1, BaseSeed: 7}, nil)
	require.NoError(t, err)

	assert.True(t, result.MeanNetIncomeUSD.Equal(baseSummary.NetIncomeUSD),
		"batch %s != base %s", result.MeanNetIncomeUSD, baseSummary.NetIncomeUSD)
}

func TestMonteCarlo_StatisticsAreOrdered(t *testing.T) {
	cfg := sim.MonteCarloConfig{
		Runs: 8, BaseSeed: 11, Workers: 4,
		YieldSigma: 0.15, PriceSigma: 0.10, SupplySigma: 0.10,
	}

	result, err := sim.RunMonteCarlo(context.Background(),
		quarterScenario(), quarterEnvironment(), nil, cfg, nil)
	require.NoError(t, err)
	require.Len(t, result.Summaries, 8)

	assert.True(t, result.MinNetIncomeUSD.LessThanOrEqual(result.P10NetIncomeUSD))
	assert.True(t, result.P10NetIncomeUSD.LessThanOrEqual(result.P50NetIncomeUSD))
	assert.True(t, result.P50NetIncomeUSD.LessThanOrEqual(result.P90NetIncomeUSD))
	assert.True(t, result.P90NetIncomeUSD.LessThanOrEqual(result.MaxNetIncomeUSD))
	assert.True(t, result.MinNetIncomeUSD.LessThanOrEqual(result.MeanNetIncomeUSD))
	assert.True(t, result.MeanNetIncomeUSD.LessThanOrEqual(result.MaxNetIncomeUSD))
}

func TestMonteCarlo_PerturbationNeverMutatesTheOriginal(t *testing.T) {
	scenario := quarterScenario()
	baseYield := scenario.Farms[0].Crops[0].YieldKgPerHa
	basePrice := scenario.Tariffs.FarmgatePerKg["tomato"]

	_, err := sim.RunMonteCarlo(context.Background(),
		scenario, quarterEnvironment(), nil,
		sim.MonteCarloConfig{Runs: 4, BaseSeed: 3, YieldSigma: 0.2, PriceSigma: 0.2}, nil)
	require.NoError(t, err)

	assert.Equal(t, baseYield, scenario.Farms[0].Crops[0].YieldKgPerHa)
	assert.True(t, basePrice.Equal(scenario.Tariffs.FarmgatePerKg["tomato"]))
}

func TestMonteCarlo_RejectsNonPositiveRunCount(t *testing.T) {
	_, err := sim.RunMonteCarlo(context.Background(),
		quarterScenario(), quarterEnvironment(), nil,
		sim.MonteCarloConfig{Runs: 0}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestPerturbedEnvironment_ScalesOnlySupplyAndDiesel(t *testing.T) {
	base := quarterEnvironment()
	env := &sim.PerturbedEnvironment{Base: base, PVMult: 1.2, WindMult: 0.8, DieselMult: 1.1}
	date := sim.NewDate(2026, 2, 5)
	planted := sim.NewDate(2026, 2, 1)

	assert.InDelta(t, base.PVOutput(date)*1.2, env.PVOutput(date), 1e-9)
	assert.InDelta(t, base.WindOutput(date)*0.8, env.WindOutput(date), 1e-9)
	assert.InDelta(t, base.DieselPrice(date).InexactFloat64()*1.1,
		env.DieselPrice(date).InexactFloat64(), 1e-9)

	// Irrigation demand and treatment energy pass through untouched.
	assert.Equal(t, base.IrrigationDemand("tomato", planted, date),
		env.IrrigationDemand("tomato", planted, date))
	assert.Equal(t, base.TreatmentEnergy(2000), env.TreatmentEnergy(2000))
}
