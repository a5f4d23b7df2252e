/*
montecarlo.go - Parallel batch runs with perturbed inputs

PURPOSE:
  Runs N independent copies of a scenario in parallel, each with its own
  deterministically seeded perturbation of yields, product prices and
  renewable output, and folds the summaries into batch statistics.

DETERMINISM:
  Run i always receives seed BaseSeed+i. Each run owns a deep-cloned
  scenario and its own rand source; no random state is shared, so the
  batch replays identically regardless of worker count or completion
  order.

PERTURBATION MODEL:
  Multiplicative gaussian noise, clamped to stay positive:
    yield      x (1 + YieldSigma  * N(0,1))   per crop plan
    farmgate   x (1 + PriceSigma  * N(0,1))   per crop
    pv / wind  x (1 + SupplySigma * N(0,1))   per run
    diesel     x (1 + PriceSigma  * N(0,1))   per run
  Zero sigmas reproduce the base scenario exactly.
*/
package sim

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// MonteCarloConfig parameterizes one batch.
type MonteCarloConfig struct {
	Runs     int
	BaseSeed int64
	Workers  int // 0 = one goroutine per run

	YieldSigma  float64
	PriceSigma  float64
	SupplySigma float64

	// Per-day balance assertions stay on by default; large batches may
	// trade them for speed.
	DisableBalanceChecks bool
}

// MonteCarloResult is the batch outcome: every summary plus net-income
// statistics across runs.
type MonteCarloResult struct {
	Runs      int
	Summaries []*RunSummary

	MeanNetIncomeUSD decimal.Decimal
	MinNetIncomeUSD  decimal.Decimal
	MaxNetIncomeUSD  decimal.Decimal
	P10NetIncomeUSD  decimal.Decimal
	P50NetIncomeUSD  decimal.Decimal
	P90NetIncomeUSD  decimal.Decimal
}

// =============================================================================
// PERTURBED ENVIRONMENT
// =============================================================================

// PerturbedEnvironment wraps a base Environment with per-run multipliers.
// Weather, irrigation demand and treatment energy pass through untouched.
type PerturbedEnvironment struct {
	Base Environment

	PVMult     float64
	WindMult   float64
	DieselMult float64
}

func (e *PerturbedEnvironment) Weather(date SimDate) Weather { return e.Base.Weather(date) }

func (e *PerturbedEnvironment) IrrigationDemand(crop CropName, planting, date SimDate) float64 {
	return e.Base.IrrigationDemand(crop, planting, date)
}

func (e *PerturbedEnvironment) PVOutput(date SimDate) float64 {
	return e.Base.PVOutput(date) * e.PVMult
}

func (e *PerturbedEnvironment) WindOutput(date SimDate) float64 {
	return e.Base.WindOutput(date) * e.WindMult
}

func (e *PerturbedEnvironment) TreatmentEnergy(salinityPPM float64) float64 {
	return e.Base.TreatmentEnergy(salinityPPM)
}

func (e *PerturbedEnvironment) DieselPrice(date SimDate) decimal.Decimal {
	return MulFloat(e.Base.DieselPrice(date), e.DieselMult)
}

// perturbedMult draws 1 + sigma*N(0,1), floored just above zero so a wild
// draw can never flip a quantity's sign.
func perturbedMult(rng *rand.Rand, sigma float64) float64 {
	if sigma <= 0 {
		return 1
	}
	m := 1 + sigma*rng.NormFloat64()
	if m < 0.01 {
		m = 0.01
	}
	return m
}

// perturbScenario applies per-crop yield and price noise to a cloned
// scenario. The clone is the caller's; this never touches the original.
// Crops are walked in sorted order so each crop always pairs with the
// same draw; ranging the map here would tie the pairing to randomized
// map iteration and break seed replay.
func perturbScenario(s *Scenario, rng *rand.Rand, cfg MonteCarloConfig) {
	for i := range s.Farms {
		for j := range s.Farms[i].Crops {
			s.Farms[i].Crops[j].YieldKgPerHa *= perturbedMult(rng, cfg.YieldSigma)
		}
	}
	crops := make([]CropName, 0, len(s.Tariffs.FarmgatePerKg))
	for crop := range s.Tariffs.FarmgatePerKg {
		crops = append(crops, crop)
	}
	sort.Slice(crops, func(i, j int) bool { return crops[i] < crops[j] })
	for _, crop := range crops {
		s.Tariffs.FarmgatePerKg[crop] = MulFloat(s.Tariffs.FarmgatePerKg[crop], perturbedMult(rng, cfg.PriceSigma))
	}
}

// =============================================================================
// BATCH EXECUTION
// =============================================================================

// RunMonteCarlo executes cfg.Runs perturbed copies of the scenario in
// parallel. The first failing run cancels the rest. Summaries come back
// ordered by run index, independent of completion order.
func RunMonteCarlo(
	ctx context.Context,
	scenario *Scenario,
	env Environment,
	store RecordStore,
	cfg MonteCarloConfig,
	logger *slog.Logger,
) (*MonteCarloResult, error) {
	if cfg.Runs <= 0 {
		return nil, &ConfigError{Field: "monte carlo runs", Reason: "must be positive"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	summaries := make([]*RunSummary, cfg.Runs)
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	for i := 0; i < cfg.Runs; i++ {
		i := i
		g.Go(func() error {
			seed := cfg.BaseSeed + int64(i)
			rng := rand.New(rand.NewSource(seed))

			s := scenario.Clone()
			if cfg.DisableBalanceChecks {
				s.BalanceChecks = false
			}
			perturbScenario(s, rng, cfg)

			runEnv := &PerturbedEnvironment{
				Base:       env,
				PVMult:     perturbedMult(rng, cfg.SupplySigma),
				WindMult:   perturbedMult(rng, cfg.SupplySigma),
				DieselMult: perturbedMult(rng, cfg.PriceSigma),
			}

			run, err := NewRun(s, runEnv, store, seed, logger)
			if err != nil {
				return err
			}
			summary, err := run.Run(ctx)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &MonteCarloResult{Runs: cfg.Runs, Summaries: summaries}
	res.fold()
	logger.Info("monte carlo batch complete", "runs", cfg.Runs,
		"mean_net_income", res.MeanNetIncomeUSD.StringFixed(2))
	return res, nil
}

// fold computes net-income statistics across the batch.
func (r *MonteCarloResult) fold() {
	incomes := make([]decimal.Decimal, len(r.Summaries))
	sum := decimal.Zero
	for i, s := range r.Summaries {
		incomes[i] = s.NetIncomeUSD
		sum = sum.Add(s.NetIncomeUSD)
	}
	sort.Slice(incomes, func(i, j int) bool { return incomes[i].LessThan(incomes[j]) })

	n := len(incomes)
	r.MeanNetIncomeUSD = sum.Div(decimal.NewFromInt(int64(n)))
	r.MinNetIncomeUSD = incomes[0]
	r.MaxNetIncomeUSD = incomes[n-1]
	r.P10NetIncomeUSD = percentile(incomes, 0.10)
	r.P50NetIncomeUSD = percentile(incomes, 0.50)
	r.P90NetIncomeUSD = percentile(incomes, 0.90)
}

// percentile picks the nearest-rank value ceil(p*n) from a sorted slice.
func percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
