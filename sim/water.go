/*
water.go - Water allocation engine and source policies

PURPOSE:
  Decides, for one day's aggregate agricultural demand, how much water comes
  from community groundwater versus the municipal connection. Policies are
  interchangeable strategies over a shared context; every policy funnels its
  raw groundwater request through the same constraint function so that well
  capacity, treatment throughput, available energy, quota and aquifer stock
  are enforced identically regardless of strategy.

MASS BALANCE INVARIANT:
  groundwater_m3 + municipal_m3 == demand_m3, exactly, for every policy.
  Municipal volume is always demand minus constrained groundwater and can
  never go negative.

TWO-PHASE ALLOCATION:
  The orchestrator aggregates all farm demands first, allocates once at
  community level, then apportions the result proportionally to each farm's
  demand (ApportionProportional). Aquifer state is written exactly once per
  day, after allocation - never per farm.

SEE ALSO:
  - orchestrator.go: demand aggregation and the single aquifer write
  - energy.go: pumping/treatment energy enters the day's dispatch demand
*/
package sim

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AQUIFER STATE
// =============================================================================

// AquiferSpec is the immutable configuration of the shared groundwater
// resource.
type AquiferSpec struct {
	ExploitableM3         float64 // total exploitable stock at scenario start
	InitialHeadM          float64 // pumping head at zero depletion
	HeadRisePerDepletionM float64 // added head per unit depletion fraction, applied yearly
	AnnualQuotaM3         float64 // 0 = no quota
	MonthlyQuotaM3        float64 // 0 = no quota
}

// AquiferState is the mutable community groundwater resource. Remaining
// volume never goes negative; pumping head rises monotonically with the
// depletion fraction via the yearly drawdown feedback.
type AquiferState struct {
	Spec             AquiferSpec
	RemainingM3      float64
	HeadM            float64
	MonthExtractedM3 float64
	YearExtractedM3  float64
}

func NewAquiferState(spec AquiferSpec) *AquiferState {
	return &AquiferState{Spec: spec, RemainingM3: spec.ExploitableM3, HeadM: spec.InitialHeadM}
}

// Extract draws m3 from the aquifer and updates cumulative counters.
// Callers must have clipped the volume to RemainingM3 already.
func (a *AquiferState) Extract(m3 float64) {
	a.RemainingM3 -= m3
	if a.RemainingM3 < 0 {
		a.RemainingM3 = 0
	}
	a.MonthExtractedM3 += m3
	a.YearExtractedM3 += m3
}

// DepletionFraction is 0 at full stock and 1 when exhausted.
func (a *AquiferState) DepletionFraction() float64 {
	if a.Spec.ExploitableM3 <= 0 {
		return 1
	}
	return 1 - a.RemainingM3/a.Spec.ExploitableM3
}

// ApplyDrawdown raises the pumping head from the year's depletion. Called
// once at each year boundary.
func (a *AquiferState) ApplyDrawdown() {
	a.HeadM = a.Spec.InitialHeadM + a.Spec.HeadRisePerDepletionM*a.DepletionFraction()
}

func (a *AquiferState) ResetMonth() { a.MonthExtractedM3 = 0 }
func (a *AquiferState) ResetYear()  { a.YearExtractedM3 = 0 }

// =============================================================================
// ALLOCATION CONTEXT AND RESULT
// =============================================================================

// Constraint tags reported by the shared constraint function.
const (
	ConstraintNone      = ""
	ConstraintWell      = "well_limit"
	ConstraintTreatment = "treatment_limit"
	ConstraintEnergy    = "energy_limit"
	ConstraintAquifer   = "aquifer_exhausted"
	ConstraintQuota     = "quota_limit"
)

// WaterContext is everything a policy may read when deciding the day's
// source split. Policies never mutate it.
type WaterContext struct {
	Date     SimDate
	DemandM3 float64

	// Marginal prices for the comparison policies.
	GroundwaterPerM3 decimal.Decimal // energy-derived estimate
	MunicipalPerM3   decimal.Decimal

	// Physical constraints.
	WellMaxM3      float64
	TreatmentMaxM3 float64
	EnergyLimitKWh float64 // energy budget for pumping+treatment today
	PumpKWhPerM3   float64 // combined pumping + treatment intensity

	Aquifer *AquiferState
}

// WaterAllocation is the policy decision after constraint clipping.
type WaterAllocation struct {
	GroundwaterM3 float64
	MunicipalM3   float64
	EnergyKWh     float64
	CostUSD       decimal.Decimal // municipal purchase cost (cash); energy cost flows through dispatch
	ConstraintHit string
	Reason        string // policy name, or ReasonZeroDemand
}

// WaterPolicy is one interchangeable source-selection strategy.
type WaterPolicy interface {
	Name() string
	Allocate(ctx *WaterContext) WaterAllocation
}

// =============================================================================
// SHARED CONSTRAINT FUNCTION
// =============================================================================

// constrainGroundwater clips a raw groundwater request to the binding
// physical limit and reports which constraint bound the result. Checked in
// a fixed order so the reported tag is deterministic when limits tie.
func constrainGroundwater(requested float64, ctx *WaterContext) (float64, string) {
	if requested <= 0 {
		return 0, ConstraintNone
	}
	allowed := requested
	hit := ConstraintNone

	if ctx.WellMaxM3 >= 0 && allowed > ctx.WellMaxM3 {
		allowed = ctx.WellMaxM3
		hit = ConstraintWell
	}
	if ctx.TreatmentMaxM3 >= 0 && allowed > ctx.TreatmentMaxM3 {
		allowed = ctx.TreatmentMaxM3
		hit = ConstraintTreatment
	}
	if ctx.PumpKWhPerM3 > 0 {
		energyLimited := ctx.EnergyLimitKWh / ctx.PumpKWhPerM3
		if allowed > energyLimited {
			allowed = energyLimited
			hit = ConstraintEnergy
		}
	}
	if ctx.Aquifer != nil && allowed > ctx.Aquifer.RemainingM3 {
		allowed = ctx.Aquifer.RemainingM3
		hit = ConstraintAquifer
	}
	if allowed < 0 {
		allowed = 0
	}
	return allowed, hit
}

// finalize closes the mass balance: municipal picks up exactly what
// groundwater could not supply.
func finalize(ctx *WaterContext, groundwater float64, hit, reason string) WaterAllocation {
	municipal := ctx.DemandM3 - groundwater
	if municipal < 0 {
		municipal = 0
		groundwater = ctx.DemandM3
	}
	return WaterAllocation{
		GroundwaterM3: groundwater,
		MunicipalM3:   municipal,
		EnergyKWh:     groundwater * ctx.PumpKWhPerM3,
		CostUSD:       MulFloat(ctx.MunicipalPerM3, municipal),
		ConstraintHit: hit,
		Reason:        reason,
	}
}

// zeroAllocation is the shared zero-demand short circuit: no policy-specific
// computation runs, the result is tagged explicitly.
func zeroAllocation() WaterAllocation {
	return WaterAllocation{CostUSD: decimal.Zero, Reason: ReasonZeroDemand}
}

// =============================================================================
// POLICIES
// =============================================================================

// AlwaysGroundwater requests the full demand from the well; municipal only
// covers the constrained remainder.
type AlwaysGroundwater struct{}

func (AlwaysGroundwater) Name() string { return "always_groundwater" }

func (p AlwaysGroundwater) Allocate(ctx *WaterContext) WaterAllocation {
	if ctx.DemandM3 <= 0 {
		return zeroAllocation()
	}
	gw, hit := constrainGroundwater(ctx.DemandM3, ctx)
	return finalize(ctx, gw, hit, p.Name())
}

// AlwaysMunicipal buys everything from the municipal connection.
type AlwaysMunicipal struct{}

func (AlwaysMunicipal) Name() string { return "always_municipal" }

func (p AlwaysMunicipal) Allocate(ctx *WaterContext) WaterAllocation {
	if ctx.DemandM3 <= 0 {
		return zeroAllocation()
	}
	return finalize(ctx, 0, ConstraintNone, p.Name())
}

// CheapestSource compares the marginal groundwater cost (energy-derived)
// with the municipal rate and requests the cheaper source first.
type CheapestSource struct{}

func (CheapestSource) Name() string { return "cheapest_source" }

func (p CheapestSource) Allocate(ctx *WaterContext) WaterAllocation {
	if ctx.DemandM3 <= 0 {
		return zeroAllocation()
	}
	if ctx.GroundwaterPerM3.GreaterThan(ctx.MunicipalPerM3) {
		return finalize(ctx, 0, ConstraintNone, p.Name())
	}
	gw, hit := constrainGroundwater(ctx.DemandM3, ctx)
	return finalize(ctx, gw, hit, p.Name())
}

// ConserveGroundwater pumps only while the aquifer is above a depletion
// threshold; past it, everything shifts to municipal supply.
type ConserveGroundwater struct {
	MaxDepletionFraction float64 // e.g. 0.5: stop pumping past half the stock
}

func (ConserveGroundwater) Name() string { return "conserve_groundwater" }

func (p ConserveGroundwater) Allocate(ctx *WaterContext) WaterAllocation {
	if ctx.DemandM3 <= 0 {
		return zeroAllocation()
	}
	if ctx.Aquifer != nil && ctx.Aquifer.DepletionFraction() >= p.MaxDepletionFraction {
		return finalize(ctx, 0, ConstraintNone, p.Name())
	}
	gw, hit := constrainGroundwater(ctx.DemandM3, ctx)
	return finalize(ctx, gw, hit, p.Name())
}

// QuotaEnforced pumps groundwater up to hard annual and monthly ceilings.
// The effective limit is the minimum of the two remaining budgets, each
// floored at zero.
type QuotaEnforced struct{}

func (QuotaEnforced) Name() string { return "quota_enforced" }

func (p QuotaEnforced) Allocate(ctx *WaterContext) WaterAllocation {
	if ctx.DemandM3 <= 0 {
		return zeroAllocation()
	}
	request := ctx.DemandM3
	hitQuota := false
	if ctx.Aquifer != nil {
		remaining := request
		if q := ctx.Aquifer.Spec.AnnualQuotaM3; q > 0 {
			budget := q - ctx.Aquifer.YearExtractedM3
			if budget < 0 {
				budget = 0
			}
			if budget < remaining {
				remaining = budget
			}
		}
		if q := ctx.Aquifer.Spec.MonthlyQuotaM3; q > 0 {
			budget := q - ctx.Aquifer.MonthExtractedM3
			if budget < 0 {
				budget = 0
			}
			if budget < remaining {
				remaining = budget
			}
		}
		if remaining < request {
			request = remaining
			hitQuota = true
		}
	}
	gw, hit := constrainGroundwater(request, ctx)
	if hitQuota && gw == request {
		hit = ConstraintQuota
	}
	return finalize(ctx, gw, hit, p.Name())
}

// =============================================================================
// TWO-PHASE APPORTIONMENT
// =============================================================================

// ApportionProportional splits a community-level supply across farms in
// proportion to their demands. Pure function: compute all demands first,
// then call this once - never allocate inside a per-farm loop, which would
// bias the result by farm ordering.
func ApportionProportional(demands map[FarmID]float64, supply float64) map[FarmID]float64 {
	out := make(map[FarmID]float64, len(demands))
	total := 0.0
	for _, d := range demands {
		if d > 0 {
			total += d
		}
	}
	if total <= 0 || supply <= 0 {
		for id := range demands {
			out[id] = 0
		}
		return out
	}
	for id, d := range demands {
		if d <= 0 {
			out[id] = 0
			continue
		}
		out[id] = supply * d / total
	}
	return out
}
