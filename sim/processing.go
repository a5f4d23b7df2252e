/*
processing.go - Food processing pipeline

PURPOSE:
  Converts a day's harvest into pathway outputs (fresh, packaged, canned,
  dried) under shared daily throughput limits, and creates the storage
  tranches that carry the output into inventory.

STEP ORDER (per harvest):
  1. policy returns target fractions; they must be non-negative and sum to
     1.0 - a violation is a construction-time error, never silently
     normalized
  2. clip each pathway to REMAINING daily throughput (kg/day); excess
     redirects to fresh, which has no throughput limit. The remaining
     counter is shared across every harvest of the day, so two crops can
     never jointly exceed a pathway's throughput
  3. apply the pathway weight-loss fraction -> sellable output
  4. apply the post-harvest waste fraction - a separate metric from weight
     loss (one is an intended transformation, the other a loss to minimize)
  5. compute processing energy and labor cost from pathway INPUT kg; both
     are money/energy deductions, never physical ones
  6. cut one storage tranche per pathway with expiry = harvest date +
     shelf life, carrying the contributing farms' ownership shares

ZERO-YIELD:
  A zero harvest short-circuits to a 100%-fresh, zero-everything result
  tagged ReasonZeroHarvest.
*/
package sim

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROCESSING ALLOCATION - Validated pathway fractions
// =============================================================================

// ProcessingAllocation is a policy's target split across pathways.
// Construct only via NewProcessingAllocation so the fraction invariant
// holds everywhere downstream.
type ProcessingAllocation struct {
	Fractions map[ProductType]float64
	Reason    string // policy name or ReasonZeroHarvest
}

// NewProcessingAllocation validates that fractions are individually
// non-negative and sum to 1.0 within FractionTolerance.
func NewProcessingAllocation(fractions map[ProductType]float64, reason string) (ProcessingAllocation, error) {
	sum := 0.0
	for product, f := range fractions {
		if f < 0 {
			return ProcessingAllocation{}, &ConfigError{
				Field:  fmt.Sprintf("processing fraction %s", product),
				Reason: fmt.Sprintf("negative fraction %.4f", f),
			}
		}
		sum += f
	}
	if sum < 1-FractionTolerance || sum > 1+FractionTolerance {
		return ProcessingAllocation{}, &ConfigError{
			Field:  "processing fractions",
			Reason: fmt.Sprintf("sum %.4f != 1.0", sum),
		}
	}
	return ProcessingAllocation{Fractions: fractions, Reason: reason}, nil
}

// ZeroHarvestAllocation is the explicit zero-yield short circuit: all
// fresh, reason-tagged.
func ZeroHarvestAllocation() ProcessingAllocation {
	return ProcessingAllocation{
		Fractions: map[ProductType]float64{ProductFresh: 1},
		Reason:    ReasonZeroHarvest,
	}
}

// FoodPolicy decides the target pathway split for a crop on a date.
type FoodPolicy interface {
	Name() string
	Allocate(crop CropName, date SimDate) (ProcessingAllocation, error)
}

// =============================================================================
// PROCESSING SPEC AND DAILY CAPACITY
// =============================================================================

// ProcessingSpec is the immutable equipment configuration. Fresh never
// appears in ThroughputKgPerDay: it has no throughput limit.
type ProcessingSpec struct {
	ThroughputKgPerDay map[ProductType]float64
	EnergyKWhPerKg     map[ProductType]float64
	LaborHoursPerKg    map[ProductType]float64
	WeightLossFraction map[ProductType]float64
	ShelfLifeDays      map[ProductType]int
	WasteFraction      float64 // post-harvest spoilage/damage
	WagePerHour        decimal.Decimal
}

// DailyCapacity is the running remaining-throughput counter, shared across
// every harvest processed on one day. Reset each morning, never per
// harvest.
type DailyCapacity struct {
	RemainingKg map[ProductType]float64
}

func NewDailyCapacity(spec ProcessingSpec) *DailyCapacity {
	remaining := make(map[ProductType]float64, len(spec.ThroughputKgPerDay))
	for product, kg := range spec.ThroughputKgPerDay {
		remaining[product] = kg
	}
	return &DailyCapacity{RemainingKg: remaining}
}

// take consumes up to kg from the pathway's remaining throughput and
// returns what was granted. Pathways without a limit grant everything.
func (c *DailyCapacity) take(product ProductType, kg float64) float64 {
	remaining, limited := c.RemainingKg[product]
	if !limited {
		return kg
	}
	granted := minf(kg, remaining)
	c.RemainingKg[product] = remaining - granted
	return granted
}

// =============================================================================
// PIPELINE
// =============================================================================

// ProcessingResult is the outcome of processing one harvest.
type ProcessingResult struct {
	Crop    CropName
	InputKg float64

	PathwayInputKg map[ProductType]float64 // post-clip, pre-weight-loss
	OutputKg       map[ProductType]float64 // sellable, post weight loss and waste

	WeightLossKg float64
	WasteKg      float64

	EnergyKWh    float64
	LaborCostUSD decimal.Decimal

	Tranches []*StorageTranche
	Reason   string
}

// FoodProcessingPipeline applies the step order above.
type FoodProcessingPipeline struct {
	Spec ProcessingSpec
}

func NewFoodProcessingPipeline(spec ProcessingSpec) *FoodProcessingPipeline {
	return &FoodProcessingPipeline{Spec: spec}
}

// Process converts one harvest. 'capacity' is the day's shared counter;
// 'shares' are the ownership fractions stamped onto every tranche cut.
func (p *FoodProcessingPipeline) Process(
	crop CropName,
	date SimDate,
	harvestKg float64,
	shares map[FarmID]float64,
	policy FoodPolicy,
	capacity *DailyCapacity,
) (ProcessingResult, error) {
	res := ProcessingResult{
		Crop:           crop,
		InputKg:        harvestKg,
		PathwayInputKg: make(map[ProductType]float64),
		OutputKg:       make(map[ProductType]float64),
		LaborCostUSD:   decimal.Zero,
	}

	var alloc ProcessingAllocation
	if harvestKg <= 0 {
		alloc = ZeroHarvestAllocation()
		res.Reason = alloc.Reason
		return res, nil
	}

	alloc, err := policy.Allocate(crop, date)
	if err != nil {
		return ProcessingResult{}, err
	}
	res.Reason = alloc.Reason

	// 2. Clip against shared remaining throughput; excess falls to fresh.
	redirectedToFresh := 0.0
	for _, product := range ProductTypes {
		if product == ProductFresh {
			continue
		}
		want := harvestKg * alloc.Fractions[product]
		if want <= 0 {
			continue
		}
		granted := capacity.take(product, want)
		res.PathwayInputKg[product] = granted
		redirectedToFresh += want - granted
	}
	res.PathwayInputKg[ProductFresh] = harvestKg*alloc.Fractions[ProductFresh] + redirectedToFresh

	// 3-5. Weight loss, waste, energy and labor per pathway.
	laborHours := 0.0
	for _, product := range ProductTypes {
		input := res.PathwayInputKg[product]
		if input <= 0 {
			continue
		}
		loss := input * p.Spec.WeightLossFraction[product]
		sellable := input - loss
		waste := sellable * p.Spec.WasteFraction
		sellable -= waste

		res.WeightLossKg += loss
		res.WasteKg += waste
		res.OutputKg[product] = sellable

		res.EnergyKWh += input * p.Spec.EnergyKWhPerKg[product]
		laborHours += input * p.Spec.LaborHoursPerKg[product]

		// 6. One tranche per pathway with output.
		if sellable > 0 {
			res.Tranches = append(res.Tranches, NewStorageTranche(
				product, crop, sellable,
				date, date.AddDays(p.Spec.ShelfLifeDays[product]),
				shares,
			))
		}
	}
	res.LaborCostUSD = MulFloat(p.Spec.WagePerHour, laborHours)

	return res, nil
}

// =============================================================================
// FOOD POLICIES
// =============================================================================

// AllFresh sends the whole harvest to the fresh pathway.
type AllFresh struct{}

func (AllFresh) Name() string { return "all_fresh" }

func (p AllFresh) Allocate(crop CropName, date SimDate) (ProcessingAllocation, error) {
	return NewProcessingAllocation(map[ProductType]float64{ProductFresh: 1}, p.Name())
}

// FixedSplit applies the same configured fractions to every harvest.
// Fractions are validated once at construction.
type FixedSplit struct {
	name      string
	fractions map[ProductType]float64
}

// NewFixedSplit validates the fractions up front; an invalid split is a
// scenario assembly error.
func NewFixedSplit(name string, fractions map[ProductType]float64) (*FixedSplit, error) {
	if _, err := NewProcessingAllocation(fractions, name); err != nil {
		return nil, err
	}
	return &FixedSplit{name: name, fractions: fractions}, nil
}

func (p *FixedSplit) Name() string { return p.name }

func (p *FixedSplit) Allocate(crop CropName, date SimDate) (ProcessingAllocation, error) {
	return NewProcessingAllocation(p.fractions, p.name)
}
