/*
crop.go - Crop growth state machine and planting policies

PURPOSE:
  Tracks one planting (crop x planting date x farm) through its growth
  stages and produces a harvest once per cycle. Exactly one active cycle
  per crop per farm exists at a time; a new cycle only starts after the
  previous one goes dormant.

STAGES:
  Initial -> Development -> MidSeason -> LateSeason -> HarvestReady -> Dormant

  Stage transitions are driven by days since planting against the plan's
  stage lengths. Harvest fires on the single day the cycle reaches
  HarvestReady; the orchestrator collects the yield and the state moves to
  Dormant the same day.

YIELD:
  Realized yield scales the plan's potential yield by the season's water
  satisfaction (received / demanded, clamped to [0,1]). Water stress is the
  only yield response modeled; soil health and crop overlap are out of
  scope.
*/
package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GROWTH STAGES
// =============================================================================

type GrowthStage string

const (
	StageInitial      GrowthStage = "initial"
	StageDevelopment  GrowthStage = "development"
	StageMidSeason    GrowthStage = "mid_season"
	StageLateSeason   GrowthStage = "late_season"
	StageHarvestReady GrowthStage = "harvest_ready"
	StageDormant      GrowthStage = "dormant"
)

// StageLengths holds the duration in days of each pre-harvest stage.
type StageLengths struct {
	Initial     int
	Development int
	MidSeason   int
	LateSeason  int
}

// Total is the full planting-to-harvest cycle length.
func (s StageLengths) Total() int {
	return s.Initial + s.Development + s.MidSeason + s.LateSeason
}

// =============================================================================
// CROP PLAN AND STATE
// =============================================================================

// CropPlan is the immutable description of one recurring planting.
type CropPlan struct {
	Crop         CropName
	AreaHa       float64
	PlantMonth   time.Month
	PlantDay     int
	Stages       StageLengths
	YieldKgPerHa float64 // potential yield at full water satisfaction

	FieldLaborHoursPerHaDay float64         // daily field labor while a cycle is active
	HarvestLaborHoursPerKg  float64         // extra labor on the harvest day
	InputCostPerHaDay       decimal.Decimal // seed/fertilizer/inputs accrued daily while active
}

// CropState is the mutable state of one active growth cycle.
type CropState struct {
	Farm              FarmID
	Plan              CropPlan
	Stage             GrowthStage
	PlantedOn         SimDate
	DaysSincePlanting int
	WaterDemandM3     float64 // cumulative irrigation requested this cycle
	WaterReceivedM3   float64 // cumulative irrigation delivered this cycle
	HarvestedKg       float64
}

// NewCropState starts a cycle on the planting day.
func NewCropState(farm FarmID, plan CropPlan, planted SimDate) *CropState {
	return &CropState{Farm: farm, Plan: plan, Stage: StageInitial, PlantedOn: planted}
}

// Active reports whether the cycle still consumes water and advances.
func (c *CropState) Active() bool {
	return c.Stage != StageDormant
}

// Advance moves the cycle forward one day and returns true on the single
// day the crop becomes ready for harvest.
func (c *CropState) Advance() bool {
	if c.Stage == StageDormant || c.Stage == StageHarvestReady {
		// HarvestReady lasts one day; the orchestrator harvests and then
		// calls Retire.
		return false
	}
	c.DaysSincePlanting++
	d := c.DaysSincePlanting
	s := c.Plan.Stages
	switch {
	case d <= s.Initial:
		c.Stage = StageInitial
	case d <= s.Initial+s.Development:
		c.Stage = StageDevelopment
	case d <= s.Initial+s.Development+s.MidSeason:
		c.Stage = StageMidSeason
	case d < s.Total():
		c.Stage = StageLateSeason
	default:
		c.Stage = StageHarvestReady
		return true
	}
	return false
}

// WaterSatisfaction is received/demanded for the cycle, clamped to [0,1].
// A cycle that demanded no water counts as fully satisfied.
func (c *CropState) WaterSatisfaction() float64 {
	if c.WaterDemandM3 <= 0 {
		return 1
	}
	f := c.WaterReceivedM3 / c.WaterDemandM3
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Harvest computes the realized yield and marks it on the state. Harvest
// occurs once per cycle.
func (c *CropState) Harvest() float64 {
	yield := c.Plan.YieldKgPerHa * c.Plan.AreaHa * c.WaterSatisfaction()
	c.HarvestedKg = yield
	return yield
}

// Retire moves the cycle to Dormant after harvest (or at year boundary for
// cycles that never completed).
func (c *CropState) Retire() {
	c.Stage = StageDormant
}

// =============================================================================
// CROP POLICY
// =============================================================================

// CropPolicy decides when a plan's next cycle starts.
type CropPolicy interface {
	Name() string

	// ShouldPlant reports whether a new cycle for 'plan' starts on 'date'.
	// 'active' is the farm's current cycle for this crop, nil when none.
	ShouldPlant(plan CropPlan, date SimDate, active *CropState) bool
}

// FixedCalendar plants each crop on its configured month/day every year,
// provided no cycle for that crop is still active on the farm.
type FixedCalendar struct{}

func (FixedCalendar) Name() string { return "fixed_calendar" }

func (FixedCalendar) ShouldPlant(plan CropPlan, date SimDate, active *CropState) bool {
	if active != nil && active.Active() {
		return false
	}
	return date.SameMonthDay(plan.PlantMonth, plan.PlantDay)
}
