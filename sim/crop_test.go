/*
crop_test.go - Crop growth state machine tests
*/
package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
)

func tomatoPlan() sim.CropPlan {
	return sim.CropPlan{
		Crop: "tomato", AreaHa: 4,
		PlantMonth: time.March, PlantDay: 1,
		Stages:       sim.StageLengths{Initial: 2, Development: 3, MidSeason: 4, LateSeason: 1},
		YieldKgPerHa: 1000,
	}
}

func TestCropState_StageProgression(t *testing.T) {
	// GIVEN: a cycle with stage lengths 2/3/4/1 (10 days total)
	// WHEN: advancing day by day
	// THEN: stages transition on schedule and harvest-ready fires exactly
	//       once, on day 10

	crop := sim.NewCropState("farm-a", tomatoPlan(), sim.NewDate(2026, 3, 1))
	require.Equal(t, sim.StageInitial, crop.Stage)

	var harvestDays []int
	for day := 1; day <= 10; day++ {
		if crop.Advance() {
			harvestDays = append(harvestDays, day)
		}
	}

	assert.Equal(t, []int{10}, harvestDays)
	assert.Equal(t, sim.StageHarvestReady, crop.Stage)

	// Advancing past harvest-ready does nothing until the cycle retires.
	assert.False(t, crop.Advance())
	crop.Retire()
	assert.False(t, crop.Active())
}

func TestCropState_WaterStressScalesYield(t *testing.T) {
	// GIVEN: a cycle that received half the water it demanded
	// THEN: realized yield is potential * area * 0.5

	crop := sim.NewCropState("farm-a", tomatoPlan(), sim.NewDate(2026, 3, 1))
	crop.WaterDemandM3 = 100
	crop.WaterReceivedM3 = 50

	assert.InDelta(t, 0.5, crop.WaterSatisfaction(), 1e-9)
	assert.InDelta(t, 1000*4*0.5, crop.Harvest(), 1e-9)
}

func TestCropState_WaterSatisfactionClamps(t *testing.T) {
	crop := sim.NewCropState("farm-a", tomatoPlan(), sim.NewDate(2026, 3, 1))

	// No demand counts as fully satisfied, not a division by zero.
	assert.Equal(t, 1.0, crop.WaterSatisfaction())

	// Over-delivery never boosts yield past potential.
	crop.WaterDemandM3 = 100
	crop.WaterReceivedM3 = 130
	assert.Equal(t, 1.0, crop.WaterSatisfaction())
}

func TestFixedCalendar_PlantsOncePerYear(t *testing.T) {
	// GIVEN: a plan with a March 1 planting date
	// THEN: planting fires on March 1 with no active cycle, and is
	//       suppressed while a cycle is still growing

	policy := sim.FixedCalendar{}
	plan := tomatoPlan()

	assert.True(t, policy.ShouldPlant(plan, sim.NewDate(2026, 3, 1), nil))
	assert.False(t, policy.ShouldPlant(plan, sim.NewDate(2026, 3, 2), nil))

	active := sim.NewCropState("farm-a", plan, sim.NewDate(2026, 3, 1))
	assert.False(t, policy.ShouldPlant(plan, sim.NewDate(2027, 3, 1), active),
		"active cycle blocks replanting")

	active.Retire()
	assert.True(t, policy.ShouldPlant(plan, sim.NewDate(2027, 3, 1), active),
		"dormant cycle allows next year's planting")
}
