/*
scenario.go - Layer-2 contract: the immutable scenario package

PURPOSE:
  A Scenario is everything the engine needs to run: farms, infrastructure
  capacities, tariffs, debts, per-domain policies, and the date range.
  Finalized upstream, validated once at assembly time, never mutated by a
  run. All mutable state (aquifer, battery, cash, crops) lives in run state
  created FROM the scenario.

VALIDATION:
  Validate() enforces the pre-run invariants from the error design:
  fraction sets summing to 1.0, no negative prices, starting capital
  covering the first year's debt service. Violations are ConfigErrors and
  never deferred to runtime.
*/
package sim

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FARM AND INFRASTRUCTURE
// =============================================================================

// Farm is one member farm's immutable definition.
type Farm struct {
	ID           FarmID
	Name         string
	AreaHa       float64
	StartingCash decimal.Decimal
	Crops        []CropPlan
}

// Infrastructure is the community's shared equipment.
type Infrastructure struct {
	WellMaxM3PerDay      float64
	TreatmentMaxM3PerDay float64
	GroundwaterSalinity  float64 // ppm, for the treatment-energy lookup
	PumpKWhPerM3PerM     float64 // pumping energy per m3 per metre of head

	PVCapacityKW        float64
	WindCapacityKW      float64
	PVDegradationRate   float64 // yearly output factor loss, e.g. 0.005
	WindDegradationRate float64

	Battery   BatterySpec
	Generator GeneratorSpec

	Processing          ProcessingSpec
	StorageCapacityKg   map[ProductType]float64
	StorageCostPerKgDay decimal.Decimal // holding cost charged on end-of-day inventory
}

// Community is the non-farm (household) load on shared systems.
type Community struct {
	DomesticWaterM3PerDay   float64
	DomesticEnergyKWhPerDay float64
}

// =============================================================================
// POLICY BUNDLE
// =============================================================================

// Policies is the community's policy instance per domain. Energy dispatch
// is governed by the single community-level policy; farm-level energy
// preferences are not consulted.
type Policies struct {
	Crop     CropPolicy
	Water    WaterPolicy
	Energy   EnergyPolicy
	Food     FoodPolicy
	Market   MarketPolicy
	Economic EconomicPolicy
}

// =============================================================================
// SCENARIO
// =============================================================================

// Scenario is the finalized, immutable simulation package.
type Scenario struct {
	Name  string
	Start SimDate
	End   SimDate

	Farms     []Farm
	Infra     Infrastructure
	Community Community
	Aquifer   AquiferSpec
	Tariffs   Tariffs

	Debts               []DebtState
	SharedOpexAnnualUSD decimal.Decimal
	CommunityCashUSD    decimal.Decimal
	CostAllocation      CostAllocation
	NegativeCash        NegativeCashPolicy

	Policies Policies

	// BalanceChecks enables the per-day closure assertions. On by default;
	// large Monte Carlo batches may disable them.
	BalanceChecks bool
}

// Validate enforces every pre-run invariant. Returns the first violation
// as a ConfigError.
func (s *Scenario) Validate() error {
	if s.End.Before(s.Start) {
		return &ConfigError{Field: "dates", Reason: "end before start"}
	}
	if len(s.Farms) == 0 {
		return &ConfigError{Field: "farms", Reason: "no farms defined"}
	}
	for _, f := range s.Farms {
		if f.AreaHa <= 0 {
			return &ConfigError{Field: fmt.Sprintf("farm %s area", f.ID), Reason: "must be positive"}
		}
		if f.StartingCash.IsNegative() {
			return &ConfigError{Field: fmt.Sprintf("farm %s starting cash", f.ID), Reason: "negative"}
		}
		seen := map[CropName]bool{}
		for _, plan := range f.Crops {
			if seen[plan.Crop] {
				return &ConfigError{Field: fmt.Sprintf("farm %s crop %s", f.ID, plan.Crop),
					Reason: "one planting plan per crop per farm"}
			}
			seen[plan.Crop] = true
			if plan.Stages.Total() <= 0 {
				return &ConfigError{Field: fmt.Sprintf("crop %s stages", plan.Crop), Reason: "zero cycle length"}
			}
			if plan.FieldLaborHoursPerHaDay < 0 || plan.HarvestLaborHoursPerKg < 0 {
				return &ConfigError{Field: fmt.Sprintf("crop %s labor hours", plan.Crop), Reason: "negative"}
			}
			if plan.InputCostPerHaDay.IsNegative() {
				return &ConfigError{Field: fmt.Sprintf("crop %s input cost", plan.Crop), Reason: "negative"}
			}
		}
	}
	if err := s.validatePrices(); err != nil {
		return err
	}
	if err := s.validateFractions(); err != nil {
		return err
	}
	if err := s.validateCapital(); err != nil {
		return err
	}
	if s.Policies.Water == nil || s.Policies.Energy == nil || s.Policies.Food == nil ||
		s.Policies.Market == nil || s.Policies.Crop == nil {
		return &ConfigError{Field: "policies", Reason: "all five operating policies are required"}
	}
	return nil
}

func (s *Scenario) validatePrices() error {
	if s.Tariffs.AgWaterPerM3.IsNegative() {
		return &ConfigError{Field: "agricultural water price", Reason: "negative"}
	}
	if s.Tariffs.GridPerKWh.IsNegative() {
		return &ConfigError{Field: "grid price", Reason: "negative"}
	}
	if s.Tariffs.DomesticWaterPerM3.IsNegative() {
		return &ConfigError{Field: "domestic water price", Reason: "negative"}
	}
	for i, t := range s.Tariffs.DomesticTiers {
		if t.Rate.IsNegative() {
			return &ConfigError{Field: fmt.Sprintf("domestic tier %d rate", i), Reason: "negative"}
		}
	}
	for crop, p := range s.Tariffs.FarmgatePerKg {
		if p.IsNegative() {
			return &ConfigError{Field: fmt.Sprintf("farmgate price %s", crop), Reason: "negative"}
		}
	}
	if s.Infra.StorageCostPerKgDay.IsNegative() {
		return &ConfigError{Field: "storage cost per kg-day", Reason: "negative"}
	}
	return nil
}

func (s *Scenario) validateFractions() error {
	b := s.Infra.Battery
	if b.CapacityKWh > 0 {
		if b.SOCMin < 0 || b.SOCMax > 1 || b.SOCMin >= b.SOCMax {
			return &ConfigError{Field: "battery SOC bounds", Reason: "require 0 <= min < max <= 1"}
		}
		if b.ChargeEfficiency <= 0 || b.ChargeEfficiency > 1 ||
			b.DischargeEfficiency <= 0 || b.DischargeEfficiency > 1 {
			return &ConfigError{Field: "battery efficiencies", Reason: "must be in (0, 1]"}
		}
	}
	for product, f := range s.Infra.Processing.WeightLossFraction {
		if f < 0 || f >= 1 {
			return &ConfigError{Field: fmt.Sprintf("weight loss %s", product), Reason: "must be in [0, 1)"}
		}
	}
	if w := s.Infra.Processing.WasteFraction; w < 0 || w >= 1 {
		return &ConfigError{Field: "waste fraction", Reason: "must be in [0, 1)"}
	}
	return nil
}

// validateCapital requires community starting capital to cover the first
// year of debt service; anything less is an assembly error, not a runtime
// surprise.
func (s *Scenario) validateCapital() error {
	firstYear := decimal.Zero
	for i := range s.Debts {
		months := s.Debts[i].RemainingMonths
		if months > 12 {
			months = 12
		}
		firstYear = firstYear.Add(MulFloat(s.Debts[i].MonthlyPayment, float64(months)))
	}
	if s.CommunityCashUSD.LessThan(firstYear) {
		return &ConfigError{Field: "community cash",
			Reason: fmt.Sprintf("starting capital %s below first-year debt service %s",
				s.CommunityCashUSD.StringFixed(2), firstYear.StringFixed(2))}
	}
	return nil
}

// Clone deep-copies the scenario so each Monte Carlo run mutates its own
// debt schedules and accumulators. Policies are stateless and shared.
func (s *Scenario) Clone() *Scenario {
	c := *s
	c.Farms = append([]Farm(nil), s.Farms...)
	for i := range c.Farms {
		c.Farms[i].Crops = append([]CropPlan(nil), s.Farms[i].Crops...)
	}
	c.Debts = append([]DebtState(nil), s.Debts...)
	c.Tariffs.DomesticTiers = append([]WaterTier(nil), s.Tariffs.DomesticTiers...)
	c.Tariffs.FarmgatePerKg = cloneMap(s.Tariffs.FarmgatePerKg)
	c.Tariffs.ProductMultiplier = cloneMap(s.Tariffs.ProductMultiplier)
	c.Infra.StorageCapacityKg = cloneMap(s.Infra.StorageCapacityKg)
	c.Infra.Processing.ThroughputKgPerDay = cloneMap(s.Infra.Processing.ThroughputKgPerDay)
	c.Infra.Processing.EnergyKWhPerKg = cloneMap(s.Infra.Processing.EnergyKWhPerKg)
	c.Infra.Processing.LaborHoursPerKg = cloneMap(s.Infra.Processing.LaborHoursPerKg)
	c.Infra.Processing.WeightLossFraction = cloneMap(s.Infra.Processing.WeightLossFraction)
	c.Infra.Processing.ShelfLifeDays = cloneMap(s.Infra.Processing.ShelfLifeDays)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
