/*
Package sim implements the daily simulation engine for a collective farming
community: physical flows (water, energy, crops, processed food) and their
economic consequences, advanced one simulated day at a time.

PURPOSE:
  This package is the core of the simulator. It sequences six policy domains
  (crop, water, energy, food processing, market, economic) against shared
  mutable state, resolves multi-regime pricing, dispatches energy by merit
  order, manages FIFO perishable inventory with forced-sale rules, and
  reconciles material and cash balances every day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe IDs for farms, runs, products, crops
  - Money: all monetary amounts use decimal.Decimal to avoid float drift
  - Tolerances: closure thresholds for material and fraction checks

DESIGN PRINCIPLES:
  1. Determinism: a run with a fixed seed replays to identical records
  2. Precision: money is decimal; physical flows are float64 with explicit
     closure tolerances
  3. Explicit state: aquifer, battery, and lag buffers are state objects
     passed through step functions, never package globals
  4. Fail loudly: NaN or a balance that does not close aborts the run

SEE ALSO:
  - orchestrator.go: the daily step sequence
  - record.go: the per-farm-day audit trail
  - errors.go: the error taxonomy
*/
package sim

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FarmID string
type RunID string
type CropName string

// ProductType is a food-processing pathway and the product it yields.
type ProductType string

const (
	ProductFresh    ProductType = "fresh"
	ProductPackaged ProductType = "packaged"
	ProductCanned   ProductType = "canned"
	ProductDried    ProductType = "dried"
)

// ProductTypes lists all pathways in a stable order. Iteration over pathway
// maps goes through this slice so runs are reproducible.
var ProductTypes = []ProductType{ProductFresh, ProductPackaged, ProductCanned, ProductDried}

// =============================================================================
// MONEY
// =============================================================================

// USD builds a decimal money amount from a float literal. Only use for
// configuration values and test fixtures; derived amounts stay in decimal.
func USD(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// MulFloat multiplies a money amount by a physical quantity.
func MulFloat(m decimal.Decimal, qty float64) decimal.Decimal {
	return m.Mul(decimal.NewFromFloat(qty))
}

// =============================================================================
// TOLERANCES
// =============================================================================

const (
	// MassTolerance is the absolute closure tolerance for daily water and
	// energy material balances. A larger gap is a modeling bug.
	MassTolerance = 0.01

	// FractionTolerance bounds how far a set of allocation fractions may
	// drift from summing to exactly 1.0.
	FractionTolerance = 0.001
)

// =============================================================================
// CONSUMER / RESOURCE REGIMES (pricing)
// =============================================================================

type ConsumerType string

const (
	ConsumerAgricultural ConsumerType = "agricultural"
	ConsumerDomestic     ConsumerType = "domestic"
)

type ResourceKind string

const (
	ResourceWater  ResourceKind = "water"
	ResourceEnergy ResourceKind = "energy"
)

// =============================================================================
// COST ALLOCATION
// =============================================================================

// CostAllocation selects how community shared OPEX is split across farms.
type CostAllocation string

const (
	AllocEqual   CostAllocation = "equal"
	AllocByArea  CostAllocation = "area"
	AllocByUsage CostAllocation = "usage"
)
