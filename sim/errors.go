/*
errors.go - Centralized error types for the simulation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy follows a simple rule: configuration problems fail before the
  run starts, arithmetic and balance problems abort the run at the offending
  farm/date, and zero-valued inputs are never errors at all (they produce
  explicitly tagged zero results).

ERROR CATEGORIES:
  1. Configuration errors - invalid scenario data, raised at assembly time
  2. Arithmetic hazards   - NaN in a daily record, fatal
  3. Balance violations   - material/cash balance failed to close, fatal
  4. Store errors         - record persistence failures

USAGE:
  Callers match categories with errors.Is():

    if errors.Is(err, sim.ErrBalanceViolation) { ... }

SEE ALSO:
  - record.go: NaN and balance checks that raise these
  - scenario.go: Validate() raises ConfigError
*/
package sim

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfig is the category for all scenario assembly failures.
	ErrInvalidConfig = errors.New("invalid scenario configuration")

	// ErrArithmeticHazard is returned when a NaN or Inf reaches a daily
	// record. This should never occur in correct code.
	ErrArithmeticHazard = errors.New("arithmetic hazard")

	// ErrBalanceViolation is returned when a water/energy/cash balance
	// fails to close within MassTolerance.
	ErrBalanceViolation = errors.New("balance violation")

	// ErrDuplicateRecord is returned when a record for the same
	// (run, farm, date) is appended twice. The record log is append-only.
	ErrDuplicateRecord = errors.New("duplicate daily record")

	// ErrRunNotFound is returned when a referenced run does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// =============================================================================
// ZERO-INPUT REASON TAGS
// =============================================================================
// Zero demand/harvest/inventory are expected conditions, not errors. The
// component short-circuits to a zero-valued result carrying one of these
// tags so metrics can distinguish "nothing requested" from "policy chose
// nothing".

const (
	ReasonZeroDemand  = "zero_demand"
	ReasonZeroHarvest = "zero_harvest"
)

// =============================================================================
// STRUCTURED ERRORS - Carry offending farm/date/field
// =============================================================================

// ConfigError reports an invalid scenario field at assembly time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// NaNError identifies the exact record field and date where a NaN appeared.
type NaNError struct {
	Farm  FarmID
	Date  SimDate
	Field string
}

func (e *NaNError) Error() string {
	return fmt.Sprintf("NaN in field %s for farm %s on %s", e.Field, e.Farm, e.Date)
}

func (e *NaNError) Unwrap() error { return ErrArithmeticHazard }

// BalanceError reports a material or cash balance that failed to close.
type BalanceError struct {
	Farm   FarmID // empty for community-level balances
	Date   SimDate
	Domain string // "water", "energy", "cash"
	Gap    float64
}

func (e *BalanceError) Error() string {
	if e.Farm == "" {
		return fmt.Sprintf("%s balance open by %.6f on %s", e.Domain, e.Gap, e.Date)
	}
	return fmt.Sprintf("%s balance open by %.6f for farm %s on %s", e.Domain, e.Gap, e.Farm, e.Date)
}

func (e *BalanceError) Unwrap() error { return ErrBalanceViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true if the error must abort the run rather than be
// recovered from.
func IsFatal(err error) bool {
	return errors.Is(err, ErrArithmeticHazard) ||
		errors.Is(err, ErrBalanceViolation) ||
		errors.Is(err, ErrInvalidConfig)
}
