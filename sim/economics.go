/*
economics.go - Daily accounting, debt amortization, boundary postings

PURPOSE:
  Turns the day's physical results into money: farm-specific costs plus an
  allocated share of community shared OPEX, cash updates guarded by the
  configured negative-cash policy, monthly debt amortization, and the
  yearly snapshot/reset.

NEGATIVE CASH:
  Three configurable behaviors when a farm's cash would go negative:
    unlimited  - allow it, log a warning (default; reporting-only runs)
    penalty    - allow it, charge penalty interest on the overdraft daily
    ceiling    - clamp at a hard credit ceiling; the unpayable remainder is
                 recorded as an additional overdraft breach warning

MONTHLY:
  Each debt schedule amortizes with
    interest  = remaining principal x monthly rate
    principal = payment - interest
  and the economic policy is evaluated on the PREVIOUS completed month's
  aggregated records - never on a partial month.

YEARLY:
  Computes the resilience/financial snapshot, resets yearly accumulators,
  and applies aquifer drawdown and equipment degradation feedback.
*/
package sim

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEBT
// =============================================================================

// DebtState is one community debt schedule. The monthly payment is
// financing-derived upstream and consumed here as given.
type DebtState struct {
	Name            string
	PrincipalUSD    decimal.Decimal
	AnnualRate      float64
	MonthlyPayment  decimal.Decimal
	RemainingMonths int
}

// AmortizeMonth advances the schedule one month and returns the split.
// The final payment clamps to the remaining principal plus interest.
func (d *DebtState) AmortizeMonth() (interest, principal, payment decimal.Decimal) {
	if d.RemainingMonths <= 0 || d.PrincipalUSD.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	interest = MulFloat(d.PrincipalUSD, d.AnnualRate/12)
	payment = d.MonthlyPayment
	principal = payment.Sub(interest)
	if principal.GreaterThan(d.PrincipalUSD) {
		principal = d.PrincipalUSD
		payment = principal.Add(interest)
	}
	d.PrincipalUSD = d.PrincipalUSD.Sub(principal)
	d.RemainingMonths--
	return interest, principal, payment
}

// =============================================================================
// ECONOMIC STATE
// =============================================================================

// EconomicState is the community financial ledger.
type EconomicState struct {
	CommunityCashUSD decimal.Decimal
	Debts            []DebtState

	YearRevenueUSD     decimal.Decimal
	YearCostUSD        decimal.Decimal
	YearDebtServiceUSD decimal.Decimal
}

func NewEconomicState(startingCash decimal.Decimal, debts []DebtState) *EconomicState {
	return &EconomicState{
		CommunityCashUSD:   startingCash,
		Debts:              debts,
		YearRevenueUSD:     decimal.Zero,
		YearCostUSD:        decimal.Zero,
		YearDebtServiceUSD: decimal.Zero,
	}
}

// TotalDebt is the sum of remaining principal across schedules.
func (s *EconomicState) TotalDebt() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Debts {
		total = total.Add(s.Debts[i].PrincipalUSD)
	}
	return total
}

// =============================================================================
// NEGATIVE CASH POLICY
// =============================================================================

type NegativeCashPolicy string

const (
	CashUnlimited       NegativeCashPolicy = "unlimited"
	CashPenaltyInterest NegativeCashPolicy = "penalty_interest"
	CashHardCeiling     NegativeCashPolicy = "hard_ceiling"
)

// =============================================================================
// ECONOMIC POLICY
// =============================================================================

// EconomicPolicy reviews a farm's completed month and returns advisory
// notes (distress flags). Rule-based, no forecasting.
type EconomicPolicy interface {
	Name() string
	ReviewMonth(m MonthlySnapshot) []string
}

// DistressWatch flags months with negative net income and months where
// costs ran above a configured multiple of revenue.
type DistressWatch struct {
	CostRevenueRatioLimit float64 // 0 disables the ratio check
}

func (DistressWatch) Name() string { return "distress_watch" }

func (p DistressWatch) ReviewMonth(m MonthlySnapshot) []string {
	var notes []string
	if m.NetIncomeUSD.IsNegative() {
		notes = append(notes, "negative_net_income")
	}
	if p.CostRevenueRatioLimit > 0 && m.RevenueUSD.IsPositive() {
		ratio := m.TotalCostUSD.Div(m.RevenueUSD).InexactFloat64()
		if ratio > p.CostRevenueRatioLimit {
			notes = append(notes, "cost_overrun")
		}
	}
	return notes
}

// =============================================================================
// ACCOUNTANT
// =============================================================================

// EconomicAccountant posts daily, monthly and yearly money movements.
type EconomicAccountant struct {
	Alloc             CostAllocation
	NegCash           NegativeCashPolicy
	PenaltyAnnualRate float64         // for CashPenaltyInterest
	CreditCeilingUSD  decimal.Decimal // for CashHardCeiling (positive magnitude)
	Logger            *slog.Logger
}

func NewEconomicAccountant(alloc CostAllocation, negCash NegativeCashPolicy, logger *slog.Logger) *EconomicAccountant {
	if logger == nil {
		logger = slog.Default()
	}
	if negCash == "" {
		negCash = CashUnlimited
	}
	return &EconomicAccountant{Alloc: alloc, NegCash: negCash, Logger: logger}
}

// SharedShares returns each farm's fraction of community shared costs
// under the configured allocation method. Fractions sum to 1.0.
func (a *EconomicAccountant) SharedShares(areas map[FarmID]float64, usage map[FarmID]float64) map[FarmID]float64 {
	weights := map[FarmID]float64{}
	switch a.Alloc {
	case AllocByArea:
		weights = areas
	case AllocByUsage:
		weights = usage
	default: // AllocEqual
		for id := range areas {
			weights[id] = 1
		}
	}
	// Sum over sorted IDs: float addition is order-sensitive and the
	// shares feed cash postings that must replay identically.
	ids := make([]FarmID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	total := 0.0
	for _, id := range ids {
		if w := weights[id]; w > 0 {
			total += w
		}
	}
	shares := make(map[FarmID]float64, len(areas))
	if total <= 0 {
		// Degenerate weights (e.g. zero usage day) fall back to equal.
		n := float64(len(areas))
		for id := range areas {
			shares[id] = 1 / n
		}
		return shares
	}
	for id := range areas {
		w := weights[id]
		if w < 0 {
			w = 0
		}
		shares[id] = w / total
	}
	return shares
}

// PostDay finalizes one farm's record (totals + net income) and applies it
// to the farm's cash under the negative-cash policy. Returns the cash
// after posting.
func (a *EconomicAccountant) PostDay(cashBefore decimal.Decimal, rec *DailyRecord) decimal.Decimal {
	rec.TotalCostUSD = rec.WaterCostUSD.
		Add(rec.EnergyCostUSD).
		Add(rec.FieldLaborUSD).
		Add(rec.InputCostUSD).
		Add(rec.ProcessingLaborUSD).
		Add(rec.StorageCostUSD).
		Add(rec.SharedOpexUSD)
	rec.NetIncomeUSD = rec.RevenueUSD.Sub(rec.TotalCostUSD)

	cash := cashBefore.Add(rec.NetIncomeUSD)
	if cash.IsNegative() {
		switch a.NegCash {
		case CashPenaltyInterest:
			penalty := MulFloat(cash.Neg(), a.PenaltyAnnualRate/365)
			cash = cash.Sub(penalty)
			rec.TotalCostUSD = rec.TotalCostUSD.Add(penalty)
			rec.NetIncomeUSD = rec.RevenueUSD.Sub(rec.TotalCostUSD)
		case CashHardCeiling:
			floor := a.CreditCeilingUSD.Neg()
			if cash.LessThan(floor) {
				a.Logger.Warn("credit ceiling breached",
					"farm", rec.Farm, "date", rec.Date.String(),
					"cash", cash.StringFixed(2), "ceiling", floor.StringFixed(2))
				cash = floor
			}
		default: // CashUnlimited
			a.Logger.Warn("negative cash",
				"farm", rec.Farm, "date", rec.Date.String(), "cash", cash.StringFixed(2))
		}
	}
	rec.CashAfterUSD = cash
	return cash
}

// PostMonth amortizes every debt schedule out of community cash and
// evaluates the economic policy over the previous completed month.
// Returns total debt service and any policy notes per farm.
func (a *EconomicAccountant) PostMonth(
	state *EconomicState,
	policy EconomicPolicy,
	prevMonth map[FarmID]MonthlySnapshot,
) (debtService decimal.Decimal, notes map[FarmID][]string) {
	debtService = decimal.Zero
	for i := range state.Debts {
		_, _, payment := state.Debts[i].AmortizeMonth()
		debtService = debtService.Add(payment)
	}
	state.CommunityCashUSD = state.CommunityCashUSD.Sub(debtService)
	state.YearDebtServiceUSD = state.YearDebtServiceUSD.Add(debtService)

	notes = make(map[FarmID][]string)
	if policy != nil {
		for farm, snap := range prevMonth {
			if snap.Days == 0 {
				continue
			}
			if n := policy.ReviewMonth(snap); len(n) > 0 {
				notes[farm] = n
				a.Logger.Info("economic policy flags",
					"policy", policy.Name(), "farm", farm, "month", snap.MonthKey, "notes", n)
			}
		}
	}
	return debtService, notes
}
