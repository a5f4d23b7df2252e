/*
market.go - Voluntary market-sale policies

PURPOSE:
  Decides what the community sells from inventory each day AFTER the forced
  sweeps have run. Policies only see what remains; they can never hold
  expired or over-capacity stock because that inventory is gone before they
  are consulted.

Sale events from these policies are tagged with the policy name, keeping
them distinct from forced_expiry / forced_overflow in every metric.
*/
package sim

// MarketContext is the read view a market policy decides over.
type MarketContext struct {
	Date   SimDate
	Ledger *InventoryLedger
	Price  PriceFn
}

// SaleOrder is one instruction to sell kg of a product.
type SaleOrder struct {
	Product ProductType
	Crop    CropName
	Kg      float64
}

// MarketPolicy is one interchangeable selling strategy.
type MarketPolicy interface {
	Name() string
	Decide(ctx MarketContext) []SaleOrder
}

// =============================================================================
// POLICIES
// =============================================================================

// SellAtHarvest liquidates all remaining inventory every day. The simplest
// baseline: no storage risk, no price timing.
type SellAtHarvest struct{}

func (SellAtHarvest) Name() string { return "sell_at_harvest" }

func (p SellAtHarvest) Decide(ctx MarketContext) []SaleOrder {
	var orders []SaleOrder
	for _, product := range ProductTypes {
		if kg := ctx.Ledger.StoredKg(product); kg > 0 {
			orders = append(orders, SaleOrder{Product: product, Kg: kg})
		}
	}
	return orders
}

// HoldForPrice holds stock until the day's price clears a per-kg threshold,
// with a maximum hold age as a backstop so stock is not ridden into the
// forced-expiry sweep.
type HoldForPrice struct {
	ThresholdPerKg float64 // USD/kg floor to trigger a sale
	MaxHoldDays    int     // sell regardless once this old
}

func (HoldForPrice) Name() string { return "hold_for_price" }

func (p HoldForPrice) Decide(ctx MarketContext) []SaleOrder {
	var orders []SaleOrder
	for _, t := range ctx.Ledger.Tranches() {
		if t.Kg <= 0 {
			continue
		}
		price := ctx.Price(t.Product, t.Crop)
		age := DaysBetween(t.HarvestDate, ctx.Date)
		if price.InexactFloat64() >= p.ThresholdPerKg || (p.MaxHoldDays > 0 && age >= p.MaxHoldDays) {
			orders = append(orders, SaleOrder{Product: t.Product, Crop: t.Crop, Kg: t.Kg})
		}
	}
	return orders
}
