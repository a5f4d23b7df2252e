/*
inventory.go - FIFO perishable inventory with forced sales

PURPOSE:
  Holds storage tranches (dated batches of product with per-farm ownership
  shares) and runs the daily sale order:

    (a) expiry sweep   - every tranche at or past its expiry date is
                         force-sold at the day's market price, oldest first
    (b) overflow sweep - per product, while stored kg exceeds capacity the
                         oldest tranche is force-sold (split if only partly
                         over) until at or under capacity
    (c) voluntary sales - only after both sweeps does the market policy get
                          to sell from what remains

  The ordering prevents a market policy from "holding" inventory that is
  already expired or over capacity. Forced and voluntary sales carry
  distinct tags so metrics never conflate them.

REVENUE ATTRIBUTION:
  Every sale event attributes revenue to farms from the tranche's ownership
  shares, fixed at creation. There are no running per-farm revenue
  accumulators to drift.
*/
package sim

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STORAGE TRANCHE
// =============================================================================

type TrancheStatus string

const (
	TrancheActive        TrancheStatus = "active"
	TranchePartiallySold TrancheStatus = "partially_sold"
	TrancheFullySold     TrancheStatus = "fully_sold"
	TrancheExpired       TrancheStatus = "expired"
)

// Sale tags. Voluntary sales are tagged with the market policy name.
const (
	TagForcedExpiry   = "forced_expiry"
	TagForcedOverflow = "forced_overflow"
)

// StorageTranche is one discrete batch of output. Ownership shares are
// fractions summing to 1.0, stamped at creation and never rewritten.
type StorageTranche struct {
	ID          string
	Product     ProductType
	Crop        CropName
	Kg          float64
	HarvestDate SimDate
	ExpiryDate  SimDate
	FarmShares  map[FarmID]float64
	Status      TrancheStatus
}

func NewStorageTranche(product ProductType, crop CropName, kg float64, harvest, expiry SimDate, shares map[FarmID]float64) *StorageTranche {
	owned := make(map[FarmID]float64, len(shares))
	for id, f := range shares {
		owned[id] = f
	}
	return &StorageTranche{
		ID:          uuid.NewString(),
		Product:     product,
		Crop:        crop,
		Kg:          kg,
		HarvestDate: harvest,
		ExpiryDate:  expiry,
		FarmShares:  owned,
		Status:      TrancheActive,
	}
}

// =============================================================================
// SALE EVENTS
// =============================================================================

// SaleEvent records one sale from one tranche, with revenue attributed to
// farms via the tranche's shares.
type SaleEvent struct {
	ID          string
	Date        SimDate
	TrancheID   string
	Product     ProductType
	Crop        CropName
	Kg          float64
	UnitPrice   decimal.Decimal
	RevenueUSD  decimal.Decimal
	FarmRevenue map[FarmID]decimal.Decimal
	Tag         string
}

// PriceFn resolves the day's market price per kg for a product/crop.
type PriceFn func(product ProductType, crop CropName) decimal.Decimal

// =============================================================================
// INVENTORY LEDGER
// =============================================================================

// InventoryLedger owns the community's stored tranches in FIFO order by
// harvest date (insertion order; harvests arrive chronologically).
type InventoryLedger struct {
	CapacityKg map[ProductType]float64 // 0 or absent = unbounded
	tranches   []*StorageTranche
}

func NewInventoryLedger(capacity map[ProductType]float64) *InventoryLedger {
	return &InventoryLedger{CapacityKg: capacity}
}

// Add appends a tranche. Harvests arrive in date order, preserving FIFO.
func (l *InventoryLedger) Add(t *StorageTranche) {
	l.tranches = append(l.tranches, t)
}

// StoredKg sums the active kg for one product.
func (l *InventoryLedger) StoredKg(product ProductType) float64 {
	total := 0.0
	for _, t := range l.tranches {
		if t.Product == product {
			total += t.Kg
		}
	}
	return total
}

// Tranches exposes a read-only view for market policies.
func (l *InventoryLedger) Tranches() []*StorageTranche {
	return l.tranches
}

// Tick runs the forced-sale sweeps for the day, in strict order: expiry
// first, then overflow. Returns the forced sale events.
func (l *InventoryLedger) Tick(date SimDate, price PriceFn) []SaleEvent {
	var events []SaleEvent

	// (a) Expiry sweep, oldest first. The slice is FIFO already.
	for _, t := range l.tranches {
		if t.Kg > 0 && t.ExpiryDate.BeforeOrEqual(date) {
			events = append(events, l.sellFromTranche(t, t.Kg, date, price, TagForcedExpiry))
			t.Status = TrancheExpired
		}
	}
	l.compact()

	// (b) Overflow sweep per product, oldest first, splitting the tranche
	// that straddles the capacity line.
	for _, product := range ProductTypes {
		capKg, ok := l.CapacityKg[product]
		if !ok || capKg <= 0 {
			continue
		}
		over := l.StoredKg(product) - capKg
		for over > MassTolerance {
			t := l.oldest(product)
			if t == nil {
				break
			}
			kg := minf(t.Kg, over)
			events = append(events, l.sellFromTranche(t, kg, date, price, TagForcedOverflow))
			over -= kg
		}
	}
	l.compact()

	return events
}

// Sell executes a voluntary sale of up to kg of a product, FIFO across
// tranches, tagged with the market policy name. An empty crop matches any
// crop.
func (l *InventoryLedger) Sell(date SimDate, product ProductType, crop CropName, kg float64, price PriceFn, tag string) []SaleEvent {
	var events []SaleEvent
	remaining := kg
	for _, t := range l.tranches {
		if remaining <= 0 {
			break
		}
		if t.Product != product || t.Kg <= 0 {
			continue
		}
		if crop != "" && t.Crop != crop {
			continue
		}
		take := minf(t.Kg, remaining)
		events = append(events, l.sellFromTranche(t, take, date, price, tag))
		remaining -= take
	}
	l.compact()
	return events
}

// SellTranche sells a specific tranche outright (market policies that hold
// per-tranche use this).
func (l *InventoryLedger) SellTranche(t *StorageTranche, date SimDate, price PriceFn, tag string) SaleEvent {
	ev := l.sellFromTranche(t, t.Kg, date, price, tag)
	l.compact()
	return ev
}

// sellFromTranche shrinks the tranche and builds the attributed event.
func (l *InventoryLedger) sellFromTranche(t *StorageTranche, kg float64, date SimDate, price PriceFn, tag string) SaleEvent {
	unit := price(t.Product, t.Crop)
	revenue := MulFloat(unit, kg)

	attributed := make(map[FarmID]decimal.Decimal, len(t.FarmShares))
	for farm, share := range t.FarmShares {
		attributed[farm] = MulFloat(revenue, share)
	}

	t.Kg -= kg
	if t.Kg <= MassTolerance {
		t.Kg = 0
		if t.Status != TrancheExpired {
			t.Status = TrancheFullySold
		}
	} else {
		t.Status = TranchePartiallySold
	}

	return SaleEvent{
		ID:          uuid.NewString(),
		Date:        date,
		TrancheID:   t.ID,
		Product:     t.Product,
		Crop:        t.Crop,
		Kg:          kg,
		UnitPrice:   unit,
		RevenueUSD:  revenue,
		FarmRevenue: attributed,
		Tag:         tag,
	}
}

// oldest returns the first tranche of a product with stock remaining.
func (l *InventoryLedger) oldest(product ProductType) *StorageTranche {
	for _, t := range l.tranches {
		if t.Product == product && t.Kg > 0 {
			return t
		}
	}
	return nil
}

// compact drops emptied tranches, preserving order.
func (l *InventoryLedger) compact() {
	kept := l.tranches[:0]
	for _, t := range l.tranches {
		if t.Kg > 0 {
			kept = append(kept, t)
		}
	}
	l.tranches = kept
}
