/*
inventory_test.go - FIFO inventory and forced-sale tests

Documents the daily sale order: expiry sweep before overflow sweep
before voluntary sales, FIFO consumption, tranche splitting at the
capacity line, and per-farm revenue attribution via ownership shares.
*/
package sim_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
)

func flatPrice(usd float64) sim.PriceFn {
	return func(product sim.ProductType, crop sim.CropName) decimal.Decimal {
		return sim.USD(usd)
	}
}

func freshTranche(kg float64, harvest sim.SimDate, shelfDays int, shares map[sim.FarmID]float64) *sim.StorageTranche {
	return sim.NewStorageTranche(sim.ProductFresh, "tomato", kg,
		harvest, harvest.AddDays(shelfDays), shares)
}

func TestTick_ExpirySweepForcesSale(t *testing.T) {
	// GIVEN: a fresh tranche with a 3-day shelf life
	// WHEN: Tick runs the day before expiry and on the expiry date
	// THEN: nothing sells early; on the expiry date the whole tranche is
	//       force-sold and tagged forced_expiry

	ledger := sim.NewInventoryLedger(nil)
	harvest := sim.NewDate(2026, 7, 1)
	ledger.Add(freshTranche(80, harvest, 3, map[sim.FarmID]float64{"farm-a": 1}))

	events := ledger.Tick(harvest.AddDays(2), flatPrice(0.5))
	assert.Empty(t, events)
	assert.Equal(t, 80.0, ledger.StoredKg(sim.ProductFresh))

	events = ledger.Tick(harvest.AddDays(3), flatPrice(0.5))
	require.Len(t, events, 1)
	assert.Equal(t, sim.TagForcedExpiry, events[0].Tag)
	assert.Equal(t, 80.0, events[0].Kg)
	assert.True(t, events[0].RevenueUSD.Equal(sim.MulFloat(sim.USD(0.5), 80)))
	assert.Zero(t, ledger.StoredKg(sim.ProductFresh))
}

func TestTick_OverflowSweepSplitsOldestTranche(t *testing.T) {
	// GIVEN: 130 kg stored against a 100 kg capacity, in two tranches
	// WHEN: the overflow sweep runs
	// THEN: exactly 30 kg is force-sold from the OLDEST tranche, which is
	//       split rather than liquidated outright

	ledger := sim.NewInventoryLedger(map[sim.ProductType]float64{sim.ProductFresh: 100})
	day1 := sim.NewDate(2026, 7, 1)
	day2 := sim.NewDate(2026, 7, 2)
	shares := map[sim.FarmID]float64{"farm-a": 1}
	old := freshTranche(70, day1, 30, shares)
	ledger.Add(old)
	ledger.Add(freshTranche(60, day2, 30, shares))

	events := ledger.Tick(day2, flatPrice(0.5))

	require.Len(t, events, 1)
	assert.Equal(t, sim.TagForcedOverflow, events[0].Tag)
	assert.InDelta(t, 30.0, events[0].Kg, 1e-9)
	assert.Equal(t, old.ID, events[0].TrancheID, "overflow sells oldest first")
	assert.InDelta(t, 100.0, ledger.StoredKg(sim.ProductFresh), sim.MassTolerance)
	assert.Equal(t, sim.TranchePartiallySold, old.Status)
}

func TestTick_ExpiryRunsBeforeOverflow(t *testing.T) {
	// GIVEN: an expired 70 kg tranche plus 60 kg of younger stock against a
	//        100 kg capacity
	// THEN: the expiry sweep alone resolves the overflow; the young stock
	//       survives untouched

	ledger := sim.NewInventoryLedger(map[sim.ProductType]float64{sim.ProductFresh: 100})
	day1 := sim.NewDate(2026, 7, 1)
	shares := map[sim.FarmID]float64{"farm-a": 1}
	ledger.Add(freshTranche(70, day1, 2, shares))
	young := freshTranche(60, day1.AddDays(3), 30, shares)
	ledger.Add(young)

	events := ledger.Tick(day1.AddDays(3), flatPrice(0.5))

	require.Len(t, events, 1)
	assert.Equal(t, sim.TagForcedExpiry, events[0].Tag)
	assert.Equal(t, 70.0, events[0].Kg)
	assert.Equal(t, 60.0, ledger.StoredKg(sim.ProductFresh))
	assert.Equal(t, young.Kg, 60.0)
}

func TestSell_FIFOAcrossTranches(t *testing.T) {
	// GIVEN: two tranches of 50 kg each, oldest first
	// WHEN: a voluntary sale of 70 kg runs
	// THEN: the oldest empties fully and the newer contributes 20 kg

	ledger := sim.NewInventoryLedger(nil)
	day1 := sim.NewDate(2026, 7, 1)
	shares := map[sim.FarmID]float64{"farm-a": 1}
	old := freshTranche(50, day1, 30, shares)
	newer := freshTranche(50, day1.AddDays(1), 30, shares)
	ledger.Add(old)
	ledger.Add(newer)

	events := ledger.Sell(day1.AddDays(2), sim.ProductFresh, "", 70, flatPrice(0.5), "sell_at_harvest")

	require.Len(t, events, 2)
	assert.Equal(t, old.ID, events[0].TrancheID)
	assert.Equal(t, 50.0, events[0].Kg)
	assert.Equal(t, newer.ID, events[1].TrancheID)
	assert.Equal(t, 20.0, events[1].Kg)
	assert.Equal(t, "sell_at_harvest", events[0].Tag)
	assert.InDelta(t, 30.0, ledger.StoredKg(sim.ProductFresh), 1e-9)
}

func TestSell_CropFilterMatchesOnlyThatCrop(t *testing.T) {
	ledger := sim.NewInventoryLedger(nil)
	day := sim.NewDate(2026, 7, 1)
	shares := map[sim.FarmID]float64{"farm-a": 1}
	ledger.Add(sim.NewStorageTranche(sim.ProductFresh, "tomato", 40, day, day.AddDays(30), shares))
	ledger.Add(sim.NewStorageTranche(sim.ProductFresh, "cucumber", 40, day, day.AddDays(30), shares))

	events := ledger.Sell(day, sim.ProductFresh, "cucumber", 100, flatPrice(0.5), "test")

	require.Len(t, events, 1)
	assert.Equal(t, sim.CropName("cucumber"), events[0].Crop)
	assert.Equal(t, 40.0, ledger.StoredKg(sim.ProductFresh), "tomato stock untouched")
}

func TestSaleEvent_RevenueAttributionFollowsShares(t *testing.T) {
	// GIVEN: a tranche owned 60/40 by two farms
	// WHEN: 100 kg sells at 0.5 USD/kg
	// THEN: revenue splits 30/20 per the shares stamped at creation

	ledger := sim.NewInventoryLedger(nil)
	day := sim.NewDate(2026, 7, 1)
	ledger.Add(freshTranche(100, day, 30, map[sim.FarmID]float64{"farm-a": 0.6, "farm-b": 0.4}))

	events := ledger.Sell(day, sim.ProductFresh, "", 100, flatPrice(0.5), "test")

	require.Len(t, events, 1)
	ev := events[0]
	assert.True(t, ev.RevenueUSD.Equal(sim.USD(50)))
	assert.True(t, ev.FarmRevenue["farm-a"].Equal(sim.USD(30)), "got %s", ev.FarmRevenue["farm-a"])
	assert.True(t, ev.FarmRevenue["farm-b"].Equal(sim.USD(20)), "got %s", ev.FarmRevenue["farm-b"])
}

func TestMarketPolicies_DecideOverRemainingStock(t *testing.T) {
	ledger := sim.NewInventoryLedger(nil)
	day := sim.NewDate(2026, 7, 1)
	shares := map[sim.FarmID]float64{"farm-a": 1}
	ledger.Add(freshTranche(120, day, 30, shares))

	// SellAtHarvest liquidates everything.
	orders := sim.SellAtHarvest{}.Decide(sim.MarketContext{
		Date: day, Ledger: ledger, Price: flatPrice(0.5),
	})
	require.Len(t, orders, 1)
	assert.Equal(t, 120.0, orders[0].Kg)

	// HoldForPrice waits below the threshold...
	hold := sim.HoldForPrice{ThresholdPerKg: 1.0, MaxHoldDays: 10}
	orders = hold.Decide(sim.MarketContext{Date: day, Ledger: ledger, Price: flatPrice(0.5)})
	assert.Empty(t, orders)

	// ...sells when the price clears it...
	orders = hold.Decide(sim.MarketContext{Date: day, Ledger: ledger, Price: flatPrice(1.2)})
	require.Len(t, orders, 1)

	// ...and the age backstop fires regardless of price.
	orders = hold.Decide(sim.MarketContext{Date: day.AddDays(10), Ledger: ledger, Price: flatPrice(0.5)})
	require.Len(t, orders, 1)
}
