/*
policies.go - Pre-built policy bundles

PURPOSE:
  Ready-to-use policy configurations for common governance choices. These
  are convenience constructors; scenarios can mix and match individual
  policies freely.

AVAILABLE BUNDLES:
  RenewableFirstBundle: groundwater + renewables-first dispatch, mixed
                        processing, sell at harvest
  GridFirstBundle:      municipal water, grid-first dispatch with renewable
                        export, all-fresh, sell at harvest
  ConservationBundle:   quota-enforced groundwater, renewables-first
                        dispatch, preservation-heavy processing, price hold
*/
package sim

// =============================================================================
// ENERGY POLICIES
// =============================================================================

// RenewableFirst self-consumes renewables, cycles the battery, imports the
// remainder and keeps the generator as last resort. Surplus is exported.
type RenewableFirst struct{}

func (RenewableFirst) Name() string { return "renewable_first" }

func (RenewableFirst) Flags(date SimDate) DispatchFlags {
	return DispatchFlags{
		UseRenewables: true, UseBattery: true, GridImport: true,
		UseGenerator: true, GridExport: true,
	}
}

// GridFirst serves all load from the grid and routes the whole renewable
// output to export - the "treat PV as a cash crop" stance.
type GridFirst struct{}

func (GridFirst) Name() string { return "grid_first" }

func (GridFirst) Flags(date SimDate) DispatchFlags {
	return DispatchFlags{GridImport: true, GridExport: true, SellRenewablesToGrid: true}
}

// OffGrid never imports: renewables, battery and generator carry the whole
// load, and any remainder is unmet demand.
type OffGrid struct{}

func (OffGrid) Name() string { return "off_grid" }

func (OffGrid) Flags(date SimDate) DispatchFlags {
	return DispatchFlags{UseRenewables: true, UseBattery: true, UseGenerator: true}
}

// =============================================================================
// BUNDLES
// =============================================================================

// RenewableFirstBundle is the baseline self-sufficiency posture.
func RenewableFirstBundle() Policies {
	split, _ := NewFixedSplit("mixed_processing", map[ProductType]float64{
		ProductFresh: 0.40, ProductPackaged: 0.30, ProductCanned: 0.20, ProductDried: 0.10,
	})
	return Policies{
		Crop:     FixedCalendar{},
		Water:    AlwaysGroundwater{},
		Energy:   RenewableFirst{},
		Food:     split,
		Market:   SellAtHarvest{},
		Economic: DistressWatch{CostRevenueRatioLimit: 1.5},
	}
}

// GridFirstBundle leans on municipal and grid supply.
func GridFirstBundle() Policies {
	return Policies{
		Crop:     FixedCalendar{},
		Water:    AlwaysMunicipal{},
		Energy:   GridFirst{},
		Food:     AllFresh{},
		Market:   SellAtHarvest{},
		Economic: DistressWatch{},
	}
}

// ConservationBundle stretches the aquifer and storage life.
func ConservationBundle() Policies {
	split, _ := NewFixedSplit("preserve_heavy", map[ProductType]float64{
		ProductFresh: 0.20, ProductPackaged: 0.20, ProductCanned: 0.35, ProductDried: 0.25,
	})
	return Policies{
		Crop:     FixedCalendar{},
		Water:    QuotaEnforced{},
		Energy:   RenewableFirst{},
		Food:     split,
		Market:   HoldForPrice{ThresholdPerKg: 1.0, MaxHoldDays: 30},
		Economic: DistressWatch{CostRevenueRatioLimit: 1.2},
	}
}
