/*
pricing.go - Multi-regime price resolution

PURPOSE:
  Resolves the price of one more unit of water or energy for a consumer
  regime on a given date. Four regimes exist:

    agricultural water   flat rate, yearly escalation
    agricultural energy  flat grid rate, yearly escalation
    domestic water       progressive tiered marginal rate when subsidized
                         (plus wastewater surcharge), flat otherwise
    domestic energy      flat rate, yearly escalation

  Diesel is a single time series with nearest-value extrapolation (via
  Environment). Grid export pays import price times the net-metering ratio.

FAILURE MODE:
  Price lookups never error and never return NaN. A date before coverage or
  a consumption level beyond the last tier falls back to the nearest /
  most-extreme defined value.

SEE ALSO:
  - environment.go: diesel series and extrapolation rule
  - economics.go: where resolved prices turn into daily costs
*/
package sim

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TARIFF CONFIGURATION
// =============================================================================

// WaterTier is one bracket of the subsidized domestic water tariff. A tier
// applies to monthly cumulative consumption up to MaxM3; the last tier may
// set MaxM3 <= 0 meaning unbounded.
type WaterTier struct {
	MaxM3 float64
	Rate  decimal.Decimal // USD per m3
}

// Tariffs is the immutable price book for a scenario.
type Tariffs struct {
	// Agricultural water (municipal supply) flat rate and yearly escalation.
	AgWaterPerM3      decimal.Decimal
	AgWaterEscalation float64

	// Domestic water: tiered when subsidized, flat otherwise.
	DomesticSubsidized  bool
	DomesticTiers       []WaterTier
	DomesticWaterPerM3  decimal.Decimal // unsubsidized flat rate
	WastewaterSurcharge float64         // multiplier on tiered rates, e.g. 0.25
	DomesticEscalation  float64

	// Grid energy.
	GridPerKWh       decimal.Decimal
	GridEscalation   float64
	NetMeteringRatio float64 // export price = import price * ratio

	// Farmgate product prices: per-crop base price times a pathway
	// multiplier (processing adds value per kg of output).
	FarmgatePerKg     map[CropName]decimal.Decimal
	ProductMultiplier map[ProductType]float64
}

// DefaultNetMeteringRatio applies when a scenario leaves the ratio unset.
const DefaultNetMeteringRatio = 0.70

// =============================================================================
// PRICING RESOLVER
// =============================================================================

// PricingResolver answers "what does the next unit cost today".
type PricingResolver struct {
	Tariffs   Tariffs
	Env       Environment
	StartYear int // escalation anchor
}

func NewPricingResolver(t Tariffs, env Environment, startYear int) *PricingResolver {
	if t.NetMeteringRatio <= 0 {
		t.NetMeteringRatio = DefaultNetMeteringRatio
	}
	return &PricingResolver{Tariffs: t, Env: env, StartYear: startYear}
}

// ResolvePrice returns the USD price of the next unit for the given
// consumer/resource regime. monthlyCumM3 is only consulted for subsidized
// domestic water (tier selection).
func (p *PricingResolver) ResolvePrice(consumer ConsumerType, resource ResourceKind, date SimDate, monthlyCumM3 float64) decimal.Decimal {
	switch {
	case resource == ResourceEnergy:
		// Same grid tariff for both regimes; escalated.
		return p.escalate(p.Tariffs.GridPerKWh, p.Tariffs.GridEscalation, date)

	case consumer == ConsumerAgricultural:
		return p.escalate(p.Tariffs.AgWaterPerM3, p.Tariffs.AgWaterEscalation, date)

	case p.Tariffs.DomesticSubsidized:
		return p.tieredDomesticRate(monthlyCumM3)

	default:
		return p.escalate(p.Tariffs.DomesticWaterPerM3, p.Tariffs.DomesticEscalation, date)
	}
}

// GridImportPrice is the agricultural/domestic energy rate for the date.
func (p *PricingResolver) GridImportPrice(date SimDate) decimal.Decimal {
	return p.ResolvePrice(ConsumerAgricultural, ResourceEnergy, date, 0)
}

// GridExportPrice is the import price scaled by the net-metering ratio.
func (p *PricingResolver) GridExportPrice(date SimDate) decimal.Decimal {
	return MulFloat(p.GridImportPrice(date), p.Tariffs.NetMeteringRatio)
}

// DieselPrice delegates to the environment series (nearest-value rule).
func (p *PricingResolver) DieselPrice(date SimDate) decimal.Decimal {
	return p.Env.DieselPrice(date)
}

// ProductPrice returns the USD/kg sale price for a crop sold through a
// processing pathway. Unknown crops price at zero; an unknown pathway
// multiplier defaults to 1.0 (fresh).
func (p *PricingResolver) ProductPrice(product ProductType, crop CropName) decimal.Decimal {
	base, ok := p.Tariffs.FarmgatePerKg[crop]
	if !ok {
		return decimal.Zero
	}
	mult, ok := p.Tariffs.ProductMultiplier[product]
	if !ok {
		mult = 1.0
	}
	return MulFloat(base, mult)
}

// escalate applies price = base * (1+rate)^(year - startYear). Dates before
// the start year clamp to the base price.
func (p *PricingResolver) escalate(base decimal.Decimal, rate float64, date SimDate) decimal.Decimal {
	years := date.Year() - p.StartYear
	if years <= 0 || rate == 0 {
		return base
	}
	return MulFloat(base, math.Pow(1+rate, float64(years)))
}

// tieredDomesticRate returns the marginal rate of the NEXT m3 given the
// month's cumulative consumption, with the wastewater surcharge applied.
// Consumption beyond the last bracket falls back to the last defined rate.
func (p *PricingResolver) tieredDomesticRate(monthlyCumM3 float64) decimal.Decimal {
	tiers := p.Tariffs.DomesticTiers
	if len(tiers) == 0 {
		return MulFloat(p.Tariffs.DomesticWaterPerM3, 1+p.Tariffs.WastewaterSurcharge)
	}
	rate := tiers[len(tiers)-1].Rate
	for _, t := range tiers {
		if t.MaxM3 <= 0 || monthlyCumM3 < t.MaxM3 {
			rate = t.Rate
			break
		}
	}
	return MulFloat(rate, 1+p.Tariffs.WastewaterSurcharge)
}
