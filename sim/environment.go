/*
environment.go - Layer-1 data contract: read-only environmental lookups

PURPOSE:
  The engine never computes weather, PV/wind yield curves, crop water demand
  or treatment energy itself. Those are pre-computed upstream and consumed
  here through the Environment interface as indexed lookups.

EXTRAPOLATION RULE:
  A date outside the covered range deterministically extrapolates to the
  nearest available value. Lookups never return NaN and never error; a
  missing irrigation entry means "no irrigation required" and returns zero.

SEE ALSO:
  - pricing.go: diesel price goes through the same nearest-value rule
  - montecarlo.go: PerturbedEnvironment wraps this interface with noise
*/
package sim

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENVIRONMENT - Read-only lookups keyed by date
// =============================================================================

// Weather is one day of pre-computed weather.
type Weather struct {
	TempC  float64
	RainMM float64
	ETOmm  float64 // reference evapotranspiration
}

// Environment provides every pre-computed input the daily step consumes.
// All methods are total: out-of-range dates extrapolate, missing keys
// return zero demand.
type Environment interface {
	// Weather returns the day's weather.
	Weather(date SimDate) Weather

	// IrrigationDemand returns the m3 of irrigation water one hectare of
	// the crop needs on 'date', for a cycle planted on 'planting'.
	IrrigationDemand(crop CropName, planting, date SimDate) float64

	// PVOutput returns kWh produced per installed kW on 'date'.
	PVOutput(date SimDate) float64

	// WindOutput returns kWh produced per installed kW on 'date'.
	WindOutput(date SimDate) float64

	// TreatmentEnergy returns the kWh needed to treat one m3 of
	// groundwater at the given salinity.
	TreatmentEnergy(salinityPPM float64) float64

	// DieselPrice returns the USD/L diesel price on 'date'.
	DieselPrice(date SimDate) decimal.Decimal
}

// =============================================================================
// TABLE ENVIRONMENT - Map-backed implementation
// =============================================================================

// dateSeries is a date-keyed float series with nearest-value extrapolation.
type dateSeries struct {
	byDate map[string]float64
	sorted []string // lazily built sorted keys
}

func newDateSeries(byDate map[string]float64) *dateSeries {
	s := &dateSeries{byDate: byDate}
	for k := range byDate {
		s.sorted = append(s.sorted, k)
	}
	sort.Strings(s.sorted)
	return s
}

// at returns the value for the date, extrapolating to the nearest covered
// date when out of range. Empty series returns the fallback.
func (s *dateSeries) at(date SimDate, fallback float64) float64 {
	if s == nil || len(s.sorted) == 0 {
		return fallback
	}
	key := date.String()
	if v, ok := s.byDate[key]; ok {
		return v
	}
	// Nearest neighbour: the covered date closest to the request.
	i := sort.SearchStrings(s.sorted, key)
	if i == 0 {
		return s.byDate[s.sorted[0]]
	}
	if i >= len(s.sorted) {
		return s.byDate[s.sorted[len(s.sorted)-1]]
	}
	before, after := s.sorted[i-1], s.sorted[i]
	db, _ := ParseDate(before)
	da, _ := ParseDate(after)
	if DaysBetween(db, date) <= DaysBetween(date, da) {
		return s.byDate[before]
	}
	return s.byDate[after]
}

// IrrigationKey builds the composite key for irrigation demand tables.
func IrrigationKey(crop CropName, planting, date SimDate) string {
	return string(crop) + "|" + planting.String() + "|" + date.String()
}

// TableEnvironment implements Environment from in-memory tables. It is the
// form the Layer-1 pre-computation hands over; tests build small ones
// directly.
type TableEnvironment struct {
	WeatherByDate     map[string]Weather
	IrrigationByKey   map[string]float64 // key: IrrigationKey()
	TreatmentKWhPerM3 float64            // flat treatment-energy curve value

	pv     *dateSeries
	wind   *dateSeries
	diesel *dateSeries
}

// NewTableEnvironment wires the series with extrapolation support.
func NewTableEnvironment(
	weather map[string]Weather,
	irrigation map[string]float64,
	pvByDate, windByDate, dieselByDate map[string]float64,
	treatmentKWhPerM3 float64,
) *TableEnvironment {
	return &TableEnvironment{
		WeatherByDate:     weather,
		IrrigationByKey:   irrigation,
		TreatmentKWhPerM3: treatmentKWhPerM3,
		pv:                newDateSeries(pvByDate),
		wind:              newDateSeries(windByDate),
		diesel:            newDateSeries(dieselByDate),
	}
}

func (e *TableEnvironment) Weather(date SimDate) Weather {
	if w, ok := e.WeatherByDate[date.String()]; ok {
		return w
	}
	return Weather{}
}

func (e *TableEnvironment) IrrigationDemand(crop CropName, planting, date SimDate) float64 {
	return e.IrrigationByKey[IrrigationKey(crop, planting, date)]
}

func (e *TableEnvironment) PVOutput(date SimDate) float64 {
	return e.pv.at(date, 0)
}

func (e *TableEnvironment) WindOutput(date SimDate) float64 {
	return e.wind.at(date, 0)
}

func (e *TableEnvironment) TreatmentEnergy(salinityPPM float64) float64 {
	return e.TreatmentKWhPerM3
}

func (e *TableEnvironment) DieselPrice(date SimDate) decimal.Decimal {
	return decimal.NewFromFloat(e.diesel.at(date, 0))
}
