package sim

import (
	"fmt"
	"time"
)

// =============================================================================
// SIM DATE - Day-granularity calendar point
// =============================================================================

// SimDate is one simulated calendar day. The engine never resolves below a
// day, so all comparisons normalize to midnight UTC.
type SimDate struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) SimDate {
	return SimDate{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateFromTime(t time.Time) SimDate {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (SimDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return SimDate{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateFromTime(t), nil
}

// Comparison
func (d SimDate) Before(other SimDate) bool        { return d.normalize().Before(other.normalize()) }
func (d SimDate) Equal(other SimDate) bool         { return d.normalize().Equal(other.normalize()) }
func (d SimDate) After(other SimDate) bool         { return d.normalize().After(other.normalize()) }
func (d SimDate) BeforeOrEqual(other SimDate) bool { return d.Before(other) || d.Equal(other) }
func (d SimDate) AfterOrEqual(other SimDate) bool  { return d.After(other) || d.Equal(other) }

func (d SimDate) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d SimDate) AddDays(n int) SimDate   { return SimDate{Time: d.Time.AddDate(0, 0, n)} }
func (d SimDate) AddMonths(n int) SimDate { return SimDate{Time: d.Time.AddDate(0, n, 0)} }
func (d SimDate) AddYears(n int) SimDate  { return SimDate{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d SimDate) Year() int         { return d.Time.Year() }
func (d SimDate) Month() time.Month { return d.Time.Month() }
func (d SimDate) Day() int          { return d.Time.Day() }
func (d SimDate) DayOfYear() int    { return d.Time.YearDay() }
func (d SimDate) IsZero() bool      { return d.Time.IsZero() }

// Boundary predicates. The orchestrator fires monthly and yearly postings off
// these, so month-end must be exact for 28/29/30/31-day months.
func (d SimDate) IsMonthStart() bool { return d.Day() == 1 }
func (d SimDate) IsMonthEnd() bool   { return d.AddDays(1).Day() == 1 }
func (d SimDate) IsYearStart() bool  { return d.Month() == time.January && d.Day() == 1 }
func (d SimDate) IsYearEnd() bool    { return d.Month() == time.December && d.Day() == 31 }

// MonthKey returns a YYYY-MM key for monthly aggregation maps.
func (d SimDate) MonthKey() string { return d.Time.Format("2006-01") }

func (d SimDate) String() string { return d.Time.Format("2006-01-02") }

// DaysBetween returns the whole days from 'from' to 'to' (negative if
// 'to' precedes 'from').
func DaysBetween(from, to SimDate) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// SameMonthDay reports whether d falls on the given recurring month/day.
func (d SimDate) SameMonthDay(month time.Month, day int) bool {
	return d.Month() == month && d.Day() == day
}
