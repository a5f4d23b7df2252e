package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/farmsim/sim"
)

func TestSimDate_MonthEndForAllMonthLengths(t *testing.T) {
	// Month-end drives debt amortization, so it must be exact for
	// 28/29/30/31-day months.
	assert.True(t, sim.NewDate(2026, time.January, 31).IsMonthEnd())
	assert.True(t, sim.NewDate(2026, time.February, 28).IsMonthEnd())
	assert.True(t, sim.NewDate(2028, time.February, 29).IsMonthEnd(), "leap year")
	assert.False(t, sim.NewDate(2028, time.February, 28).IsMonthEnd(), "leap year")
	assert.True(t, sim.NewDate(2026, time.April, 30).IsMonthEnd())
	assert.False(t, sim.NewDate(2026, time.April, 29).IsMonthEnd())
	assert.True(t, sim.NewDate(2026, time.December, 31).IsYearEnd())
}

func TestSimDate_DaysBetween(t *testing.T) {
	a := sim.NewDate(2026, time.January, 1)
	b := sim.NewDate(2026, time.March, 1)

	assert.Equal(t, 59, sim.DaysBetween(a, b))
	assert.Equal(t, -59, sim.DaysBetween(b, a))
	assert.Equal(t, 0, sim.DaysBetween(a, a))
}

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := sim.ParseDate("2026-07-15")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-15", d.String())

	_, err = sim.ParseDate("not-a-date")
	assert.Error(t, err)
}
