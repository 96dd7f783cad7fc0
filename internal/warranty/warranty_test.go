package warranty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEndAddsCalendarMonths(t *testing.T) {
	cases := []struct {
		name     string
		purchase time.Time
		months   int
		want     time.Time
	}{
		{"simple", date(2024, time.March, 15), 12, date(2025, time.March, 15)},
		{"zero months", date(2024, time.March, 15), 0, date(2024, time.March, 15)},
		{"year rollover", date(2023, time.November, 10), 3, date(2024, time.February, 10)},
		{"jan 31 clamps to feb 29 on leap year", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"jan 31 clamps to feb 28 otherwise", date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{"may 31 clamps to june 30", date(2024, time.May, 31), 1, date(2024, time.June, 30)},
		{"two years", date(2022, time.August, 1), 24, date(2024, time.August, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, End(tc.purchase, tc.months))
		})
	}
}

func TestEndKeepsTimeOfDayAndLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	purchase := time.Date(2024, time.June, 20, 14, 30, 5, 0, loc)
	end := End(purchase, 6)
	require.Equal(t, time.Date(2024, time.December, 20, 14, 30, 5, 0, loc), end)
}

func TestIsUnderWarrantyBoundaryInclusive(t *testing.T) {
	end := date(2025, time.April, 10)

	require.True(t, IsUnderWarranty(end, end), "expiry instant itself is covered")
	require.True(t, IsUnderWarranty(end.Add(-time.Hour), end))
	require.False(t, IsUnderWarranty(end.AddDate(0, 0, 1), end))
}

func TestEndMatchesIsUnderWarrantyForAnyDuration(t *testing.T) {
	purchase := date(2023, time.July, 7)
	for months := 0; months <= 36; months++ {
		end := End(purchase, months)
		require.True(t, IsUnderWarranty(end, end), "months=%d", months)
		require.False(t, IsUnderWarranty(end.AddDate(0, 0, 1), end), "months=%d", months)
	}
}
