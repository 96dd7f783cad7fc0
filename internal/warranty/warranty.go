// Package warranty is the pure warranty engine shared by the articles
// service (purchase creation/update, on-demand verification) and the
// interventions service (flag copied at creation time).
package warranty

import "time"

// End returns the warranty expiry: purchase date plus a number of
// calendar months. Day overflow clamps to the last day of the target
// month (Jan 31 + 1 month = Feb 28/29), which is what the billing rules
// expect; time.AddDate would normalise into March instead.
func End(purchase time.Time, months int) time.Time {
	year := purchase.Year()
	month := int(purchase.Month()) - 1 + months
	year += month / 12
	month = month % 12
	if month < 0 {
		month += 12
		year--
	}
	target := time.Month(month + 1)

	day := purchase.Day()
	if last := daysIn(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day,
		purchase.Hour(), purchase.Minute(), purchase.Second(), purchase.Nanosecond(),
		purchase.Location())
}

// IsUnderWarranty reports whether now falls inside the warranty window.
// The boundary is inclusive: the expiry day itself is still covered.
func IsUnderWarranty(now, end time.Time) bool {
	return !now.After(end)
}

func daysIn(year int, m time.Month) int {
	// day 0 of the next month is the last day of m
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
