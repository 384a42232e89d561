// Package trial holds the pure time arithmetic for trial periods: end-date
// computation, expiry checks, and remaining-day calculations. Functions take
// explicit time values so callers can inject a clock in tests.
package trial

import (
	"math"
	"time"
)

// Days is the fixed trial length granted to every new subscription.
const Days = 14

// EndAt returns when a trial started at the given time ends.
func EndAt(startedAt time.Time) time.Time {
	return startedAt.AddDate(0, 0, Days).UTC()
}

// ExpiredAt reports whether a trial ending at endsAt has expired at now.
func ExpiredAt(endsAt, now time.Time) bool {
	return now.After(endsAt)
}

// DaysRemainingAt returns the number of days left in a trial at the given
// time, rounding partial days up: a live trial never reports zero days, so
// the UI never under-promises. Returns 0 once the trial has expired.
func DaysRemainingAt(endsAt, now time.Time) int {
	remaining := endsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
