package search

import "time"

// Recency window tiers. The widest window doubles as "no restriction in
// practice" for targets that never ran.
const (
	WindowHour  = time.Hour
	WindowDay   = 24 * time.Hour
	WindowWeek  = 7 * 24 * time.Hour
	WindowMonth = 30 * 24 * time.Hour
)

// recencyTolerance widens each tier slightly so a run scheduled exactly one
// tier apart does not slip into the next one.
const recencyTolerance = 0.04

// RecencyWindow returns the recency filter to use for the next crawl of a
// target, based on the time elapsed since its last completed run. Tiers are
// checked in increasing order, each inflated by the tolerance; anything
// beyond the widest tier, including a target that never ran, gets the month
// window.
func RecencyWindow(lastExecutedAt *time.Time, now time.Time) time.Duration {
	if lastExecutedAt == nil {
		return WindowMonth
	}
	elapsed := now.Sub(*lastExecutedAt)
	for _, tier := range []time.Duration{WindowHour, WindowDay, WindowWeek} {
		if float64(elapsed) <= float64(tier)*(1+recencyTolerance) {
			return tier
		}
	}
	return WindowMonth
}
