package engine

import (
	"time"

	"ivakdev/gymquest/internal/domain"
)

// StreakResult reports the outcome of a streak update.
type StreakResult struct {
	StreakDays      int
	StreakIncreased bool
}

// localDate formats t as a date-only string (YYYY-MM-DD) in loc. Streak and
// daily-cap comparisons are calendar-day comparisons in the user's
// timezone, not rolling 24h windows.
func localDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// sameLocalDay reports whether a and b fall on the same calendar day in loc.
func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	return localDate(a, loc) == localDate(b, loc)
}

// isPreviousLocalDay reports whether prev falls on the calendar day
// immediately before now in loc. The shift happens on loc's wall clock,
// not now's; subtracting 24h of absolute time lands two days back when a
// DST transition shortens the day in between.
func isPreviousLocalDay(prev, now time.Time, loc *time.Location) bool {
	return localDate(prev, loc) == localDate(now.In(loc).AddDate(0, 0, -1), loc)
}

// UpdateStreak advances the consecutive-activity-day counter on the state,
// in memory. Activity on the previous calendar day extends the streak,
// activity on the same day leaves it unchanged, and any longer gap (or a
// first-ever activity) resets it to 1. Also records lastActivityAt.
// The caller persists the state.
func UpdateStreak(state *domain.UserRewardState, now time.Time) StreakResult {
	loc := state.Location()
	prevStreak := state.StreakDays

	switch {
	case state.LastActivityAt.IsZero():
		state.StreakDays = 1
	case sameLocalDay(state.LastActivityAt, now, loc):
		// Second workout the same day; streak unchanged.
	case isPreviousLocalDay(state.LastActivityAt, now, loc):
		state.StreakDays++
	default:
		state.StreakDays = 1
	}

	state.LastActivityAt = now

	return StreakResult{
		StreakDays:      state.StreakDays,
		StreakIncreased: state.StreakDays > prevStreak,
	}
}
