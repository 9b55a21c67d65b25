package engine

import (
	"math"

	"ivakdev/gymquest/internal/domain"
)

// RuleVersion identifies the revision of the reward constants below. Bump
// it whenever a value or table changes so persisted audit data can be
// traced back to the rules that produced it.
const RuleVersion = 3

// Reward constants. This table is the single owner of every cap and bonus
// value in the engine; nothing else may hard-code an XP number.
const (
	// Daily XP caps.
	StandardDailyCap = 300
	PowerDayDailyCap = 500

	// Power Day uses allowed per ISO week.
	PowerDayWeeklyLimit = 2

	// Per-component XP.
	BaseExerciseXP        = 10 // per exercise with at least one completed set
	BaseSetXP             = 2  // per completed set, up to MaxXPContributingSets
	MaxXPContributingSets = 30 // sets beyond this earn nothing
	PersonalRecordBonus   = 25 // flat, added outside the multiplicative chain

	// Upper bound of the time XP table.
	TimeXPMax = 90

	// Streak multiplier ceiling, reached at MaxStreakThreshold days.
	MaxStreakMultiplier = 1.5
	MaxStreakThreshold  = 30
)

// timeXPTiers maps workout duration (whole minutes reached) to time XP.
// Brackets widen as duration grows, so each additional bracket is worth
// less per minute; anything past the last tier earns no extra time XP.
var timeXPTiers = []struct {
	minutes int
	xp      int
}{
	{5, 10},
	{10, 15},
	{20, 30},
	{30, 45},
	{45, 60},
	{60, 75},
	{90, TimeXPMax},
}

// TimeXP returns the time component of a workout's XP, saturating at
// TimeXPMax.
func TimeXP(durationSeconds int) int {
	minutes := durationSeconds / 60
	xp := 0
	for _, tier := range timeXPTiers {
		if minutes < tier.minutes {
			break
		}
		xp = tier.xp
	}
	return xp
}

// StreakMultiplier returns the XP multiplier for a consecutive-day streak.
// Non-decreasing in streakDays and capped at MaxStreakMultiplier.
func StreakMultiplier(streakDays int) float64 {
	switch {
	case streakDays < 3:
		return 1.0
	case streakDays < 7:
		return 1.1
	case streakDays < 14:
		return 1.2
	case streakDays < MaxStreakThreshold:
		return 1.35
	default:
		return MaxStreakMultiplier
	}
}

// DifficultyMultiplier scales the base subtotal by the declared workout
// difficulty. Unknown or absent difficulty counts as novice.
func DifficultyMultiplier(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyMedium:
		return 1.15
	case domain.DifficultyAdvanced:
		return 1.3
	default:
		return 1.0
	}
}

// classBonus describes one class's passive: a bonus fraction applied when
// the workout's dominant category matches the class specialty.
type classBonus struct {
	category domain.ExerciseCategory
	fraction float64
}

var classBonuses = map[domain.ClassID]classBonus{
	domain.ClassWarrior: {domain.CategoryStrength, 0.15},
	domain.ClassRanger:  {domain.CategoryCardio, 0.15},
	domain.ClassMonk:    {domain.CategoryBodyweight, 0.10},
	domain.ClassSage:    {domain.CategoryFlexibility, 0.10},
}

// ClassBonusFor returns the bonus fraction a class earns on the given
// dominant category, or 0 when there is no match.
func ClassBonusFor(classID domain.ClassID, dominant domain.ExerciseCategory) float64 {
	if classID == "" || dominant == "" {
		return 0
	}
	b, ok := classBonuses[classID]
	if !ok || b.category != dominant {
		return 0
	}
	return b.fraction
}

// ValidClass reports whether the class ID is a known class.
func ValidClass(classID domain.ClassID) bool {
	_, ok := classBonuses[classID]
	return ok
}

// LevelForXP derives a user's level from total XP: reaching level n+1
// requires n^2 * 100 total XP, so levels get progressively farther apart.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return 1 + int(math.Sqrt(float64(totalXP)/100.0))
}

// roundXP is the single rounding rule used whenever a multiplier produces
// a fractional XP value.
func roundXP(v float64) int {
	return int(math.Round(v))
}
