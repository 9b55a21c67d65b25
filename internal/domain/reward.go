package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClassID identifies a selectable character class. Each class grants a
// bonus on workouts whose dominant category matches the class's specialty.
type ClassID string

const (
	ClassWarrior ClassID = "warrior" // strength specialist
	ClassRanger  ClassID = "ranger"  // cardio specialist
	ClassMonk    ClassID = "monk"    // bodyweight specialist
	ClassSage    ClassID = "sage"    // flexibility specialist
)

// AchievementProgress tracks one user's progress toward a single
// achievement. Once UnlockedAt is set the entry is read-only.
type AchievementProgress struct {
	CurrentValue int        `bson:"currentValue" json:"currentValue"`
	UnlockedAt   *time.Time `bson:"unlockedAt,omitempty" json:"unlockedAt,omitempty"`
}

// Unlocked reports whether this achievement has been earned.
func (p AchievementProgress) Unlocked() bool {
	return p.UnlockedAt != nil
}

// UserRewardState is the engine-owned gameplay state for one user. It is
// created lazily on first submission and mutated only through the reward
// pipeline. Version backs the optimistic-concurrency check on writes.
type UserRewardState struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID primitive.ObjectID `bson:"userId" json:"userId"`

	DailyXP     int    `bson:"dailyXP" json:"dailyXP"`
	DailyXPDate string `bson:"dailyXPDate" json:"dailyXPDate"` // local calendar day (YYYY-MM-DD) DailyXP belongs to
	TotalXP     int    `bson:"totalXP" json:"totalXP"`         // monotonically non-decreasing
	Level       int    `bson:"level" json:"level"`

	StreakDays     int       `bson:"streakDays" json:"streakDays"`
	LastActivityAt time.Time `bson:"lastActivityAt" json:"lastActivityAt"`
	Timezone       string    `bson:"timezone" json:"timezone"` // IANA name, fixed at first submission

	ClassID ClassID             `bson:"classId,omitempty" json:"classId,omitempty"`
	GuildID *primitive.ObjectID `bson:"guildId,omitempty" json:"guildId,omitempty"`

	WorkoutCount   int                      `bson:"workoutCount" json:"workoutCount"`
	PRCount        int                      `bson:"prCount" json:"prCount"`
	CategoryCounts map[string]int           `bson:"categoryCounts,omitempty" json:"categoryCounts,omitempty"`
	Progress       map[string]AchievementProgress `bson:"achievementProgress,omitempty" json:"achievementProgress,omitempty"`

	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Location resolves the user's timezone, falling back to UTC when unset or
// invalid.
func (s *UserRewardState) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// PowerDayUsage tracks how many times a user has consumed the Power Day
// cap override within one ISO week. Unique per (user, year, week); rows are
// created lazily on first use.
type PowerDayUsage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	ISOYear    int                `bson:"isoYear" json:"isoYear"`
	ISOWeek    int                `bson:"isoWeek" json:"isoWeek"`
	UsageCount int                `bson:"usageCount" json:"usageCount"` // never exceeds the weekly cap
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// BonusLine is one labeled contributor in a reward breakdown.
type BonusLine struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// RewardResult is the bundle returned to the caller after a submission.
// Not persisted.
type RewardResult struct {
	AwardedXP      int         `json:"awardedXP"`
	CappedFrom     *int        `json:"cappedFrom,omitempty"` // pre-cap value when the cap reduced the award
	IsPowerDay     bool        `json:"isPowerDay"`
	BonusBreakdown []BonusLine `json:"bonusBreakdown"`
	NewlyUnlocked  []string    `json:"newlyUnlocked"`
	AchievementXP  int         `json:"achievementXP"` // capped XP granted by unlocks during this submission
	StreakDays     int         `json:"streakDays"`
}

// UnlockEvent is an append-only audit record of an achievement unlock, used
// for notification fan-out.
type UnlockEvent struct {
	ID            string             `bson:"_id" json:"id"` // uuid, doubles as idempotency key
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	AchievementID string             `bson:"achievementId" json:"achievementId"`
	XPAwarded     int                `bson:"xpAwarded" json:"xpAwarded"`
	Points        int                `bson:"points" json:"points"`
	UnlockedAt    time.Time          `bson:"unlockedAt" json:"unlockedAt"`
}
