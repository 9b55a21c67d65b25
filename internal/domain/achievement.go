package domain

// Rank is the achievement tier ordinal, E (lowest) through S (highest).
type Rank string

const (
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

// rankOrder maps ranks to their ordinal for sorting. Unknown ranks sort
// last so a bad catalog entry cannot jump the queue.
var rankOrder = map[Rank]int{
	RankE: 0, RankD: 1, RankC: 2, RankB: 3, RankA: 4, RankS: 5,
}

// Ordinal returns the sort position of the rank, lowest first.
func (r Rank) Ordinal() int {
	if o, ok := rankOrder[r]; ok {
		return o
	}
	return len(rankOrder)
}

// Valid reports whether the rank is one of the known tiers.
func (r Rank) Valid() bool {
	_, ok := rankOrder[r]
	return ok
}

// RequirementType names the user counter an achievement thresholds on.
type RequirementType string

const (
	RequirementWorkoutCount  RequirementType = "workout_count"
	RequirementStreakDays    RequirementType = "streak_days"
	RequirementPRCount       RequirementType = "pr_count"
	RequirementTotalXP       RequirementType = "total_xp"
	RequirementLevel         RequirementType = "level"
	RequirementGuildMember   RequirementType = "guild_member"
	RequirementCategoryCount RequirementType = "category_count"
)

// Requirement is the threshold test an achievement unlocks on:
// currentValue >= TargetValue for the counter named by Type.
type Requirement struct {
	Type        RequirementType   `json:"type"`
	TargetValue int               `json:"targetValue"`
	Metadata    map[string]string `json:"metadata,omitempty"` // e.g. {"category": "strength"} for category_count
}

// AchievementDefinition is a static catalog entry. Immutable at runtime;
// the catalog is external configuration supplied to the engine.
type AchievementDefinition struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Category       string      `json:"category"`
	Rank           Rank        `json:"rank"`
	Requirement    Requirement `json:"requirement"`
	PrerequisiteID string      `json:"prerequisiteId,omitempty"` // must be unlocked before this one is evaluated
	XPReward       int         `json:"xpReward"`
	Points         int         `json:"points"`
	CapExempt      bool        `json:"capExempt,omitempty"` // reward XP bypasses the daily cap
}
