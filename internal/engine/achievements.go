package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"ivakdev/gymquest/internal/domain"
)

// AchievementCatalog is the read-only achievement configuration the
// evaluator consumes. Definitions returns entries in stable catalog order.
type AchievementCatalog interface {
	Definitions() []domain.AchievementDefinition
}

// Unlock describes one achievement that transitioned to unlocked during a
// pipeline run, with the XP actually credited after cap enforcement.
type Unlock struct {
	Definition domain.AchievementDefinition
	AwardedXP  int
}

// AchievementEvaluator drives the Locked -> Unlocked state machine. The
// transition is terminal: once unlockedAt is set the entry is never
// re-evaluated, re-locked, or re-rewarded.
type AchievementEvaluator struct {
	catalog  AchievementCatalog
	enforcer *DailyCapEnforcer
}

// NewAchievementEvaluator creates a new AchievementEvaluator.
func NewAchievementEvaluator(catalog AchievementCatalog, enforcer *DailyCapEnforcer) *AchievementEvaluator {
	return &AchievementEvaluator{catalog: catalog, enforcer: enforcer}
}

// currentValue resolves the user counter an achievement thresholds on.
// A ConfigError means the catalog entry is malformed; the caller logs it
// and skips the entry without failing the submission.
func currentValue(state *domain.UserRewardState, def *domain.AchievementDefinition) (int, error) {
	switch def.Requirement.Type {
	case domain.RequirementWorkoutCount:
		return state.WorkoutCount, nil
	case domain.RequirementStreakDays:
		return state.StreakDays, nil
	case domain.RequirementPRCount:
		return state.PRCount, nil
	case domain.RequirementTotalXP:
		return state.TotalXP, nil
	case domain.RequirementLevel:
		return state.Level, nil
	case domain.RequirementGuildMember:
		if state.GuildID != nil {
			return 1, nil
		}
		return 0, nil
	case domain.RequirementCategoryCount:
		category := def.Requirement.Metadata["category"]
		if category == "" {
			return 0, &ConfigError{AchievementID: def.ID, Reason: "category_count requirement is missing its category"}
		}
		return state.CategoryCounts[category], nil
	default:
		return 0, &ConfigError{AchievementID: def.ID, Reason: "unknown requirement type " + string(def.Requirement.Type)}
	}
}

// Evaluate re-tests every still-locked achievement against the user's
// counters and unlocks the satisfied ones. Runs to a fixpoint so that an
// unlock which satisfies a dependent's prerequisite (or pushes total XP or
// level over a threshold) cascades within the same submission.
//
// Unlock order within a pass is ascending rank, then catalog order, which
// fixes the notification ordering. Reward XP flows through the same cap
// context as the workout award unless the definition is cap-exempt.
// The state is mutated in memory; the caller persists it.
func (ev *AchievementEvaluator) Evaluate(
	ctx context.Context,
	state *domain.UserRewardState,
	now time.Time,
	hadPriorActivityToday bool,
	capCtx *CapContext,
) ([]Unlock, error) {
	defs := ev.catalog.Definitions()

	// Evaluation order: ascending rank, catalog order as tiebreak.
	ordered := make([]int, len(defs))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return defs[ordered[a]].Rank.Ordinal() < defs[ordered[b]].Rank.Ordinal()
	})

	if state.Progress == nil {
		state.Progress = make(map[string]domain.AchievementProgress)
	}

	var unlocks []Unlock
	for {
		unlockedThisPass := false

		for _, idx := range ordered {
			def := defs[idx]

			progress := state.Progress[def.ID]
			if progress.Unlocked() {
				continue
			}

			// Prerequisite edge: excluded from evaluation until the
			// prerequisite's unlock is recorded. A satisfied dependent then
			// unlocks on a later pass of this same loop, or on the next
			// submission, with no extra trigger.
			if def.PrerequisiteID != "" && !state.Progress[def.PrerequisiteID].Unlocked() {
				continue
			}

			current, err := currentValue(state, &def)
			if err != nil {
				log.Printf("WARN: skipping achievement: %v", err)
				continue
			}

			// Keep the progress counter fresh even when the threshold is
			// not met yet; entries appear on the first relevant event.
			if current != progress.CurrentValue {
				progress.CurrentValue = current
				state.Progress[def.ID] = progress
			}

			if current < def.Requirement.TargetValue {
				continue
			}

			unlockedAt := now
			progress.CurrentValue = current
			progress.UnlockedAt = &unlockedAt
			state.Progress[def.ID] = progress

			awarded := 0
			if def.XPReward > 0 {
				if def.CapExempt {
					awarded = ev.enforcer.ApplyExempt(state, def.XPReward)
				} else {
					awarded, _, err = ev.enforcer.Apply(ctx, state, def.XPReward, now, hadPriorActivityToday, capCtx)
					if err != nil {
						return unlocks, err
					}
				}
			}

			unlocks = append(unlocks, Unlock{Definition: def, AwardedXP: awarded})
			unlockedThisPass = true
		}

		if !unlockedThisPass {
			break
		}
	}

	return unlocks, nil
}
