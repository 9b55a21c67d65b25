package engine

import (
	"context"
	"time"

	"ivakdev/gymquest/internal/domain"
)

// CapContext carries the cap decision across every XP grant of one
// submission: once a Power Day activates, the elevated cap covers the
// workout award and any achievement rewards that follow, and the ledger is
// charged exactly once.
type CapContext struct {
	ActiveCap       int
	IsPowerDay      bool
	PowerDayCharged bool // a ledger use was consumed and may need release on abort
	ISOYear         int
	ISOWeek         int
}

// NewCapContext starts a cap context at the standard cap for the week
// containing now.
func NewCapContext(now time.Time, loc *time.Location) *CapContext {
	isoYear, isoWeek := ISOWeekOf(now, loc)
	return &CapContext{
		ActiveCap: StandardDailyCap,
		ISOYear:   isoYear,
		ISOWeek:   isoWeek,
	}
}

// DailyCapEnforcer clamps proposed XP grants against the user's daily
// allowance, electing a Power Day when the trigger conditions hold.
type DailyCapEnforcer struct {
	ledger *PowerDayLedger
}

// NewDailyCapEnforcer creates a new DailyCapEnforcer.
func NewDailyCapEnforcer(ledger *PowerDayLedger) *DailyCapEnforcer {
	return &DailyCapEnforcer{ledger: ledger}
}

// rollDailyWindow resets dailyXP when now has crossed into a new local
// calendar day. The reset happens only here; dailyXP is never decremented
// otherwise.
func rollDailyWindow(state *domain.UserRewardState, now time.Time) {
	day := localDate(now, state.Location())
	if state.DailyXPDate != day {
		state.DailyXP = 0
		state.DailyXPDate = day
	}
}

// Apply clamps proposedXP against the active daily cap and credits the
// award to the state in memory (dailyXP, totalXP, level).
//
// A submission becomes a Power Day only when all three hold: the user
// already completed another activity earlier the same local day, the
// projected dailyXP would strictly exceed the standard cap, and the ledger
// confirms an available use and successfully records it. The elevated cap
// then stays active for the rest of the cap context.
//
// Returns the awarded XP and, when the cap reduced the award, the original
// proposed value.
func (e *DailyCapEnforcer) Apply(
	ctx context.Context,
	state *domain.UserRewardState,
	proposedXP int,
	now time.Time,
	hadPriorActivityToday bool,
	capCtx *CapContext,
) (awarded int, cappedFrom *int, err error) {
	if proposedXP < 0 {
		proposedXP = 0
	}

	rollDailyWindow(state, now)

	if !capCtx.IsPowerDay &&
		hadPriorActivityToday &&
		state.DailyXP+proposedXP > StandardDailyCap {
		recorded, recErr := e.ledger.RecordUsage(ctx, state.UserID, capCtx.ISOYear, capCtx.ISOWeek)
		if recErr != nil {
			return 0, nil, recErr
		}
		if recorded {
			capCtx.IsPowerDay = true
			capCtx.PowerDayCharged = true
			capCtx.ActiveCap = PowerDayDailyCap
		}
	}

	headroom := capCtx.ActiveCap - state.DailyXP
	if headroom < 0 {
		headroom = 0
	}

	awarded = proposedXP
	if awarded > headroom {
		awarded = headroom
		original := proposedXP
		cappedFrom = &original
	}

	state.DailyXP += awarded
	state.TotalXP += awarded
	state.Level = LevelForXP(state.TotalXP)

	return awarded, cappedFrom, nil
}

// ApplyExempt credits XP that bypasses the daily cap (cap-exempt
// achievement rewards). It neither consumes daily headroom nor triggers a
// Power Day.
func (e *DailyCapEnforcer) ApplyExempt(state *domain.UserRewardState, xp int) int {
	if xp < 0 {
		xp = 0
	}
	state.TotalXP += xp
	state.Level = LevelForXP(state.TotalXP)
	return xp
}
