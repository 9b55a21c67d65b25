package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userLocks hands out a mutex per user ID so concurrent submissions from
// the same user serialize while different users never contend.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *userLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	lock, ok := l.m[id]
	if !ok {
		lock = &sync.Mutex{}
		l.m[id] = lock
	}
	return lock
}

// Pipeline orchestrates a workout submission end to end: validate, update
// the streak, compute the reward, enforce the daily cap, persist the state
// delta, evaluate achievements, and return the result bundle.
//
// Submissions for one user run under a per-user lock for the whole
// sequence; the version check on the state write and the conditional
// power-day increment guard independently against writers outside this
// process. A submission either commits fully or leaves state untouched.
type Pipeline struct {
	states    repository.RewardStateRepository
	events    repository.UnlockEventRepository
	ledger    *PowerDayLedger
	enforcer  *DailyCapEnforcer
	evaluator *AchievementEvaluator

	defaultTimezone string
	now             func() time.Time

	locks userLocks
}

// NewPipeline creates a new reward Pipeline.
func NewPipeline(
	states repository.RewardStateRepository,
	events repository.UnlockEventRepository,
	ledger *PowerDayLedger,
	catalog AchievementCatalog,
	defaultTimezone string,
) *Pipeline {
	enforcer := NewDailyCapEnforcer(ledger)
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &Pipeline{
		states:          states,
		events:          events,
		ledger:          ledger,
		enforcer:        enforcer,
		evaluator:       NewAchievementEvaluator(catalog, enforcer),
		defaultTimezone: defaultTimezone,
		now:             time.Now,
	}
}

// loadOrInitState fetches the user's reward state, lazily creating a zeroed
// one on first submission. The timezone is fixed at creation, from the
// submission when it names a valid location.
func (p *Pipeline) loadOrInitState(ctx context.Context, userID primitive.ObjectID, requestedTZ string) (*domain.UserRewardState, error) {
	state, err := p.states.GetByUserID(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &PersistenceError{Op: "load reward state", Err: err}
	}

	tz := p.defaultTimezone
	if requestedTZ != "" {
		if _, tzErr := time.LoadLocation(requestedTZ); tzErr == nil {
			tz = requestedTZ
		}
	}

	state = &domain.UserRewardState{
		UserID:         userID,
		Timezone:       tz,
		CategoryCounts: make(map[string]int),
		Progress:       make(map[string]domain.AchievementProgress),
	}
	if err := p.states.Create(ctx, state); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, &PersistenceError{Op: "init reward state", Err: err}
	}
	return state, nil
}

// Submit runs the full reward pipeline for one workout submission.
func (p *Pipeline) Submit(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error) {
	if err := ValidateSubmission(sub); err != nil {
		return nil, err
	}
	if userID == primitive.NilObjectID {
		return nil, &ValidationError{Field: "userId", Reason: "missing"}
	}

	now := sub.SubmittedAt
	if now.IsZero() {
		now = p.now()
	}

	lock := p.locks.get(userID.Hex())
	lock.Lock()
	defer lock.Unlock()

	state, err := p.loadOrInitState(ctx, userID, sub.Timezone)
	if err != nil {
		return nil, err
	}
	loc := state.Location()

	// Power Day eligibility needs "another completed activity earlier the
	// same day", judged before this submission touches the state.
	hadPriorActivityToday := !state.LastActivityAt.IsZero() &&
		sameLocalDay(state.LastActivityAt, now, loc)

	streak := UpdateStreak(state, now)

	comp := ComputeReward(sub, state.ClassID, state.StreakDays)

	capCtx := NewCapContext(now, loc)
	awarded, cappedFrom, err := p.enforcer.Apply(ctx, state, comp.TotalXP, now, hadPriorActivityToday, capCtx)
	if err != nil {
		return nil, err
	}

	// Counters feeding achievement requirements.
	state.WorkoutCount++
	if sub.HasPersonalRecord {
		state.PRCount++
	}
	if dominant := sub.DominantCategory(); dominant != "" {
		if state.CategoryCounts == nil {
			state.CategoryCounts = make(map[string]int)
		}
		state.CategoryCounts[string(dominant)]++
	}

	unlocks, err := p.evaluator.Evaluate(ctx, state, now, hadPriorActivityToday, capCtx)
	if err != nil {
		p.compensatePowerDay(userID, capCtx)
		return nil, err
	}

	if err := p.states.Update(ctx, state); err != nil {
		p.compensatePowerDay(userID, capCtx)
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, &PersistenceError{Op: "persist reward state", Err: err}
	}

	// State is committed; unlock events are audit/notification fan-out.
	// Idempotent event IDs make a retried append safe, and a failure here
	// must not fail the already-committed submission.
	if len(unlocks) > 0 {
		events := make([]domain.UnlockEvent, len(unlocks))
		for i, u := range unlocks {
			events[i] = domain.UnlockEvent{
				ID:            uuid.NewString(),
				UserID:        userID,
				AchievementID: u.Definition.ID,
				XPAwarded:     u.AwardedXP,
				Points:        u.Definition.Points,
				UnlockedAt:    now,
			}
		}
		if err := p.events.Append(ctx, events); err != nil {
			log.Printf("WARN: failed to append unlock events for user %s: %v", userID.Hex(), err)
		}
	}

	result := &domain.RewardResult{
		AwardedXP:      awarded,
		CappedFrom:     cappedFrom,
		IsPowerDay:     capCtx.IsPowerDay,
		BonusBreakdown: comp.Breakdown,
		StreakDays:     streak.StreakDays,
	}
	for _, u := range unlocks {
		result.NewlyUnlocked = append(result.NewlyUnlocked, u.Definition.ID)
		result.AchievementXP += u.AwardedXP
	}
	return result, nil
}

// compensatePowerDay returns a consumed Power Day use when the submission
// aborts after the ledger was charged, so no use is burned without XP
// granted. Best effort on a fresh context since the request context may
// already be dead.
func (p *Pipeline) compensatePowerDay(userID primitive.ObjectID, capCtx *CapContext) {
	if capCtx == nil || !capCtx.PowerDayCharged {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.ledger.ReleaseUsage(ctx, userID, capCtx.ISOYear, capCtx.ISOWeek); err != nil {
		log.Printf("ERROR: failed to release power day use for user %s: %v", userID.Hex(), err)
	}
}

// Preview computes the XP a submission would earn right now, with no side
// effects. Backed by the same calculator as Submit, so the preview can
// never drift from the actual award; the cap projection uses the standard
// cap only (a preview never consumes a Power Day).
func (p *Pipeline) Preview(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error) {
	if err := ValidateSubmission(sub); err != nil {
		return nil, err
	}

	now := sub.SubmittedAt
	if now.IsZero() {
		now = p.now()
	}

	// Work on a copy; a preview must not mutate anything.
	scratch := domain.UserRewardState{Timezone: p.defaultTimezone}
	state, err := p.states.GetByUserID(ctx, userID)
	if err == nil {
		scratch = *state
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, &PersistenceError{Op: "load reward state", Err: err}
	}

	streak := UpdateStreak(&scratch, now)
	comp := ComputeReward(sub, scratch.ClassID, scratch.StreakDays)

	rollDailyWindow(&scratch, now)
	headroom := StandardDailyCap - scratch.DailyXP
	if headroom < 0 {
		headroom = 0
	}
	awarded := comp.TotalXP
	var cappedFrom *int
	if awarded > headroom {
		original := awarded
		awarded = headroom
		cappedFrom = &original
	}

	return &domain.RewardResult{
		AwardedXP:      awarded,
		CappedFrom:     cappedFrom,
		BonusBreakdown: comp.Breakdown,
		StreakDays:     streak.StreakDays,
	}, nil
}

// GetState returns the user's reward state, read-only.
func (p *Pipeline) GetState(ctx context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error) {
	state, err := p.states.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, &PersistenceError{Op: "load reward state", Err: err}
	}
	return state, nil
}

// GetPowerDayStatus reports the user's Power Day allowance for the current
// ISO week in their local timezone.
func (p *Pipeline) GetPowerDayStatus(ctx context.Context, userID primitive.ObjectID) (PowerDayStatus, error) {
	loc := time.UTC
	if state, err := p.states.GetByUserID(ctx, userID); err == nil {
		loc = state.Location()
	}
	return p.ledger.CheckAvailability(ctx, userID, p.now(), loc)
}

// SelectClass sets the user's character class. Reward state is engine-owned,
// so even this small mutation goes through the pipeline's lock and
// versioned write.
func (p *Pipeline) SelectClass(ctx context.Context, userID primitive.ObjectID, classID domain.ClassID) error {
	if !ValidClass(classID) {
		return &ValidationError{Field: "classId", Reason: "unknown class"}
	}

	lock := p.locks.get(userID.Hex())
	lock.Lock()
	defer lock.Unlock()

	state, err := p.loadOrInitState(ctx, userID, "")
	if err != nil {
		return err
	}
	state.ClassID = classID
	if err := p.states.Update(ctx, state); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return &PersistenceError{Op: "persist class selection", Err: err}
	}
	return nil
}

// SetGuild records guild membership (or clears it with nil), feeding the
// guild_member achievement requirement.
func (p *Pipeline) SetGuild(ctx context.Context, userID primitive.ObjectID, guildID *primitive.ObjectID) error {
	lock := p.locks.get(userID.Hex())
	lock.Lock()
	defer lock.Unlock()

	state, err := p.loadOrInitState(ctx, userID, "")
	if err != nil {
		return err
	}
	state.GuildID = guildID
	if err := p.states.Update(ctx, state); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return &PersistenceError{Op: "persist guild membership", Err: err}
	}
	return nil
}
