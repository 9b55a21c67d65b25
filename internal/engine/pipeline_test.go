package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ivakdev/gymquest/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline *Pipeline
	states   *fakeStateRepo
	events   *fakeEventRepo
	powerDay *fakePowerDayRepo
}

func newPipelineFixture(defs ...domain.AchievementDefinition) *pipelineFixture {
	states := newFakeStateRepo()
	events := newFakeEventRepo()
	powerDay := newFakePowerDayRepo()
	ledger := NewPowerDayLedger(powerDay)
	return &pipelineFixture{
		pipeline: NewPipeline(states, events, ledger, staticCatalog{defs: defs}, "UTC"),
		states:   states,
		events:   events,
		powerDay: powerDay,
	}
}

func submissionAt(at time.Time, durationSeconds, exercises, completedSets int) *domain.WorkoutSubmission {
	sub := buildSubmission(durationSeconds, exercises, completedSets)
	sub.SubmittedAt = at
	return sub
}

func TestSubmitFirstWorkout(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	sub := submissionAt(at, 2700, 5, 3)
	sub.Timezone = "America/New_York"

	res, err := fx.pipeline.Submit(context.Background(), userID, sub)

	require.NoError(t, err)
	assert.Equal(t, 140, res.AwardedXP)
	assert.Nil(t, res.CappedFrom)
	assert.False(t, res.IsPowerDay)
	assert.Equal(t, 1, res.StreakDays)

	stored := fx.states.stored(userID)
	require.NotNil(t, stored)
	assert.Equal(t, "America/New_York", stored.Timezone, "timezone fixes at first submission")
	assert.Equal(t, 140, stored.TotalXP)
	assert.Equal(t, 1, stored.WorkoutCount)
	assert.Equal(t, 1, stored.StreakDays)
	assert.Equal(t, at, stored.LastActivityAt)
}

func TestSubmitRejectsInvalidSubmissionWithoutTouchingState(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()

	_, err := fx.pipeline.Submit(context.Background(), userID, &domain.WorkoutSubmission{DurationSeconds: -1})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "durationSeconds", vErr.Field)
	assert.Nil(t, fx.states.stored(userID), "invalid submissions leave no state behind")
}

func TestSubmitCountsPersonalRecordsAndCategories(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	sub := submissionAt(at, 1800, 2, 2)
	sub.HasPersonalRecord = true
	for i := range sub.Exercises {
		sub.Exercises[i].Category = domain.CategoryStrength
	}

	_, err := fx.pipeline.Submit(context.Background(), userID, sub)

	require.NoError(t, err)
	stored := fx.states.stored(userID)
	assert.Equal(t, 1, stored.PRCount)
	assert.Equal(t, 1, stored.CategoryCounts[string(domain.CategoryStrength)])
}

func TestSubmitSecondWorkoutOverCapBecomesPowerDay(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)

	fx.states.seed(&domain.UserRewardState{
		UserID:         userID,
		Timezone:       "UTC",
		DailyXP:        280,
		DailyXPDate:    "2026-03-10",
		TotalXP:        280,
		Level:          LevelForXP(280),
		StreakDays:     1,
		LastActivityAt: morning,
	})

	// 10 min, 2 exercises x 2 sets: 15 + 20 + 8 = 43 XP, crossing 300.
	res, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(evening, 600, 2, 2))

	require.NoError(t, err)
	assert.True(t, res.IsPowerDay)
	assert.Equal(t, 43, res.AwardedXP)
	assert.Nil(t, res.CappedFrom)

	stored := fx.states.stored(userID)
	assert.Equal(t, 323, stored.DailyXP)
	isoYear, isoWeek := ISOWeekOf(evening, time.UTC)
	assert.Equal(t, 1, fx.powerDay.count(userID, isoYear, isoWeek))
}

func TestSubmitWithExhaustedPowerDaysClampsAtStandardCap(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)

	fx.states.seed(&domain.UserRewardState{
		UserID:         userID,
		Timezone:       "UTC",
		DailyXP:        280,
		DailyXPDate:    "2026-03-10",
		TotalXP:        280,
		StreakDays:     1,
		LastActivityAt: morning,
	})

	isoYear, isoWeek := ISOWeekOf(evening, time.UTC)
	for i := 0; i < PowerDayWeeklyLimit; i++ {
		ok, err := fx.powerDay.IncrementIfBelow(context.Background(), userID, isoYear, isoWeek, PowerDayWeeklyLimit)
		require.NoError(t, err)
		require.True(t, ok)
	}

	res, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(evening, 600, 2, 2))

	require.NoError(t, err)
	assert.False(t, res.IsPowerDay)
	assert.Equal(t, 20, res.AwardedXP)
	require.NotNil(t, res.CappedFrom)
	assert.Equal(t, 43, *res.CappedFrom)
	assert.Equal(t, StandardDailyCap, fx.states.stored(userID).DailyXP)
}

func TestSubmitPersistFailureReleasesPowerDayUse(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)

	fx.states.seed(&domain.UserRewardState{
		UserID:         userID,
		Timezone:       "UTC",
		DailyXP:        280,
		DailyXPDate:    "2026-03-10",
		TotalXP:        280,
		StreakDays:     1,
		LastActivityAt: morning,
	})
	fx.states.failUpdate = errors.New("connection reset")

	_, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(evening, 600, 2, 2))

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)

	stored := fx.states.stored(userID)
	assert.Equal(t, 280, stored.DailyXP, "failed submission leaves persisted state untouched")
	assert.Equal(t, 280, stored.TotalXP)

	isoYear, isoWeek := ISOWeekOf(evening, time.UTC)
	assert.Equal(t, 0, fx.powerDay.count(userID, isoYear, isoWeek), "charged power day use is released on abort")
}

func TestSubmitUnlocksAchievementAndAppendsEvent(t *testing.T) {
	fx := newPipelineFixture(domain.AchievementDefinition{
		ID:          "first-workout",
		Name:        "First Workout",
		Rank:        domain.RankE,
		Requirement: domain.Requirement{Type: domain.RequirementWorkoutCount, TargetValue: 1},
		XPReward:    20,
		Points:      5,
	})
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	res, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(at, 600, 2, 2))

	require.NoError(t, err)
	assert.Equal(t, []string{"first-workout"}, res.NewlyUnlocked)
	assert.Equal(t, 20, res.AchievementXP)

	stored := fx.states.stored(userID)
	assert.Equal(t, 43+20, stored.TotalXP)
	assert.True(t, stored.Progress["first-workout"].Unlocked())

	events, err := fx.events.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first-workout", events[0].AchievementID)
	assert.Equal(t, 20, events[0].XPAwarded)
	assert.Equal(t, 5, events[0].Points)
	assert.NotEmpty(t, events[0].ID)
}

func TestSubmitEventAppendFailureDoesNotFailSubmission(t *testing.T) {
	fx := newPipelineFixture(domain.AchievementDefinition{
		ID:          "first-workout",
		Rank:        domain.RankE,
		Requirement: domain.Requirement{Type: domain.RequirementWorkoutCount, TargetValue: 1},
	})
	fx.events.failAppend = errors.New("events collection unavailable")
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	res, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(at, 600, 2, 2))

	require.NoError(t, err, "the state commit already happened; event fan-out is best effort")
	assert.Equal(t, []string{"first-workout"}, res.NewlyUnlocked)
}

func TestSubmitConcurrentSameUserLosesNoUpdates(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	const workers = 5
	var wg sync.WaitGroup
	awards := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.pipeline.Submit(context.Background(), userID, submissionAt(at, 600, 2, 2))
			assert.NoError(t, err)
			awards <- res.AwardedXP
		}()
	}
	wg.Wait()
	close(awards)

	total := 0
	for a := range awards {
		total += a
	}

	stored := fx.states.stored(userID)
	assert.Equal(t, workers, stored.WorkoutCount)
	assert.Equal(t, total, stored.TotalXP)
	assert.Equal(t, total, stored.DailyXP)
	assert.Equal(t, 1, stored.StreakDays)
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	seeded := &domain.UserRewardState{
		UserID:         userID,
		Timezone:       "UTC",
		DailyXP:        100,
		DailyXPDate:    "2026-03-10",
		TotalXP:        500,
		StreakDays:     6,
		LastActivityAt: time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
	}
	fx.states.seed(seeded)

	res, err := fx.pipeline.Preview(context.Background(), userID, submissionAt(at, 2700, 5, 3))

	require.NoError(t, err)
	// Previous day activity projects streak 7, so the 1.2 multiplier
	// applies: round(140 * 1.2) = 168.
	assert.Equal(t, 168, res.AwardedXP)
	assert.Equal(t, 7, res.StreakDays)

	stored := fx.states.stored(userID)
	assert.Equal(t, 500, stored.TotalXP)
	assert.Equal(t, 100, stored.DailyXP)
	assert.Equal(t, 6, stored.StreakDays)
	assert.Equal(t, seeded.LastActivityAt, stored.LastActivityAt)
}

func TestPreviewProjectsStandardCapOnly(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	fx.states.seed(&domain.UserRewardState{
		UserID:         userID,
		Timezone:       "UTC",
		DailyXP:        280,
		DailyXPDate:    "2026-03-10",
		LastActivityAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		StreakDays:     1,
	})

	res, err := fx.pipeline.Preview(context.Background(), userID, submissionAt(at, 600, 2, 2))

	require.NoError(t, err)
	assert.Equal(t, 20, res.AwardedXP, "previews never elect a power day")
	require.NotNil(t, res.CappedFrom)
	assert.Equal(t, 43, *res.CappedFrom)

	isoYear, isoWeek := ISOWeekOf(at, time.UTC)
	assert.Equal(t, 0, fx.powerDay.count(userID, isoYear, isoWeek))
}

func TestSelectClass(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()

	err := fx.pipeline.SelectClass(context.Background(), userID, "necromancer")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	require.NoError(t, fx.pipeline.SelectClass(context.Background(), userID, domain.ClassWarrior))
	assert.Equal(t, domain.ClassWarrior, fx.states.stored(userID).ClassID)
}

func TestSetGuild(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	guildID := primitive.NewObjectID()

	require.NoError(t, fx.pipeline.SetGuild(context.Background(), userID, &guildID))
	stored := fx.states.stored(userID)
	require.NotNil(t, stored.GuildID)
	assert.Equal(t, guildID, *stored.GuildID)

	require.NoError(t, fx.pipeline.SetGuild(context.Background(), userID, nil))
	assert.Nil(t, fx.states.stored(userID).GuildID)
}

func TestSubmitTimezoneFixedAfterFirstSubmission(t *testing.T) {
	fx := newPipelineFixture()
	userID := primitive.NewObjectID()
	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	first := submissionAt(at, 600, 2, 2)
	first.Timezone = "Europe/Kyiv"
	_, err := fx.pipeline.Submit(context.Background(), userID, first)
	require.NoError(t, err)

	second := submissionAt(at.Add(time.Hour), 600, 2, 2)
	second.Timezone = "America/New_York"
	_, err = fx.pipeline.Submit(context.Background(), userID, second)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Kyiv", fx.states.stored(userID).Timezone)
}
