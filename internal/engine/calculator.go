package engine

import (
	"fmt"

	"ivakdev/gymquest/internal/domain"
)

// Breakdown labels. The base subtotal is unlabeled; every other non-zero
// contributor appears in the breakdown under one of these.
const (
	LabelClassBonus     = "class bonus"
	LabelStreakBonus    = "streak bonus"
	LabelPersonalRecord = "personal record"
)

// Computation is the output of the pure reward calculation, before any cap
// is applied. The labeled breakdown lines sum exactly to TotalXP - BaseXP.
type Computation struct {
	TotalXP   int
	BaseXP    int // unlabeled base: time + exercise + set XP, difficulty-scaled
	Breakdown []domain.BonusLine
}

// ComputeReward turns a workout submission plus the user's class and
// current streak into a pre-cap XP total. Pure: no I/O, no side effects;
// the same function backs both the preview endpoint and the submission
// pipeline.
//
// Order of operations is fixed: the class bonus is computed on the
// un-multiplied subtotal, the streak multiplier applies to subtotal plus
// class bonus, and the personal-record bonus is added last, outside the
// multiplicative chain.
func ComputeReward(sub *domain.WorkoutSubmission, classID domain.ClassID, streakDays int) Computation {
	timeXP := TimeXP(sub.DurationSeconds)

	completedExercises := 0
	completedSets := 0
	for i := range sub.Exercises {
		n := sub.Exercises[i].CompletedSetCount()
		if n > 0 {
			completedExercises++
		}
		completedSets += n
	}

	exerciseXP := completedExercises * BaseExerciseXP

	// Sets beyond the cap contribute nothing; trivial high-volume sets
	// cannot farm XP.
	countedSets := completedSets
	if countedSets > MaxXPContributingSets {
		countedSets = MaxXPContributingSets
	}
	setXP := countedSets * BaseSetXP

	subtotal := roundXP(float64(timeXP+exerciseXP+setXP) * DifficultyMultiplier(sub.Difficulty))

	classXP := 0
	fraction := ClassBonusFor(classID, sub.DominantCategory())
	if fraction > 0 {
		classXP = roundXP(float64(subtotal) * fraction)
	}

	multiplied := roundXP(float64(subtotal+classXP) * StreakMultiplier(streakDays))
	streakXP := multiplied - (subtotal + classXP)

	prXP := 0
	if sub.HasPersonalRecord {
		prXP = PersonalRecordBonus
	}

	total := multiplied + prXP

	var breakdown []domain.BonusLine
	if classXP > 0 {
		breakdown = append(breakdown, domain.BonusLine{
			Label:  fmt.Sprintf("%s (%s)", LabelClassBonus, classID),
			Amount: classXP,
		})
	}
	if streakXP > 0 {
		breakdown = append(breakdown, domain.BonusLine{Label: LabelStreakBonus, Amount: streakXP})
	}
	if prXP > 0 {
		breakdown = append(breakdown, domain.BonusLine{Label: LabelPersonalRecord, Amount: prXP})
	}

	return Computation{
		TotalXP:   total,
		BaseXP:    subtotal,
		Breakdown: breakdown,
	}
}

// ValidateSubmission checks the submission shape before the pipeline
// touches any state. A submission needs a non-negative duration and either
// at least one exercise or an explicit manual-activity marker.
func ValidateSubmission(sub *domain.WorkoutSubmission) error {
	if sub == nil {
		return &ValidationError{Field: "submission", Reason: "missing"}
	}
	if sub.DurationSeconds < 0 {
		return &ValidationError{Field: "durationSeconds", Reason: "must be non-negative"}
	}
	if len(sub.Exercises) == 0 && sub.ActivityType == "" {
		return &ValidationError{Field: "exercises", Reason: "at least one exercise or an activity type is required"}
	}
	switch sub.Difficulty {
	case "", domain.DifficultyNovice, domain.DifficultyMedium, domain.DifficultyAdvanced:
	default:
		return &ValidationError{Field: "difficulty", Reason: "unknown difficulty level"}
	}
	for i := range sub.Exercises {
		if sub.Exercises[i].ExerciseID == "" {
			return &ValidationError{Field: "exercises", Reason: "exercise entry is missing its exercise ID"}
		}
		for _, set := range sub.Exercises[i].CompletedSets {
			if set.Reps < 0 || set.Weight < 0 {
				return &ValidationError{Field: "completedSets", Reason: "reps and weight must be non-negative"}
			}
		}
	}
	return nil
}
