package engine

import (
	"context"
	"errors"
	"time"

	"ivakdev/gymquest/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PowerDayStatus describes a user's remaining Power Day allowance for the
// current ISO week.
type PowerDayStatus struct {
	Available    bool `json:"available"`
	UsedThisWeek int  `json:"usedThisWeek"`
	Cap          int  `json:"cap"`
}

// PowerDayLedger tracks weekly consumption of the Power Day cap override.
// The hard guarantee (usageCount never exceeds the weekly limit, even under
// concurrent submissions) lives in the repository's conditional increment;
// this type owns week resolution and the caller-facing contract.
type PowerDayLedger struct {
	repo repository.PowerDayRepository
}

// NewPowerDayLedger creates a new PowerDayLedger.
func NewPowerDayLedger(repo repository.PowerDayRepository) *PowerDayLedger {
	return &PowerDayLedger{repo: repo}
}

// ISOWeekOf resolves the ISO-8601 year and week number of t in loc:
// Monday-start weeks, week 1 containing the year's first Thursday.
func ISOWeekOf(t time.Time, loc *time.Location) (isoYear, isoWeek int) {
	return t.In(loc).ISOWeek()
}

// CheckAvailability reports whether the user still has Power Day headroom
// in the ISO week containing now. Advisory only: a concurrent submission
// may consume the last use between this check and RecordUsage, so callers
// must rely on RecordUsage's return value, never on this.
func (l *PowerDayLedger) CheckAvailability(ctx context.Context, userID primitive.ObjectID, now time.Time, loc *time.Location) (PowerDayStatus, error) {
	isoYear, isoWeek := ISOWeekOf(now, loc)

	used := 0
	usage, err := l.repo.Get(ctx, userID, isoYear, isoWeek)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return PowerDayStatus{}, &PersistenceError{Op: "power day lookup", Err: err}
	}
	if usage != nil {
		used = usage.UsageCount
	}

	return PowerDayStatus{
		Available:    used < PowerDayWeeklyLimit,
		UsedThisWeek: used,
		Cap:          PowerDayWeeklyLimit,
	}, nil
}

// RecordUsage consumes one Power Day use for the given week. Atomic: the
// increment applies only while usage is below the weekly limit, and the
// return value reports whether it applied.
func (l *PowerDayLedger) RecordUsage(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) (bool, error) {
	ok, err := l.repo.IncrementIfBelow(ctx, userID, isoYear, isoWeek, PowerDayWeeklyLimit)
	if err != nil {
		return false, &PersistenceError{Op: "power day usage", Err: err}
	}
	return ok, nil
}

// ReleaseUsage returns a recorded use after the surrounding submission
// failed, so an aborted submission never burns a Power Day.
func (l *PowerDayLedger) ReleaseUsage(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) error {
	err := l.repo.Decrement(ctx, userID, isoYear, isoWeek)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &PersistenceError{Op: "power day release", Err: err}
	}
	return nil
}
