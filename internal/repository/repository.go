package repository

import (
	"context"

	"ivakdev/gymquest/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("write conflict") // optimistic-concurrency miss, safe to retry
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with account data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// RewardStateRepository persists the engine-owned per-user reward state.
// Writes go through an optimistic version check: Update succeeds only when
// the stored document still carries the version the state was loaded with,
// and bumps it. A miss returns ErrConflict.
type RewardStateRepository interface {
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error)
	Create(ctx context.Context, state *domain.UserRewardState) error
	Update(ctx context.Context, state *domain.UserRewardState) error
}

// PowerDayRepository tracks weekly Power Day consumption. IncrementIfBelow
// is the atomic conditional increment at the heart of the weekly cap: it
// increments the (user, year, week) row only while usageCount < limit,
// creating the row on first use, and reports whether the increment applied.
// Decrement compensates a recorded usage when the surrounding submission
// fails after the increment; it never drops the count below zero.
type PowerDayRepository interface {
	Get(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) (*domain.PowerDayUsage, error)
	IncrementIfBelow(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek, limit int) (bool, error)
	Decrement(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) error
}

// UnlockEventRepository appends achievement unlock events for audit and
// notification fan-out. Append-only; events are never updated.
type UnlockEventRepository interface {
	Append(ctx context.Context, events []domain.UnlockEvent) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.UnlockEvent, error)
}
