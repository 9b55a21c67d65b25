package engine

import (
	"context"
	"fmt"
	"sync"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. They mirror the mongo implementations'
// contracts: reads hand out copies, state writes are version-checked, and
// the power-day increment is a guarded compare-and-swap.

func cloneState(s *domain.UserRewardState) *domain.UserRewardState {
	c := *s
	if s.CategoryCounts != nil {
		c.CategoryCounts = make(map[string]int, len(s.CategoryCounts))
		for k, v := range s.CategoryCounts {
			c.CategoryCounts[k] = v
		}
	}
	if s.Progress != nil {
		c.Progress = make(map[string]domain.AchievementProgress, len(s.Progress))
		for k, v := range s.Progress {
			c.Progress[k] = v
		}
	}
	if s.GuildID != nil {
		g := *s.GuildID
		c.GuildID = &g
	}
	return &c
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.UserRewardState

	failUpdate error // when set, Update fails with this error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*domain.UserRewardState)}
}

func (r *fakeStateRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[userID.Hex()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneState(s), nil
}

func (r *fakeStateRepo) Create(_ context.Context, state *domain.UserRewardState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := state.UserID.Hex()
	if _, ok := r.states[key]; ok {
		return repository.ErrConflict
	}
	state.ID = primitive.NewObjectID()
	state.Version = 1
	r.states[key] = cloneState(state)
	return nil
}

func (r *fakeStateRepo) Update(_ context.Context, state *domain.UserRewardState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	key := state.UserID.Hex()
	stored, ok := r.states[key]
	if !ok || stored.Version != state.Version {
		return repository.ErrConflict
	}
	state.Version++
	r.states[key] = cloneState(state)
	return nil
}

// seed installs a state directly, bypassing the pipeline, for test setup.
func (r *fakeStateRepo) seed(state *domain.UserRewardState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.Version == 0 {
		state.Version = 1
	}
	r.states[state.UserID.Hex()] = cloneState(state)
}

// stored returns the persisted copy of a user's state, or nil.
func (r *fakeStateRepo) stored(userID primitive.ObjectID) *domain.UserRewardState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[userID.Hex()]
	if !ok {
		return nil
	}
	return cloneState(s)
}

type fakePowerDayRepo struct {
	mu     sync.Mutex
	usages map[string]*domain.PowerDayUsage
}

func newFakePowerDayRepo() *fakePowerDayRepo {
	return &fakePowerDayRepo{usages: make(map[string]*domain.PowerDayUsage)}
}

func powerDayKey(userID primitive.ObjectID, isoYear, isoWeek int) string {
	return fmt.Sprintf("%s/%d/%d", userID.Hex(), isoYear, isoWeek)
}

func (r *fakePowerDayRepo) Get(_ context.Context, userID primitive.ObjectID, isoYear, isoWeek int) (*domain.PowerDayUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[powerDayKey(userID, isoYear, isoWeek)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakePowerDayRepo) IncrementIfBelow(_ context.Context, userID primitive.ObjectID, isoYear, isoWeek, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := powerDayKey(userID, isoYear, isoWeek)
	u, ok := r.usages[key]
	if !ok {
		u = &domain.PowerDayUsage{UserID: userID, ISOYear: isoYear, ISOWeek: isoWeek}
		r.usages[key] = u
	}
	if u.UsageCount >= limit {
		return false, nil
	}
	u.UsageCount++
	return true, nil
}

func (r *fakePowerDayRepo) Decrement(_ context.Context, userID primitive.ObjectID, isoYear, isoWeek int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[powerDayKey(userID, isoYear, isoWeek)]
	if !ok || u.UsageCount == 0 {
		return repository.ErrNotFound
	}
	u.UsageCount--
	return nil
}

func (r *fakePowerDayRepo) count(userID primitive.ObjectID, isoYear, isoWeek int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usages[powerDayKey(userID, isoYear, isoWeek)]
	if !ok {
		return 0
	}
	return u.UsageCount
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.UnlockEvent

	failAppend error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (r *fakeEventRepo) Append(_ context.Context, events []domain.UnlockEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		return r.failAppend
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *fakeEventRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.UnlockEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UnlockEvent
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// staticCatalog satisfies AchievementCatalog with a fixed definition list.
type staticCatalog struct {
	defs []domain.AchievementDefinition
}

func (c staticCatalog) Definitions() []domain.AchievementDefinition {
	return c.defs
}
