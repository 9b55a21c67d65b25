package service

import (
	"context"
	"errors"

	"ivakdev/gymquest/internal/catalog"
	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/engine"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AchievementStatus combines a catalog definition with the user's progress
// toward it, for display.
type AchievementStatus struct {
	domain.AchievementDefinition
	CurrentValue int     `json:"currentValue"`
	Unlocked     bool    `json:"unlocked"`
	UnlockedAt   *string `json:"unlockedAt,omitempty"` // RFC 3339
}

// RewardService is the application-facing facade over the reward engine.
// These operations are the only contract points the presentation layer
// relies on.
type RewardService interface {
	SubmitWorkout(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error)
	PreviewReward(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error)
	GetRewardState(ctx context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error)
	GetPowerDayStatus(ctx context.Context, userID primitive.ObjectID) (engine.PowerDayStatus, error)
	GetAchievementProgress(ctx context.Context, userID primitive.ObjectID) ([]AchievementStatus, error)
	SelectClass(ctx context.Context, userID primitive.ObjectID, classID domain.ClassID) error
	SetGuild(ctx context.Context, userID primitive.ObjectID, guildID *primitive.ObjectID) error
	ReloadCatalog(ctx context.Context) error
}

// rewardService implements the RewardService interface.
type rewardService struct {
	pipeline *engine.Pipeline
	catalog  *catalog.Catalog
}

// NewRewardService creates a new instance of rewardService.
func NewRewardService(pipeline *engine.Pipeline, cat *catalog.Catalog) RewardService {
	return &rewardService{
		pipeline: pipeline,
		catalog:  cat,
	}
}

func (s *rewardService) SubmitWorkout(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error) {
	return s.pipeline.Submit(ctx, userID, sub)
}

func (s *rewardService) PreviewReward(ctx context.Context, userID primitive.ObjectID, sub *domain.WorkoutSubmission) (*domain.RewardResult, error) {
	return s.pipeline.Preview(ctx, userID, sub)
}

func (s *rewardService) GetRewardState(ctx context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error) {
	return s.pipeline.GetState(ctx, userID)
}

func (s *rewardService) GetPowerDayStatus(ctx context.Context, userID primitive.ObjectID) (engine.PowerDayStatus, error) {
	return s.pipeline.GetPowerDayStatus(ctx, userID)
}

// GetAchievementProgress joins the catalog with the user's progress map.
// Users with no reward state yet see the full catalog, all locked at zero.
func (s *rewardService) GetAchievementProgress(ctx context.Context, userID primitive.ObjectID) ([]AchievementStatus, error) {
	var progress map[string]domain.AchievementProgress
	state, err := s.pipeline.GetState(ctx, userID)
	if err == nil {
		progress = state.Progress
	} else if !errors.Is(err, engine.ErrStateNotFound) {
		return nil, err
	}

	defs := s.catalog.Definitions()
	statuses := make([]AchievementStatus, 0, len(defs))
	for _, def := range defs {
		status := AchievementStatus{AchievementDefinition: def}
		if p, ok := progress[def.ID]; ok {
			status.CurrentValue = p.CurrentValue
			if p.Unlocked() {
				status.Unlocked = true
				formatted := p.UnlockedAt.Format("2006-01-02T15:04:05Z07:00")
				status.UnlockedAt = &formatted
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *rewardService) SelectClass(ctx context.Context, userID primitive.ObjectID, classID domain.ClassID) error {
	return s.pipeline.SelectClass(ctx, userID, classID)
}

func (s *rewardService) SetGuild(ctx context.Context, userID primitive.ObjectID, guildID *primitive.ObjectID) error {
	return s.pipeline.SetGuild(ctx, userID, guildID)
}

// ReloadCatalog re-fetches and swaps the achievement catalog. A failed
// reload keeps the last good snapshot serving.
func (s *rewardService) ReloadCatalog(ctx context.Context) error {
	return s.catalog.Reload(ctx)
}
