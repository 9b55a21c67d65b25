package api

import (
	"errors"
	"net/http"
	"time"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/engine"
	"ivakdev/gymquest/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RewardHandler holds the reward service dependency.
type RewardHandler struct {
	rewardService service.RewardService
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewardService service.RewardService) *RewardHandler {
	return &RewardHandler{rewardService: rewardService}
}

// --- DTOs for API (Data Transfer Objects) ---

// SubmitWorkoutRequest defines the expected JSON for a workout submission.
type SubmitWorkoutRequest struct {
	Exercises         []domain.ExerciseEntry  `json:"exercises"`
	DurationSeconds   int                     `json:"durationSeconds" binding:"min=0"`
	HasPersonalRecord bool                    `json:"hasPersonalRecord"`
	ActivityType      domain.ExerciseCategory `json:"activityType,omitempty"`
	Difficulty        domain.Difficulty       `json:"difficulty,omitempty"`
	Timezone          string                  `json:"timezone,omitempty"`
	SubmittedAt       *time.Time              `json:"submittedAt,omitempty"`
}

func (r *SubmitWorkoutRequest) toSubmission() *domain.WorkoutSubmission {
	sub := &domain.WorkoutSubmission{
		Exercises:         r.Exercises,
		DurationSeconds:   r.DurationSeconds,
		HasPersonalRecord: r.HasPersonalRecord,
		ActivityType:      r.ActivityType,
		Difficulty:        r.Difficulty,
		Timezone:          r.Timezone,
	}
	if r.SubmittedAt != nil {
		sub.SubmittedAt = *r.SubmittedAt
	}
	return sub
}

// SelectClassRequest picks the user's character class.
type SelectClassRequest struct {
	ClassID domain.ClassID `json:"classId" binding:"required"`
}

// SetGuildRequest joins or leaves a guild (null guildId leaves).
type SetGuildRequest struct {
	GuildID *string `json:"guildId"`
}

// RewardStateResponse is the read-only view of a user's reward state.
type RewardStateResponse struct {
	UserID     string         `json:"userId"`
	DailyXP    int            `json:"dailyXP"`
	TotalXP    int            `json:"totalXP"`
	Level      int            `json:"level"`
	StreakDays int            `json:"streakDays"`
	ClassID    domain.ClassID `json:"classId,omitempty"`
	GuildID    *string        `json:"guildId,omitempty"`
	Workouts   int            `json:"workoutCount"`
	PRCount    int            `json:"prCount"`
}

// MapRewardStateToResponse converts a domain.UserRewardState to its DTO.
func MapRewardStateToResponse(state *domain.UserRewardState) RewardStateResponse {
	if state == nil {
		return RewardStateResponse{}
	}
	resp := RewardStateResponse{
		UserID:     state.UserID.Hex(),
		DailyXP:    state.DailyXP,
		TotalXP:    state.TotalXP,
		Level:      state.Level,
		StreakDays: state.StreakDays,
		ClassID:    state.ClassID,
		Workouts:   state.WorkoutCount,
		PRCount:    state.PRCount,
	}
	if state.GuildID != nil {
		guildID := state.GuildID.Hex()
		resp.GuildID = &guildID
	}
	return resp
}

// --- Handler helpers ---

// currentUserID extracts and parses the authenticated user's ID.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userIDStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format in token.")
		return primitive.NilObjectID, false
	}
	return userID, true
}

// respondEngineError maps engine error kinds to HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	var validationErr *engine.ValidationError
	var persistenceErr *engine.PersistenceError
	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrConflict):
		// Contention with another submission; the client may retry.
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrStateNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &persistenceErr):
		abortWithError(c, http.StatusServiceUnavailable, "Datastore unavailable, please retry.")
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// --- Handler Methods ---

// SubmitWorkout runs the full reward pipeline for the authenticated user.
func (h *RewardHandler) SubmitWorkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SubmitWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.rewardService.SubmitWorkout(c.Request.Context(), userID, req.toSubmission())
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PreviewReward computes the XP a submission would earn, with no side
// effects. Backed by the same calculator as SubmitWorkout.
func (h *RewardHandler) PreviewReward(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SubmitWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.rewardService.PreviewReward(c.Request.Context(), userID, req.toSubmission())
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRewardState returns the authenticated user's reward state.
func (h *RewardHandler) GetRewardState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	state, err := h.rewardService.GetRewardState(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapRewardStateToResponse(state))
}

// GetPowerDayStatus reports the user's remaining Power Day allowance this week.
func (h *RewardHandler) GetPowerDayStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := h.rewardService.GetPowerDayStatus(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetAchievementProgress lists all achievements with the user's progress.
func (h *RewardHandler) GetAchievementProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	statuses, err := h.rewardService.GetAchievementProgress(c.Request.Context(), userID)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, statuses)
}

// SelectClass sets the authenticated user's character class.
func (h *RewardHandler) SelectClass(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SelectClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.rewardService.SelectClass(c.Request.Context(), userID, req.ClassID); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classId": req.ClassID})
}

// SetGuild joins a guild, or leaves the current one when guildId is null.
func (h *RewardHandler) SetGuild(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SetGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	var guildID *primitive.ObjectID
	if req.GuildID != nil {
		parsed, err := primitive.ObjectIDFromHex(*req.GuildID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid guild ID format.")
			return
		}
		guildID = &parsed
	}

	if err := h.rewardService.SetGuild(c.Request.Context(), userID, guildID); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"guildId": req.GuildID})
}

// ReloadCatalog re-fetches the achievement catalog from its configured
// source. Admin only.
func (h *RewardHandler) ReloadCatalog(c *gin.Context) {
	if err := h.rewardService.ReloadCatalog(c.Request.Context()); err != nil {
		abortWithError(c, http.StatusBadGateway, "Catalog reload failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
