package api

import (
	"net/http"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	rewardService service.RewardService,
) {
	authHandler := NewAuthHandler(authService)
	rewardHandler := NewRewardHandler(rewardService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Workout Routes ---
		workoutGroup := protected.Group("/workouts")
		{
			// POST /api/v1/workouts/submit - run the full reward pipeline
			workoutGroup.POST("/submit", rewardHandler.SubmitWorkout)
			// POST /api/v1/workouts/preview - side-effect-free XP preview
			workoutGroup.POST("/preview", rewardHandler.PreviewReward)
		}

		// --- Reward Routes ---
		rewardGroup := protected.Group("/rewards")
		{
			// GET /api/v1/rewards/state
			rewardGroup.GET("/state", rewardHandler.GetRewardState)
			// GET /api/v1/rewards/power-day
			rewardGroup.GET("/power-day", rewardHandler.GetPowerDayStatus)
			// GET /api/v1/rewards/achievements
			rewardGroup.GET("/achievements", rewardHandler.GetAchievementProgress)
			// PUT /api/v1/rewards/class
			rewardGroup.PUT("/class", rewardHandler.SelectClass)
			// PUT /api/v1/rewards/guild
			rewardGroup.PUT("/guild", rewardHandler.SetGuild)
		}

		// --- Admin Routes ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			// POST /api/v1/admin/catalog/reload
			adminGroup.POST("/catalog/reload", rewardHandler.ReloadCatalog)
		}
	}
}
