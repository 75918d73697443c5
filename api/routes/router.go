// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/leaderboard"
	"waitly/internal/ranking"
	"waitly/internal/referrals"
	"waitly/internal/rules"
	"waitly/internal/scoring"
	"waitly/internal/shared/config"
	"waitly/internal/shared/database"
	"waitly/internal/shared/middleware"
	"waitly/internal/waitlist"
	"waitly/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// JobStatusProvider reports the state of a background job
type JobStatusProvider interface {
	GetJobStatus() map[string]interface{}
}

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	services *Services
	jobs     map[string]JobStatusProvider
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, services *Services, jobs map[string]JobStatusProvider) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		services: services,
		jobs:     jobs,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Landing pages, signup and leaderboards by waitlist slug
		public := api.Group("/public/waitlists/:slug")

		// Organization-scoped management
		admin := api.Group("/admin/waitlists",
			middleware.JWTAuth(r.config.JWT),
			middleware.RequireRoles("owner", "admin"),
		)
		scoped := admin.Group("/:waitlist_id", middleware.RequireWaitlistAccess(r.services.Waitlists))

		r.setupWaitlistRoutes(public, admin, scoped)
		r.setupRuleRoutes(scoped)
		r.setupCampaignRoutes(public, scoped)
		r.setupReferralRoutes(scoped)
		r.setupScoringRoutes(scoped)
		r.setupRankingRoutes(public, scoped)
		r.setupLeaderboardRoutes(public, scoped)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "waitly-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "waitly-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		jobs := make(map[string]interface{}, len(r.jobs))
		for name, job := range r.jobs {
			jobs[name] = job.GetJobStatus()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"kafka":       r.config.Kafka.Enabled(),
			"jobs":        jobs,
		})
	})

	engine.GET("/metrics", metrics.Handler())
}

func (r *Router) setupWaitlistRoutes(public, admin, scoped *gin.RouterGroup) {
	waitlist.SetupWaitlistRoutes(public, admin, scoped, waitlist.NewController(r.services.Waitlists))
}

func (r *Router) setupRuleRoutes(scoped *gin.RouterGroup) {
	rules.SetupRuleRoutes(scoped, rules.NewController(r.services.Rules))
}

func (r *Router) setupCampaignRoutes(public, scoped *gin.RouterGroup) {
	campaigns.SetupCampaignRoutes(public, scoped, campaigns.NewController(r.services.Campaigns))
}

func (r *Router) setupReferralRoutes(scoped *gin.RouterGroup) {
	referrals.SetupReferralRoutes(scoped, referrals.NewController(r.services.Referrals))
}

func (r *Router) setupScoringRoutes(scoped *gin.RouterGroup) {
	scoring.SetupScoringRoutes(scoped, scoring.NewController(r.services.Scoring))
}

func (r *Router) setupRankingRoutes(public, scoped *gin.RouterGroup) {
	ranking.SetupRankingRoutes(public, scoped, ranking.NewController(r.services.Ranking))
}

func (r *Router) setupLeaderboardRoutes(public, scoped *gin.RouterGroup) {
	leaderboard.SetupLeaderboardRoutes(public, scoped, leaderboard.NewController(r.services.Leaderboard))
}
