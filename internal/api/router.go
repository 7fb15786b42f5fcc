package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/api/handlers"
	"github.com/Marga-Ghale/ora-template-studio/internal/api/middleware"
	"github.com/Marga-Ghale/ora-template-studio/internal/socket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type RouterDeps struct {
	Handlers     *handlers.Handlers
	Hub          *socket.Hub
	WSHandler    *socket.Handler
	AllowOrigins []string
	HealthChecks map[string]HealthCheck
	Logger       *zap.Logger
}

// NewRouter wires middleware and every route of the service.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(log))

	origins := deps.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.UserHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthHandler(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := deps.Handlers
	api := r.Group("/api")
	api.Use(middleware.UserContext(log))
	{
		if deps.WSHandler != nil {
			api.GET("/ws", deps.WSHandler.HandleWebSocket)
		}

		compositions := api.Group("/compositions")
		{
			compositions.POST("", h.Composition.Open)
			compositions.GET("/:id", h.Composition.Get)
			compositions.DELETE("/:id", h.Composition.Close)
			compositions.PATCH("/:id/form", h.Composition.UpdateForm)
			compositions.GET("/:id/activities", h.Activity.GetSessionActivities)

			// Milestones
			compositions.POST("/:id/milestones", h.Composition.SelectMilestones)
			compositions.POST("/:id/milestone-templates", h.Composition.CreateMilestoneTemplate)
			compositions.POST("/:id/reorder", h.Composition.ReorderMilestones)
			compositions.DELETE("/:id/milestones/:milestoneId", h.Composition.RemoveMilestone)
			compositions.PUT("/:id/milestones/:milestoneId/ref", h.Composition.CustomizeMilestone)
			compositions.POST("/:id/milestones/:milestoneId/phases", h.Composition.AddPhase)

			// Phases and deliverables
			compositions.PUT("/:id/phases/:phaseId", h.Composition.UpdatePhase)
			compositions.DELETE("/:id/phases/:phaseId", h.Composition.DeletePhase)
			compositions.POST("/:id/phases/:phaseId/deliverables", h.Composition.AddDeliverable)
			compositions.PUT("/:id/deliverables/:deliverableId", h.Composition.UpdateDeliverable)
			compositions.DELETE("/:id/deliverables/:deliverableId", h.Composition.DeleteDeliverable)
			compositions.POST("/:id/position", h.Composition.ChangePosition)

			// Precedence
			compositions.GET("/:id/deliverables/:deliverableId/candidates", h.Composition.PrecedenceCandidates)
			compositions.POST("/:id/deliverables/:deliverableId/precedence/:targetId", h.Composition.TogglePrecedence)
			compositions.DELETE("/:id/deliverables/:deliverableId/precedence/:targetId", h.Composition.RemovePrecedence)

			// Drafts and submit
			compositions.POST("/:id/draft", h.Composition.SaveDraft)
			compositions.POST("/:id/draft/recover", h.Composition.RecoverDraft)
			compositions.DELETE("/:id/draft", h.Composition.DiscardDraft)
			compositions.GET("/:id/unsaved", h.Composition.UnsavedChanges)
			compositions.POST("/:id/submit", h.Composition.Submit)
		}

		milestones := api.Group("/milestone-templates")
		{
			milestones.GET("", h.Catalog.ListMilestoneTemplates)
			milestones.GET("/active", h.Catalog.ListActiveMilestoneTemplates)
			milestones.GET("/search", h.Catalog.SearchMilestoneTemplates)
			milestones.GET("/:id", h.Catalog.GetMilestoneTemplate)
			milestones.PATCH("/:id", h.Catalog.UpdateMilestoneTemplate)
			milestones.DELETE("/:id", h.Catalog.DeleteMilestoneTemplate)
			milestones.POST("/:id/reactivate", h.Catalog.ReactivateMilestoneTemplate)
			milestones.POST("/:id/toggle-active", h.Catalog.ToggleMilestoneTemplate)
		}

		projects := api.Group("/project-templates")
		{
			projects.GET("", h.Catalog.ListProjectTemplates)
			projects.GET("/active", h.Catalog.ListActiveProjectTemplates)
			projects.GET("/:id", h.Catalog.GetProjectTemplate)
			projects.DELETE("/:id", h.Catalog.DeleteProjectTemplate)
			projects.POST("/:id/reactivate", h.Catalog.ReactivateProjectTemplate)
		}

		tags := api.Group("/tags")
		{
			tags.GET("", h.Catalog.ListTags)
			tags.GET("/:id", h.Catalog.GetTag)
			tags.POST("", h.Catalog.CreateTag)
			tags.PUT("/:id", h.Catalog.UpdateTag)
			tags.DELETE("/:id", h.Catalog.DeleteTag)
		}

		activities := api.Group("/activities")
		{
			activities.GET("/me", h.Activity.GetMyActivities)
		}
	}

	return r
}

func healthHandler(deps RouterDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, check := range deps.HealthChecks {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"checks":    checks,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if deps.Hub != nil {
			body["ws_clients"] = deps.Hub.GetConnectedClientsCount()
		}
		c.JSON(status, body)
	}
}
