package handlers

import (
	"net/http"
	"strconv"

	"github.com/Marga-Ghale/ora-template-studio/internal/api/middleware"
	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Activity Handler
// ============================================

// ActivityHandler handles activity-related HTTP requests
type ActivityHandler struct {
	activitySvc service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activitySvc service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc}
}

// GetMyActivities gets the current user's activities
func (h *ActivityHandler) GetMyActivities(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	activities, err := h.activitySvc.GetUserActivities(c.Request.Context(), userID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, activities)
}

// GetSessionActivities lists the caller's events of one composition session.
func (h *ActivityHandler) GetSessionActivities(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	activities, err := h.activitySvc.GetSessionActivities(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	own := make([]*repository.Activity, 0, len(activities))
	for _, a := range activities {
		if a.UserID == userID {
			own = append(own, a)
		}
	}
	c.JSON(http.StatusOK, own)
}
