package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-template-studio/internal/api/middleware"
	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
	"github.com/gin-gonic/gin"
)

// ============================================
// Composition Handler
// ============================================

// CompositionHandler exposes composition sessions. Every route below
// /api/compositions/:id acts on the caller's own session.
type CompositionHandler struct {
	compositionSvc service.CompositionService
}

func NewCompositionHandler(compositionSvc service.CompositionService) *CompositionHandler {
	return &CompositionHandler{compositionSvc: compositionSvc}
}

type openRequest struct {
	// TemplateID opens the editor on an existing project template when set.
	TemplateID string `json:"templateId"`
}

type selectRequest struct {
	MilestoneIDs []string `json:"milestoneIds" binding:"required"`
}

type reorderRequest struct {
	From *int `json:"from" binding:"required,min=0"`
	To   *int `json:"to" binding:"required,min=0"`
}

func (h *CompositionHandler) Open(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req openRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	if req.TemplateID != "" {
		respond(c, http.StatusCreated, h.compositionSvc.OpenEdit(c.Request.Context(), userID, req.TemplateID))
		return
	}
	respond(c, http.StatusCreated, h.compositionSvc.OpenCreate(c.Request.Context(), userID))
}

func (h *CompositionHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.Get(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) Close(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.Close(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) UpdateForm(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var patch service.FormPatch
	if !bindJSON(c, &patch) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.SetForm(c.Request.Context(), userID, c.Param("id"), patch))
}

// ============================================
// Milestones
// ============================================

func (h *CompositionHandler) SelectMilestones(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req selectRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.SelectMilestones(c.Request.Context(), userID, c.Param("id"), req.MilestoneIDs))
}

func (h *CompositionHandler) CreateMilestoneTemplate(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req models.CreateMilestoneTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.compositionSvc.CreateMilestoneTemplate(c.Request.Context(), userID, c.Param("id"), req))
}

func (h *CompositionHandler) RemoveMilestone(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.RemoveMilestone(c.Request.Context(), userID, c.Param("id"), c.Param("milestoneId")))
}

func (h *CompositionHandler) CustomizeMilestone(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var ref models.MilestoneRef
	if !bindJSON(c, &ref) {
		return
	}
	ref.MilestoneTemplateID = c.Param("milestoneId")
	respond(c, http.StatusOK, h.compositionSvc.CustomizeMilestoneRef(c.Request.Context(), userID, c.Param("id"), ref))
}

func (h *CompositionHandler) ReorderMilestones(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.ReorderMilestones(c.Request.Context(), userID, c.Param("id"), *req.From, *req.To))
}

// ============================================
// Phases and deliverables
// ============================================

func (h *CompositionHandler) AddPhase(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req models.PhaseRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.compositionSvc.AddPhase(c.Request.Context(), userID, c.Param("id"), c.Param("milestoneId"), req))
}

func (h *CompositionHandler) UpdatePhase(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req models.PhaseRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.UpdatePhase(c.Request.Context(), userID, c.Param("id"), c.Param("phaseId"), req))
}

func (h *CompositionHandler) DeletePhase(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.DeletePhase(c.Request.Context(), userID, c.Param("id"), c.Param("phaseId")))
}

// deliverableBody is the deliverable form. Priority is optional here and
// defaults to MEDIUM in the service.
type deliverableBody struct {
	Name        string                 `json:"name" binding:"required"`
	Description *string                `json:"description"`
	Priority    string                 `json:"priority" binding:"omitempty,oneof=HIGH MEDIUM LOW"`
	Precedence  []models.PrecedenceRef `json:"precedence"`
}

func (b deliverableBody) request() models.DeliverableRequest {
	return models.DeliverableRequest{
		Name:        b.Name,
		Description: b.Description,
		Priority:    types.Priority(b.Priority),
		Precedence:  b.Precedence,
	}
}

func (h *CompositionHandler) AddDeliverable(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var body deliverableBody
	if !bindJSON(c, &body) {
		return
	}
	respond(c, http.StatusCreated, h.compositionSvc.AddDeliverable(c.Request.Context(), userID, c.Param("id"), c.Param("phaseId"), body.request()))
}

func (h *CompositionHandler) UpdateDeliverable(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var body deliverableBody
	if !bindJSON(c, &body) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.UpdateDeliverable(c.Request.Context(), userID, c.Param("id"), c.Param("deliverableId"), body.request()))
}

func (h *CompositionHandler) DeleteDeliverable(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.DeleteDeliverable(c.Request.Context(), userID, c.Param("id"), c.Param("deliverableId")))
}

func (h *CompositionHandler) ChangePosition(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var req models.ChangePositionRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.ChangePosition(c.Request.Context(), userID, c.Param("id"), req))
}

// ============================================
// Precedence
// ============================================

func (h *CompositionHandler) TogglePrecedence(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.TogglePrecedence(
		c.Request.Context(), userID, c.Param("id"), c.Param("deliverableId"), c.Param("targetId"),
	))
}

func (h *CompositionHandler) RemovePrecedence(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.RemovePrecedence(
		c.Request.Context(), userID, c.Param("id"), c.Param("deliverableId"), c.Param("targetId"),
	))
}

func (h *CompositionHandler) PrecedenceCandidates(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	var filter composition.CandidateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.PrecedenceCandidates(
		c.Request.Context(), userID, c.Param("id"), c.Param("deliverableId"), filter,
	))
}

// ============================================
// Drafts and submit
// ============================================

func (h *CompositionHandler) SaveDraft(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.SaveDraftNow(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) RecoverDraft(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.RecoverDraft(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) DiscardDraft(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.DiscardDraft(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) UnsavedChanges(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.HasUnsavedChanges(c.Request.Context(), userID, c.Param("id")))
}

func (h *CompositionHandler) Submit(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.compositionSvc.Submit(c.Request.Context(), userID, c.Param("id")))
}
