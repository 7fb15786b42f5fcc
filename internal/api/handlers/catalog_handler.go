package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Catalog Handler
// ============================================

// CatalogHandler serves the milestone template, project template and tag
// list pages.
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

func bindPage(c *gin.Context) (models.PageQuery, bool) {
	var q models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return q, false
	}
	return q, true
}

// ============================================
// Milestone templates
// ============================================

func (h *CatalogHandler) ListMilestoneTemplates(c *gin.Context) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.catalogSvc.ListMilestoneTemplates(c.Request.Context(), q))
}

func (h *CatalogHandler) ListActiveMilestoneTemplates(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ListActiveMilestoneTemplates(c.Request.Context()))
}

func (h *CatalogHandler) SearchMilestoneTemplates(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.SearchMilestoneTemplates(c.Request.Context(), c.Query("name")))
}

func (h *CatalogHandler) GetMilestoneTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.GetMilestoneTemplate(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) UpdateMilestoneTemplate(c *gin.Context) {
	var req models.UpdateMilestoneTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.catalogSvc.UpdateMilestoneTemplate(c.Request.Context(), c.Param("id"), req))
}

func (h *CatalogHandler) DeleteMilestoneTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.DeleteMilestoneTemplate(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) ReactivateMilestoneTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ReactivateMilestoneTemplate(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) ToggleMilestoneTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ToggleMilestoneTemplateActive(c.Request.Context(), c.Param("id")))
}

// ============================================
// Project templates
// ============================================

func (h *CatalogHandler) ListProjectTemplates(c *gin.Context) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.catalogSvc.ListProjectTemplates(c.Request.Context(), q))
}

func (h *CatalogHandler) ListActiveProjectTemplates(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ListActiveProjectTemplates(c.Request.Context()))
}

func (h *CatalogHandler) GetProjectTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.GetProjectTemplate(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) DeleteProjectTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.DeleteProjectTemplate(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) ReactivateProjectTemplate(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ReactivateProjectTemplate(c.Request.Context(), c.Param("id")))
}

// ============================================
// Tags
// ============================================

func (h *CatalogHandler) ListTags(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.ListTags(c.Request.Context(), c.Query("search")))
}

func (h *CatalogHandler) GetTag(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.GetTag(c.Request.Context(), c.Param("id")))
}

func (h *CatalogHandler) CreateTag(c *gin.Context) {
	var req models.TagRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.catalogSvc.CreateTag(c.Request.Context(), req))
}

func (h *CatalogHandler) UpdateTag(c *gin.Context) {
	var req models.TagRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.catalogSvc.UpdateTag(c.Request.Context(), c.Param("id"), req))
}

func (h *CatalogHandler) DeleteTag(c *gin.Context) {
	respond(c, http.StatusOK, h.catalogSvc.DeleteTag(c.Request.Context(), c.Param("id")))
}
