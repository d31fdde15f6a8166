package handlers

import (
	"net/http"

	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	templateService     *services.TemplateService
	userTemplateService *services.UserTemplateService
}

func NewTemplateHandler(templateService *services.TemplateService, userTemplateService *services.UserTemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService:     templateService,
		userTemplateService: userTemplateService,
	}
}

// GetAllTemplates returns the public library
// GET /api/v1/templates
func (h *TemplateHandler) GetAllTemplates(c *gin.Context) {
	templates, err := h.templateService.List(c.Request.Context())
	if err != nil {
		respondError(c, "TemplateHandler.GetAllTemplates", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"total":     len(templates),
	})
}

// GET /api/v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.templateService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "TemplateHandler.GetTemplate", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /api/v1/templates/by-slug/:slug
func (h *TemplateHandler) GetTemplateBySlug(c *gin.Context) {
	t, err := h.templateService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, "TemplateHandler.GetTemplateBySlug", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTemplate adds a template to the library (admin)
// POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req services.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	t, err := h.templateService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, "TemplateHandler.CreateTemplate", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// UpdateTemplate replaces a library template (admin)
// PUT /api/v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req services.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	t, err := h.templateService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "TemplateHandler.UpdateTemplate", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /api/v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.templateService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "TemplateHandler.DeleteTemplate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// GetMyTemplates returns the caller's saved copies
// GET /api/v1/me/templates
func (h *TemplateHandler) GetMyTemplates(c *gin.Context) {
	templates, err := h.userTemplateService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, "TemplateHandler.GetMyTemplates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"total":     len(templates),
	})
}

// GET /api/v1/me/templates/:id
func (h *TemplateHandler) GetMyTemplate(c *gin.Context) {
	t, err := h.userTemplateService.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, "TemplateHandler.GetMyTemplate", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /api/v1/me/templates
func (h *TemplateHandler) CreateMyTemplate(c *gin.Context) {
	var req services.UserTemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	t, err := h.userTemplateService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, "TemplateHandler.CreateMyTemplate", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// PUT /api/v1/me/templates/:id
func (h *TemplateHandler) UpdateMyTemplate(c *gin.Context) {
	var req services.UserTemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	t, err := h.userTemplateService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, "TemplateHandler.UpdateMyTemplate", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /api/v1/me/templates/:id
func (h *TemplateHandler) DeleteMyTemplate(c *gin.Context) {
	if err := h.userTemplateService.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, "TemplateHandler.DeleteMyTemplate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// CopyTemplate saves a private copy of a library template
// POST /api/v1/me/templates/from/:templateId
func (h *TemplateHandler) CopyTemplate(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	t, err := h.userTemplateService.CopyFromTemplate(c.Request.Context(), currentUserID(c), c.Param("templateId"), req.Name)
	if err != nil {
		respondError(c, "TemplateHandler.CopyTemplate", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
