package handlers

import (
	"net/http"

	"receiptmaker/internal/editor"
	"receiptmaker/internal/receipt"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type SectionTemplateHandler struct {
	sectionTemplateService *services.SectionTemplateService
	defaults               editor.DefaultsSource
}

func NewSectionTemplateHandler(sectionTemplateService *services.SectionTemplateService, defaults editor.DefaultsSource) *SectionTemplateHandler {
	return &SectionTemplateHandler{
		sectionTemplateService: sectionTemplateService,
		defaults:               defaults,
	}
}

// GET /api/v1/admin/section-templates
func (h *SectionTemplateHandler) GetAll(c *gin.Context) {
	rows, err := h.sectionTemplateService.List(c.Request.Context())
	if err != nil {
		respondError(c, "SectionTemplateHandler.GetAll", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"section_templates": rows,
		"total":             len(rows),
	})
}

// POST /api/v1/admin/section-templates
func (h *SectionTemplateHandler) Create(c *gin.Context) {
	var req services.SectionTemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	row, err := h.sectionTemplateService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, "SectionTemplateHandler.Create", err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// PUT /api/v1/admin/section-templates/:id
func (h *SectionTemplateHandler) Update(c *gin.Context) {
	var req services.SectionTemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	row, err := h.sectionTemplateService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "SectionTemplateHandler.Update", err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// DELETE /api/v1/admin/section-templates/:id
func (h *SectionTemplateHandler) Delete(c *gin.Context) {
	if err := h.sectionTemplateService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "SectionTemplateHandler.Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Section template deleted successfully"})
}

// GetDefault returns a ready-to-insert section with a fresh id
// GET /api/v1/section-defaults/:type
func (h *SectionTemplateHandler) GetDefault(c *gin.Context) {
	kind := receipt.Kind(c.Param("type"))
	sec, err := h.defaults.Default(c.Request.Context(), kind)
	if err != nil {
		respondError(c, "SectionTemplateHandler.GetDefault", err)
		return
	}
	sec.SetID(receipt.NewSectionID(kind))
	c.JSON(http.StatusOK, sec)
}
