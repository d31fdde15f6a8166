package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"receiptmaker/internal/editor"
	"receiptmaker/internal/receipt"
	"receiptmaker/internal/render"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type RenderHandler struct {
	renderService *services.RenderService
	defaults      editor.DefaultsSource
}

func NewRenderHandler(renderService *services.RenderService, defaults editor.DefaultsSource) *RenderHandler {
	return &RenderHandler{
		renderService: renderService,
		defaults:      defaults,
	}
}

type renderRequest struct {
	Document     json.RawMessage `json:"document" binding:"required"`
	TemplateID   string          `json:"template_id"`
	TemplateName string          `json:"template_name"`
}

type editorRequest struct {
	Document   json.RawMessage    `json:"document" binding:"required"`
	Operations []editor.Operation `json:"operations"`
}

// Preview composes a document. With ?format=html the surface is returned as a
// standalone page.
// POST /api/v1/render/preview
func (h *RenderHandler) Preview(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "document is required")
		return
	}
	doc, err := receipt.DecodeDocument(req.Document)
	if err != nil {
		respondError(c, "RenderHandler.Preview", err)
		return
	}

	preview, err := h.renderService.Preview(c.Request.Context(), doc, currentUserID(c))
	if err != nil {
		respondError(c, "RenderHandler.Preview", err)
		return
	}

	if c.Query("format") == "html" {
		page, err := preview.Surface.HTML()
		if err != nil {
			respondError(c, "RenderHandler.Preview", err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Export renders the document as a downloadable PNG or PDF.
// POST /api/v1/render/export?format=png|pdf
func (h *RenderHandler) Export(c *gin.Context) {
	format, err := render.ParseFormat(c.DefaultQuery("format", "png"))
	if err != nil {
		badRequest(c, "format must be png or pdf")
		return
	}
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "document is required")
		return
	}
	doc, err := receipt.DecodeDocument(req.Document)
	if err != nil {
		respondError(c, "RenderHandler.Export", err)
		return
	}

	res, err := h.renderService.Export(c.Request.Context(), services.ExportRequest{
		Document:     doc,
		Format:       format,
		TemplateID:   req.TemplateID,
		TemplateName: req.TemplateName,
		UserID:       currentUserID(c),
	})
	if err != nil {
		respondError(c, "RenderHandler.Export", err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Header("X-Watermarked", fmt.Sprintf("%t", res.Watermarked))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// ApplyEdits runs a batch of editor operations against the posted document
// and returns the result with its recomposed tree. A failing operation rolls
// back the whole batch.
// POST /api/v1/editor/apply
func (h *RenderHandler) ApplyEdits(c *gin.Context) {
	var req editorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "document is required")
		return
	}
	doc, err := receipt.DecodeDocument(req.Document)
	if err != nil {
		respondError(c, "RenderHandler.ApplyEdits", err)
		return
	}

	session := editor.NewSession(doc, h.defaults, h.renderService.Composer())
	if err := session.Apply(c.Request.Context(), req.Operations); err != nil {
		respondError(c, "RenderHandler.ApplyEdits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document": session.Document(),
		"tree":     session.Preview(),
	})
}
