package handlers

import (
	"html/template"
	"net/http"
	"time"

	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

var unsubscribePage = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body style="font-family:sans-serif;text-align:center;padding:48px">
{{if .OK}}<h1>You have been unsubscribed</h1><p>{{.Email}} will not receive further emails.</p>
{{else}}<h1>Link not valid</h1><p>This unsubscribe link is invalid or has been altered.</p>{{end}}
</body></html>`))

type CampaignHandler struct {
	campaignService *services.CampaignService
}

func NewCampaignHandler(campaignService *services.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService}
}

// CaptureEmail records a lead from the public site
// POST /api/v1/capture-email
func (h *CampaignHandler) CaptureEmail(c *gin.Context) {
	var req struct {
		Email  string `json:"email" binding:"required"`
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	if _, err := h.campaignService.CaptureEmail(c.Request.Context(), req.Email, req.Source); err != nil {
		respondError(c, "CampaignHandler.CaptureEmail", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed"})
}

// RunCampaign is called by the external scheduler
// POST /api/v1/cron/campaigns
func (h *CampaignHandler) RunCampaign(c *gin.Context) {
	report, err := h.campaignService.RunDueSteps(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, "CampaignHandler.RunCampaign", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Unsubscribe is the link target in every campaign mail
// GET /api/v1/unsubscribe?token=
func (h *CampaignHandler) Unsubscribe(c *gin.Context) {
	email, err := h.campaignService.Unsubscribe(c.Request.Context(), c.Query("token"))
	status := http.StatusOK
	if err != nil {
		status, _ = classify(err)
		if status == http.StatusInternalServerError {
			respondError(c, "CampaignHandler.Unsubscribe", err)
			return
		}
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	_ = unsubscribePage.Execute(c.Writer, struct {
		OK    bool
		Email string
	}{err == nil, email})
}

// GET /api/v1/admin/campaign-steps
func (h *CampaignHandler) GetSteps(c *gin.Context) {
	steps, err := h.campaignService.ListSteps(c.Request.Context())
	if err != nil {
		respondError(c, "CampaignHandler.GetSteps", err)
		return
	}
	enabled, err := h.campaignService.Enabled(c.Request.Context())
	if err != nil {
		respondError(c, "CampaignHandler.GetSteps", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"steps":   steps,
		"total":   len(steps),
		"enabled": enabled,
	})
}

// POST /api/v1/admin/campaign-steps
func (h *CampaignHandler) CreateStep(c *gin.Context) {
	var req services.CampaignStepInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	step, err := h.campaignService.CreateStep(c.Request.Context(), req)
	if err != nil {
		respondError(c, "CampaignHandler.CreateStep", err)
		return
	}
	c.JSON(http.StatusCreated, step)
}

// PUT /api/v1/admin/campaign-steps/:id
func (h *CampaignHandler) UpdateStep(c *gin.Context) {
	var req services.CampaignStepInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	step, err := h.campaignService.UpdateStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "CampaignHandler.UpdateStep", err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// DELETE /api/v1/admin/campaign-steps/:id
func (h *CampaignHandler) DeleteStep(c *gin.Context) {
	if err := h.campaignService.DeleteStep(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "CampaignHandler.DeleteStep", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign step deleted successfully"})
}

// SetEnabled flips the global campaign toggle
// PUT /api/v1/admin/campaign/enabled
func (h *CampaignHandler) SetEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled is required")
		return
	}
	if err := h.campaignService.SetEnabled(c.Request.Context(), *req.Enabled); err != nil {
		respondError(c, "CampaignHandler.SetEnabled", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}
