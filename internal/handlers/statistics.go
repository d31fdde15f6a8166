package handlers

import (
	"net/http"
	"strconv"

	"receiptmaker/internal/models"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService *services.StatisticsService
}

func NewStatisticsHandler(statisticsService *services.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{
		statisticsService: statisticsService,
	}
}

// GetSummary returns total counts for all event types
// GET /api/v1/admin/statistics/summary
func (h *StatisticsHandler) GetSummary(c *gin.Context) {
	summary, err := h.statisticsService.GetSummary(c.Request.Context())
	if err != nil {
		respondError(c, "StatisticsHandler.GetSummary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
	})
}

// GetTemplateStats returns statistics for every template with recorded events
// GET /api/v1/admin/statistics/templates
func (h *StatisticsHandler) GetTemplateStats(c *gin.Context) {
	stats, err := h.statisticsService.GetTemplateStats(c.Request.Context())
	if err != nil {
		respondError(c, "StatisticsHandler.GetTemplateStats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": stats,
	})
}

// GET /api/v1/admin/statistics/templates/:templateId
func (h *StatisticsHandler) GetStatsByTemplate(c *gin.Context) {
	stats, err := h.statisticsService.GetStatsByTemplate(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		respondError(c, "StatisticsHandler.GetStatsByTemplate", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTrends returns time-based statistics
// GET /api/v1/admin/statistics/trends?days=30&template_id=xxx
func (h *StatisticsHandler) GetTrends(c *gin.Context) {
	days := parseDays(c)
	trends, err := h.statisticsService.GetTrends(c.Request.Context(), days, c.Query("template_id"))
	if err != nil {
		respondError(c, "StatisticsHandler.GetTrends", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":   days,
		"trends": trends,
	})
}

// GetTimeSeries returns time-based statistics for a specific event type
// GET /api/v1/admin/statistics/trends/:eventType?days=30&template_id=xxx
func (h *StatisticsHandler) GetTimeSeries(c *gin.Context) {
	eventType := models.EventType(c.Param("eventType"))
	valid := false
	for _, et := range models.EventTypes() {
		if et == eventType {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "invalid event_type",
			"valid_types": models.EventTypes(),
		})
		return
	}

	days := parseDays(c)
	data, err := h.statisticsService.GetTimeSeries(c.Request.Context(), eventType, days, c.Query("template_id"))
	if err != nil {
		respondError(c, "StatisticsHandler.GetTimeSeries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days": days,
		"data": data,
	})
}

// GetAll returns a comprehensive statistics overview
// GET /api/v1/admin/statistics
func (h *StatisticsHandler) GetAll(c *gin.Context) {
	ctx := c.Request.Context()

	summary, err := h.statisticsService.GetSummary(ctx)
	if err != nil {
		respondError(c, "StatisticsHandler.GetAll", err)
		return
	}

	templateStats, err := h.statisticsService.GetTemplateStats(ctx)
	if err != nil {
		respondError(c, "StatisticsHandler.GetAll", err)
		return
	}

	trends, err := h.statisticsService.GetTrends(ctx, 30, "")
	if err != nil {
		respondError(c, "StatisticsHandler.GetAll", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"templates": templateStats,
		"trends":    trends,
	})
}

// parseDays reads ?days=, defaulting to 30 and capped at a year
func parseDays(c *gin.Context) int {
	if d := c.Query("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 && parsed <= 365 {
			return parsed
		}
	}
	return 30
}
