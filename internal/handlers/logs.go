package handlers

import (
	"net/http"
	"strconv"

	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type LogsHandler struct {
	activityLogService *services.ActivityLogService
}

func NewLogsHandler(activityLogService *services.ActivityLogService) *LogsHandler {
	return &LogsHandler{activityLogService: activityLogService}
}

// GetLogs pages through recorded API requests
// GET /api/v1/admin/logs?limit=50&offset=0&method=POST&path=/render
func (h *LogsHandler) GetLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, total, err := h.activityLogService.ListLogs(c.Request.Context(), services.LogFilter{
		Method: c.Query("method"),
		Path:   c.Query("path"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, "LogsHandler.GetLogs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
