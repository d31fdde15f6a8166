package handlers

import (
	"net/http"

	"receiptmaker/internal/auth"
	"receiptmaker/internal/logger"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	premiumService *services.PremiumService
}

func NewUserHandler(premiumService *services.PremiumService) *UserHandler {
	return &UserHandler{premiumService: premiumService}
}

// EnsureUser mirrors authenticated callers into the users table so the
// billing side can attach a plan to them. Failures are logged only.
func (h *UserHandler) EnsureUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, ok := auth.CurrentUser(c); ok {
			if err := h.premiumService.EnsureUser(c.Request.Context(), u.ID, u.Email, u.Name); err != nil {
				logger.LogWarn(logger.Get(), "handlers", "UserHandler.EnsureUser", u.ID, nil, err)
			}
		}
		c.Next()
	}
}

// GetMe returns the caller and their plan
// GET /api/v1/me
func (h *UserHandler) GetMe(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		respondError(c, "UserHandler.GetMe", auth.ErrUnauthenticated)
		return
	}
	status, err := h.premiumService.Status(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, "UserHandler.GetMe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    u,
		"premium": status,
	})
}
