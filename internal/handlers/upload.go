package handlers

import (
	"fmt"
	"io"
	"net/http"

	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20

type UploadHandler struct {
	uploadService *services.UploadService
	aiGenerator   *services.AIGenerator
}

func NewUploadHandler(uploadService *services.UploadService, aiGenerator *services.AIGenerator) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		aiGenerator:   aiGenerator,
	}
}

// UploadLogo stores a header logo as a normalised PNG
// POST /api/v1/uploads/logo
func (h *UploadHandler) UploadLogo(c *gin.Context) {
	data, ok := readFormFile(c, "file")
	if !ok {
		return
	}
	up, err := h.uploadService.UploadLogo(c.Request.Context(), currentUserID(c), data)
	if err != nil {
		respondError(c, "UploadHandler.UploadLogo", err)
		return
	}
	c.JSON(http.StatusCreated, up)
}

// GenerateTemplate turns a receipt photo into an editable document
// POST /api/v1/ai/templates
func (h *UploadHandler) GenerateTemplate(c *gin.Context) {
	data, ok := readFormFile(c, "image")
	if !ok {
		return
	}
	doc, err := h.aiGenerator.Generate(c.Request.Context(), data)
	if err != nil {
		respondError(c, "UploadHandler.GenerateTemplate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func readFormFile(c *gin.Context, field string) ([]byte, bool) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		badRequest(c, "No file uploaded")
		return nil, false
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		badRequest(c, fmt.Sprintf("file must be at most %d MB", maxUploadBytes>>20))
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || len(data) > maxUploadBytes {
		badRequest(c, "failed to read upload")
		return nil, false
	}
	return data, true
}
