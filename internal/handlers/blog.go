package handlers

import (
	"net/http"
	"strconv"

	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
)

type BlogHandler struct {
	blogService *services.BlogService
}

func NewBlogHandler(blogService *services.BlogService) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

// GetPosts returns published posts
// GET /api/v1/blog?limit=20&offset=0
func (h *BlogHandler) GetPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	posts, total, err := h.blogService.ListPublished(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, "BlogHandler.GetPosts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GET /api/v1/blog/:slug
func (h *BlogHandler) GetPost(c *gin.Context) {
	post, err := h.blogService.GetPublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, "BlogHandler.GetPost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// GetAllPosts includes drafts (admin)
// GET /api/v1/admin/blog
func (h *BlogHandler) GetAllPosts(c *gin.Context) {
	posts, err := h.blogService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, "BlogHandler.GetAllPosts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": len(posts)})
}

// POST /api/v1/admin/blog
func (h *BlogHandler) CreatePost(c *gin.Context) {
	var req services.BlogPostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	post, err := h.blogService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, "BlogHandler.CreatePost", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// PUT /api/v1/admin/blog/:id
func (h *BlogHandler) UpdatePost(c *gin.Context) {
	var req services.BlogPostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	post, err := h.blogService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "BlogHandler.UpdatePost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DELETE /api/v1/admin/blog/:id
func (h *BlogHandler) DeletePost(c *gin.Context) {
	if err := h.blogService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "BlogHandler.DeletePost", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
