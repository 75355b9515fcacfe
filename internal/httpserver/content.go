package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

func (h *handlers) listPosts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", 10)
	if perPage < 1 || perPage > 50 {
		perPage = 10
	}

	posts, err := h.deps.Content.Posts(c.Request.Context(), page, perPage)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": posts})
}

func (h *handlers) getPost(c *gin.Context) {
	post, err := h.deps.Content.PostBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "post not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *handlers) getPage(c *gin.Context) {
	page, err := h.deps.Content.PageBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "page not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, page)
}
