package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

// listProducts proxies the commerce catalog. Pagination via ?take= and ?skip=.
func (h *handlers) listProducts(c *gin.Context) {
	take := queryInt(c, "take", defaultPageSize)
	if take < 1 || take > maxPageSize {
		take = defaultPageSize
	}
	skip := queryInt(c, "skip", 0)
	if skip < 0 {
		skip = 0
	}

	sc := h.deps.Commerce("")
	products, err := sc.Products(c.Request.Context(), take, skip)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": products})
}

func (h *handlers) getProduct(c *gin.Context) {
	slug := c.Param("slug")

	sc := h.deps.Commerce("")
	product, err := sc.ProductBySlug(c.Request.Context(), slug)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "product not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, product)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
