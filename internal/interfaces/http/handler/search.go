package handler

import (
	"github.com/china-facil/chinafacil-backend-sub000/internal/application/search"
	"github.com/gin-gonic/gin"
)

// SearchHandler serves mixed keyword search across the marketplaces
type SearchHandler struct {
	BaseHandler
	aggregator *search.Aggregator
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(aggregator *search.Aggregator) *SearchHandler {
	return &SearchHandler{aggregator: aggregator}
}

// SearchRequest holds the search query parameters
type SearchRequest struct {
	Q        string `form:"q" binding:"required,max=200"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Search godoc
// @ID           searchProducts
// @Summary      Search every marketplace
// @Description  Queries each provider concurrently. A failed provider contributes
// @Description  no items and is reported in sources; the request still succeeds.
// @Tags         search
// @Produce      json
// @Param        q query string true "Keyword"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per provider" default(20) maximum(100)
// @Success      200 {object} APIResponse[search.Result]
// @Failure      400 {object} ErrorResponse
// @Router       /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.aggregator.Search(c.Request.Context(), search.Query{
		Keyword:  req.Q,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
}
