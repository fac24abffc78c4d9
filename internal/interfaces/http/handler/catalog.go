package handler

import (
	catalogapp "github.com/china-facil/chinafacil-backend-sub000/internal/application/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/dto"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the popular product catalog
type CatalogHandler struct {
	BaseHandler
	catalogService *catalogapp.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalogapp.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// StartCrawl godoc
// @ID           startCatalogCrawl
// @Summary      Start a catalog crawl
// @Description  Enqueue a crawl of every upstream category. Returns the queued job.
// @Tags         catalog
// @Produce      json
// @Success      202 {object} APIResponse[catalogapp.EnqueuedJobDTO]
// @Failure      500 {object} ErrorResponse
// @Router       /catalog/crawl [post]
func (h *CatalogHandler) StartCrawl(c *gin.Context) {
	job, err := h.catalogService.StartCrawl(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}

// ListProducts godoc
// @ID           listCatalogProducts
// @Summary      List catalog products
// @Description  Paginated catalog rows, optionally restricted to one category
// @Tags         catalog
// @Produce      json
// @Param        category_id query string false "Category id"
// @Param        search query string false "Title contains"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Param        order_by query string false "Sort field" Enums(created_at, updated_at, title, price, sold_quantity, sold_value)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]catalogapp.ProductDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /catalog/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var filter catalogapp.ProductListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.catalogService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Products, result.Total, result.Page, result.PageSize)
}

// GetProduct godoc
// @ID           getCatalogProduct
// @Summary      Get a catalog product
// @Tags         catalog
// @Produce      json
// @Param        externalId path string true "Upstream product id"
// @Success      200 {object} APIResponse[catalogapp.ProductDTO]
// @Failure      404 {object} ErrorResponse
// @Router       /catalog/products/{externalId} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	var req dto.ExternalIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), req.ExternalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// DeleteProduct removes a row on operator request. Crawls may add it back.
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	var req dto.ExternalIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	if err := h.catalogService.DeleteProduct(c.Request.Context(), req.ExternalID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RequestRefresh queues a re-fetch of one row from the upstream
func (h *CatalogHandler) RequestRefresh(c *gin.Context) {
	var req dto.ExternalIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	job, err := h.catalogService.RequestRefresh(c.Request.Context(), req.ExternalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("/catalog")
	g.POST("/crawl", h.StartCrawl)

	products := g.Group("/products")
	products.GET("", h.ListProducts).
		GET("/:externalId", h.GetProduct).
		DELETE("/:externalId", h.DeleteProduct).
		POST("/:externalId/refresh", h.RequestRefresh)

	g.RegisterRoutes(rg)
}
