package catalog

import (
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductListFilter represents catalog listing query parameters
type ProductListFilter struct {
	CategoryID string `form:"category_id" binding:"omitempty,max=64"`
	Search     string `form:"search" binding:"omitempty,max=200"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by" binding:"omitempty,oneof=created_at updated_at title price sold_quantity sold_value"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SourceDTO is the matched sourcing-marketplace listing of a catalog row
type SourceDTO struct {
	SourceID        string          `json:"source_id"`
	Price           decimal.Decimal `json:"price"`
	Score           float64         `json:"score"`
	Title           string          `json:"title"`
	TranslatedTitle string          `json:"translated_title,omitempty"`
	MinQuantity     int             `json:"min_quantity"`
}

// ProductDTO represents a catalog row in API responses
type ProductDTO struct {
	ExternalProductID string          `json:"external_product_id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	Thumbnail         string          `json:"thumbnail"`
	Permalink         string          `json:"permalink"`
	SoldQuantity      int64           `json:"sold_quantity"`
	SoldValue         decimal.Decimal `json:"sold_value"`
	CategoryIDs       []string        `json:"category_ids"`
	Source            *SourceDTO      `json:"source,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProductListResult is one page of catalog rows
type ProductListResult struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// EnqueuedJobDTO identifies a job accepted for background processing
type EnqueuedJobDTO struct {
	JobID uuid.UUID `json:"job_id"`
	Type  string    `json:"type"`
	RunAt time.Time `json:"run_at"`
}

// ToProductDTO converts a catalog row to its API representation
func ToProductDTO(p *catalog.PopularProduct) ProductDTO {
	dto := ProductDTO{
		ExternalProductID: p.ExternalProductID,
		Title:             p.Title,
		Price:             p.Price,
		Thumbnail:         p.Thumbnail,
		Permalink:         p.Permalink,
		SoldQuantity:      p.SoldQuantity,
		SoldValue:         p.SoldValue,
		CategoryIDs:       p.CategoryIDs,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if dto.CategoryIDs == nil {
		dto.CategoryIDs = []string{}
	}
	if p.Source != nil {
		dto.Source = &SourceDTO{
			SourceID:        p.Source.SourceID,
			Price:           p.Source.Price,
			Score:           p.Source.Score,
			Title:           p.Source.Title,
			TranslatedTitle: p.Source.TranslatedTitle,
			MinQuantity:     p.Source.MinQuantity,
		}
	}
	return dto
}
