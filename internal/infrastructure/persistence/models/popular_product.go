package models

import (
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PopularProductModel is the persistence model for a popular-products catalog row.
// Category membership lives in PopularProductCategoryModel rows, never in this table.
type PopularProductModel struct {
	ID                    uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ExternalProductID     string              `gorm:"type:varchar(64);not null;uniqueIndex:uq_popular_products_external_id"`
	Title                 string              `gorm:"type:varchar(500);not null"`
	Price                 decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Thumbnail             string              `gorm:"type:text"`
	Permalink             string              `gorm:"type:text"`
	SoldQuantity          int64               `gorm:"not null"`
	SoldValue             decimal.Decimal     `gorm:"type:decimal(20,4);not null"`
	SourceID              *string             `gorm:"type:varchar(64)"`
	SourcePrice           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	SourceScore           *float64
	SourceTitle           *string `gorm:"type:text"`
	SourceTranslatedTitle *string `gorm:"type:text"`
	SourceMinQuantity     *int
	Version               int       `gorm:"not null"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null;index:idx_popular_products_updated_at"`
}

// TableName returns the table name for GORM
func (PopularProductModel) TableName() string {
	return "popular_products"
}

// ToDomain converts the persistence model to a domain PopularProduct.
// categoryIDs are loaded separately from the edge table.
func (m *PopularProductModel) ToDomain(categoryIDs []string) *catalog.PopularProduct {
	p := &catalog.PopularProduct{
		ExternalProductID: m.ExternalProductID,
		Title:             m.Title,
		Price:             m.Price,
		Thumbnail:         m.Thumbnail,
		Permalink:         m.Permalink,
		SoldQuantity:      m.SoldQuantity,
		SoldValue:         m.SoldValue,
		CategoryIDs:       catalog.NormalizeCategoryIDs(categoryIDs),
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.SourceID != nil {
		src := &catalog.SourceReference{SourceID: *m.SourceID}
		if m.SourcePrice.Valid {
			src.Price = m.SourcePrice.Decimal
		}
		if m.SourceScore != nil {
			src.Score = *m.SourceScore
		}
		if m.SourceTitle != nil {
			src.Title = *m.SourceTitle
		}
		if m.SourceTranslatedTitle != nil {
			src.TranslatedTitle = *m.SourceTranslatedTitle
		}
		if m.SourceMinQuantity != nil {
			src.MinQuantity = *m.SourceMinQuantity
		}
		p.Source = src
	}
	return p
}

// FromDomain populates the persistence model from a domain PopularProduct
func (m *PopularProductModel) FromDomain(p *catalog.PopularProduct) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.ExternalProductID = p.ExternalProductID
	m.Title = p.Title
	m.Price = p.Price
	m.Thumbnail = p.Thumbnail
	m.Permalink = p.Permalink
	m.SoldQuantity = p.SoldQuantity
	m.SoldValue = p.SoldValue
	m.Version = p.Version
	m.CreatedAt = p.CreatedAt.UTC()
	m.UpdatedAt = p.UpdatedAt.UTC()
	m.SourceID, m.SourcePrice, m.SourceScore, m.SourceTitle, m.SourceTranslatedTitle, m.SourceMinQuantity = nil, decimal.NullDecimal{}, nil, nil, nil, nil
	if p.Source != nil {
		src := *p.Source
		m.SourceID = &src.SourceID
		m.SourcePrice = decimal.NewNullDecimal(src.Price)
		m.SourceScore = &src.Score
		m.SourceTitle = &src.Title
		m.SourceTranslatedTitle = &src.TranslatedTitle
		m.SourceMinQuantity = &src.MinQuantity
	}
}

// SnapshotColumns returns the scalar column updates of a later observation
func SnapshotColumns(s catalog.ProductSnapshot) map[string]interface{} {
	s = s.Normalize()
	return map[string]interface{}{
		"title":         s.Title,
		"price":         s.Price,
		"thumbnail":     s.Thumbnail,
		"permalink":     s.Permalink,
		"sold_quantity": s.SoldQuantity,
		"sold_value":    s.SoldValue,
	}
}

// SourceColumns returns the column updates that attach a source reference
func SourceColumns(src *catalog.SourceReference) map[string]interface{} {
	return map[string]interface{}{
		"source_id":               src.SourceID,
		"source_price":            src.Price,
		"source_score":            src.Score,
		"source_title":            src.Title,
		"source_translated_title": src.TranslatedTitle,
		"source_min_quantity":     src.MinQuantity,
	}
}

// PopularProductModelFromDomain creates a new persistence model from a domain PopularProduct
func PopularProductModelFromDomain(p *catalog.PopularProduct) *PopularProductModel {
	m := &PopularProductModel{}
	m.FromDomain(p)
	return m
}

// PopularProductCategoryModel is one (product, category) membership edge.
// The composite primary key makes concurrent inserts of the same pair collapse into one row.
type PopularProductCategoryModel struct {
	ExternalProductID string    `gorm:"type:varchar(64);primaryKey"`
	CategoryID        string    `gorm:"type:varchar(64);primaryKey;index:idx_popular_product_categories_category"`
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PopularProductCategoryModel) TableName() string {
	return "popular_product_categories"
}
