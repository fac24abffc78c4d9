package catalog

import (
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePopularProduct = "PopularProduct"

// Event type constants
const (
	EventTypePopularProductCreated       = "PopularProductCreated"
	EventTypePopularProductUpdated       = "PopularProductUpdated"
	EventTypePopularProductCategoryAdded = "PopularProductCategoryAdded"
	EventTypePopularProductDeleted       = "PopularProductDeleted"
)

// PopularProductCreatedEvent is returned when an upsert created the row
type PopularProductCreatedEvent struct {
	shared.BaseDomainEvent
	ExternalProductID string          `json:"external_product_id"`
	CategoryID        string          `json:"category_id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
}

// NewPopularProductCreatedEvent creates a new PopularProductCreatedEvent
func NewPopularProductCreatedEvent(p *PopularProduct, categoryID string) *PopularProductCreatedEvent {
	return &PopularProductCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePopularProductCreated, AggregateTypePopularProduct, p.ExternalProductID),
		ExternalProductID: p.ExternalProductID,
		CategoryID:        categoryID,
		Title:             p.Title,
		Price:             p.Price,
	}
}

// PopularProductUpdatedEvent is returned when an upsert overwrote scalars of an existing row
type PopularProductUpdatedEvent struct {
	shared.BaseDomainEvent
	ExternalProductID string          `json:"external_product_id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	Version           int             `json:"version"`
}

// NewPopularProductUpdatedEvent creates a new PopularProductUpdatedEvent
func NewPopularProductUpdatedEvent(p *PopularProduct) *PopularProductUpdatedEvent {
	return &PopularProductUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePopularProductUpdated, AggregateTypePopularProduct, p.ExternalProductID),
		ExternalProductID: p.ExternalProductID,
		Title:             p.Title,
		Price:             p.Price,
		Version:           p.Version,
	}
}

// PopularProductCategoryAddedEvent is returned when an existing row joined a new category
type PopularProductCategoryAddedEvent struct {
	shared.BaseDomainEvent
	ExternalProductID string   `json:"external_product_id"`
	CategoryID        string   `json:"category_id"`
	CategoryIDs       []string `json:"category_ids"`
}

// NewPopularProductCategoryAddedEvent creates a new PopularProductCategoryAddedEvent
func NewPopularProductCategoryAddedEvent(p *PopularProduct, categoryID string) *PopularProductCategoryAddedEvent {
	ids := make([]string, len(p.CategoryIDs))
	copy(ids, p.CategoryIDs)
	return &PopularProductCategoryAddedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePopularProductCategoryAdded, AggregateTypePopularProduct, p.ExternalProductID),
		ExternalProductID: p.ExternalProductID,
		CategoryID:        categoryID,
		CategoryIDs:       ids,
	}
}

// PopularProductDeletedEvent is returned when a row was removed
type PopularProductDeletedEvent struct {
	shared.BaseDomainEvent
	ExternalProductID string `json:"external_product_id"`
	Reason            string `json:"reason"`
}

// Deletion reasons
const (
	DeleteReasonDelisted = "delisted"
	DeleteReasonManual   = "manual"
)

// NewPopularProductDeletedEvent creates a new PopularProductDeletedEvent
func NewPopularProductDeletedEvent(externalID, reason string) *PopularProductDeletedEvent {
	return &PopularProductDeletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePopularProductDeleted, AggregateTypePopularProduct, externalID),
		ExternalProductID: externalID,
		Reason:            reason,
	}
}
