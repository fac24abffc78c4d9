package marketplace

import (
	"context"
	"errors"
)

var (
	ErrUnavailable      = errors.New("marketplace: upstream temporarily unavailable")
	ErrRequestFailed    = errors.New("marketplace: upstream request failed")
	ErrInvalidResponse  = errors.New("marketplace: invalid upstream response")
	ErrProductNotFound  = errors.New("marketplace: product no longer exists upstream")
	ErrRateLimited      = errors.New("marketplace: upstream rate limited")
	ErrNotConfigured    = errors.New("marketplace: client not configured")
	ErrUnknownProvider  = errors.New("marketplace: unknown provider")
	ErrEmptySearchQuery = errors.New("marketplace: search query is empty")
)

// RawItem is one upstream product exactly as decoded from JSON
type RawItem map[string]any

// Category is one node of the upstream category tree
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Paging carries the upstream's reported result size
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ProductPage is one page of a category listing. A nil Results slice means
// the upstream returned no list at all.
type ProductPage struct {
	Results []RawItem `json:"results"`
	Paging  Paging    `json:"paging"`
}

// HasMore reports whether the upstream has items beyond offset+limit
func (p *ProductPage) HasMore(offset, limit int) bool {
	return p.Paging.Total > offset+limit
}

// SearchQuery describes a keyword search against one provider
type SearchQuery struct {
	Keyword  string
	Page     int
	PageSize int
}

// SearchPage is one provider's raw search response
type SearchPage struct {
	Items []RawItem
	Total int
}

// Client is the port to an upstream marketplace
type Client interface {
	// Provider identifies which upstream shape this client returns
	Provider() Provider
	// ListCategories returns the full category list
	ListCategories(ctx context.Context) ([]Category, error)
	// ListProductsByCategory returns one page of raw products
	ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (*ProductPage, error)
	// GetProduct fetches product detail; ErrProductNotFound means the product was delisted
	GetProduct(ctx context.Context, productID string) (RawItem, error)
	// Search runs a keyword search
	Search(ctx context.Context, query SearchQuery) (*SearchPage, error)
}

// IsPermanent reports whether an upstream error will not go away on retry
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrRequestFailed)
}
