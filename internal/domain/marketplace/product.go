package marketplace

import (
	"github.com/shopspring/decimal"
)

// Provider tags which upstream shape a canonical product came from
type Provider string

const (
	ProviderDomestic      Provider = "domestic"
	ProviderInternational Provider = "international"
)

// IsValid returns true if the provider is known
func (p Provider) IsValid() bool {
	return p == ProviderDomestic || p == ProviderInternational
}

// String returns the string representation
func (p Provider) String() string {
	return string(p)
}

// Supplier identifies the vendor of a product
type Supplier struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Specification is one name/value attribute of a product
type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Product is the canonical product consumed by search, favorites and the catalog.
// Provider is set by the normalizer that produced the value and never inferred later.
type Product struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	OriginalPrice  decimal.Decimal `json:"originalPrice"`
	Currency       string          `json:"currency"`
	ImageURL       string          `json:"imageUrl"`
	Images         []string        `json:"images"`
	Supplier       Supplier        `json:"supplier"`
	Specifications []Specification `json:"specifications"`
	MinimumOrder   int             `json:"minimumOrder"`
	SalesQuantity  int64           `json:"salesQuantity"`
	Rating         float64         `json:"rating"`
	URL            string          `json:"url"`
	Provider       Provider        `json:"provider"`
}

// SoldValue estimates gross sales as price * sales quantity
func (p Product) SoldValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.SalesQuantity))
}
