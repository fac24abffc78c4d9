package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	maxExternalIDLength = 64
	maxCategoryIDLength = 64
	maxTitleLength      = 500
)

// ProductSnapshot is the minimal view of an upstream product needed for catalog display
type ProductSnapshot struct {
	Title        string          `json:"title" validate:"max=500"`
	Price        decimal.Decimal `json:"price"`
	Thumbnail    string          `json:"thumbnail"`
	Permalink    string          `json:"permalink"`
	SoldQuantity int64           `json:"soldQuantity" validate:"gte=0"`
	SoldValue    decimal.Decimal `json:"soldValue"`
}

// Normalize trims the title and cuts it to the stored length. Every write of
// a snapshot goes through it, whether the row is new or overwritten.
func (s ProductSnapshot) Normalize() ProductSnapshot {
	s.Title = truncateTitle(s.Title)
	return s
}

// SourceReference cross-references a matching product on the sourcing marketplace
type SourceReference struct {
	SourceID        string          `json:"sourceId"`
	Price           decimal.Decimal `json:"price"`
	Score           float64         `json:"score"`
	Title           string          `json:"title"`
	TranslatedTitle string          `json:"translatedTitle"`
	MinQuantity     int             `json:"minQuantity"`
}

// Observation is one sighting of a product under one category
type Observation struct {
	ExternalProductID string
	CategoryID        string
	Snapshot          ProductSnapshot
	Source            *SourceReference
}

// ValidateExternalID checks id can key a catalog row
func ValidateExternalID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("INVALID_EXTERNAL_ID", "External product id cannot be empty")
	}
	if len(id) > maxExternalIDLength {
		return invalid("INVALID_EXTERNAL_ID", "External product id is too long")
	}
	return nil
}

// Validate checks the observation carries usable keys
func (o Observation) Validate() error {
	if err := ValidateExternalID(o.ExternalProductID); err != nil {
		return err
	}
	if strings.TrimSpace(o.CategoryID) == "" {
		return invalid("INVALID_CATEGORY_ID", "Category id cannot be empty")
	}
	if len(o.CategoryID) > maxCategoryIDLength {
		return invalid("INVALID_CATEGORY_ID", "Category id is too long")
	}
	if o.Snapshot.Price.IsNegative() {
		return invalid("INVALID_PRICE", "Price cannot be negative")
	}
	return nil
}

// PopularProduct is a catalog row. Scalar fields are last-writer-wins;
// CategoryIDs is a set kept sorted and free of duplicates.
type PopularProduct struct {
	ExternalProductID string
	Title             string
	Price             decimal.Decimal
	Thumbnail         string
	Permalink         string
	SoldQuantity      int64
	SoldValue         decimal.Decimal
	CategoryIDs       []string
	Source            *SourceReference
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPopularProduct creates a catalog row from its first observation
func NewPopularProduct(obs Observation) (*PopularProduct, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	p := &PopularProduct{
		ExternalProductID: strings.TrimSpace(obs.ExternalProductID),
		CategoryIDs:       []string{obs.CategoryID},
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.applySnapshot(obs.Snapshot, obs.Source)
	return p, nil
}

func (p *PopularProduct) applySnapshot(s ProductSnapshot, source *SourceReference) {
	s = s.Normalize()
	p.Title = s.Title
	p.Price = s.Price
	p.Thumbnail = s.Thumbnail
	p.Permalink = s.Permalink
	p.SoldQuantity = s.SoldQuantity
	p.SoldValue = s.SoldValue
	if source != nil {
		src := *source
		p.Source = &src
	}
}

// NormalizeCategoryIDs sorts and de-duplicates category ids
func NormalizeCategoryIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func invalid(code, message string) error {
	return shared.WrapDomainError(code, message, shared.ErrInvalidInput)
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength])
	}
	return title
}
