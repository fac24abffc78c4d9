package catalog

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObservation(id, category string) Observation {
	return Observation{
		ExternalProductID: id,
		CategoryID:        category,
		Snapshot: ProductSnapshot{
			Title:        "Wireless earbuds",
			Price:        decimal.RequireFromString("19.90"),
			Thumbnail:    "https://img.example.com/1.jpg",
			Permalink:    "https://item.example.com/1",
			SoldQuantity: 10,
			SoldValue:    decimal.RequireFromString("199.00"),
		},
	}
}

func TestObservation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		obs     Observation
		wantErr string
	}{
		{name: "valid", obs: newObservation("X1", "C1")},
		{name: "empty external id", obs: newObservation("  ", "C1"), wantErr: "INVALID_EXTERNAL_ID"},
		{name: "empty category", obs: newObservation("X1", ""), wantErr: "INVALID_CATEGORY_ID"},
		{
			name: "negative price",
			obs: func() Observation {
				o := newObservation("X1", "C1")
				o.Snapshot.Price = decimal.NewFromInt(-1)
				return o
			}(),
			wantErr: "INVALID_PRICE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.obs.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.wantErr, domainErr.Code)
		})
	}
}

func TestNewPopularProduct(t *testing.T) {
	p, err := NewPopularProduct(newObservation("X1", "C1"))
	require.NoError(t, err)

	assert.Equal(t, "X1", p.ExternalProductID)
	assert.Equal(t, []string{"C1"}, p.CategoryIDs)
	assert.Equal(t, "Wireless earbuds", p.Title)
	assert.Equal(t, 1, p.Version)
	assert.Nil(t, p.Source)
}

func TestProductSnapshot_Normalize(t *testing.T) {
	long := strings.Repeat("é", maxTitleLength+20)
	got := ProductSnapshot{Title: "  " + long + "  ", SoldQuantity: 4}.Normalize()

	assert.Equal(t, maxTitleLength, utf8.RuneCountInString(got.Title))
	assert.Equal(t, int64(4), got.SoldQuantity)
	assert.Equal(t, "Lamp", ProductSnapshot{Title: " Lamp\n"}.Normalize().Title)
}

func TestNormalizeCategoryIDs(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, NormalizeCategoryIDs([]string{"C", "A", "", "B", "A"}))
	assert.Empty(t, NormalizeCategoryIDs(nil))
}

func TestPopularProductEvents(t *testing.T) {
	p, err := NewPopularProduct(newObservation("X1", "C1"))
	require.NoError(t, err)

	created := NewPopularProductCreatedEvent(p, "C1")
	assert.Equal(t, EventTypePopularProductCreated, created.EventType())
	assert.Equal(t, "X1", created.AggregateID())
	assert.Equal(t, AggregateTypePopularProduct, created.AggregateType())

	p.CategoryIDs = []string{"C1", "C2"}
	added := NewPopularProductCategoryAddedEvent(p, "C2")
	p.CategoryIDs[1] = "C3"
	assert.Equal(t, []string{"C1", "C2"}, added.CategoryIDs)

	deleted := NewPopularProductDeletedEvent("X1", DeleteReasonDelisted)
	assert.Equal(t, EventTypePopularProductDeleted, deleted.EventType())
	assert.Equal(t, "delisted", deleted.Reason)
}
