package marketplace

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProvider_IsValid(t *testing.T) {
	assert.True(t, ProviderDomestic.IsValid())
	assert.True(t, ProviderInternational.IsValid())
	assert.False(t, Provider("").IsValid())
	assert.False(t, Provider("amazon").IsValid())
}

func TestProduct_SoldValue(t *testing.T) {
	p := Product{Price: decimal.RequireFromString("12.50"), SalesQuantity: 4}
	assert.True(t, decimal.RequireFromString("50").Equal(p.SoldValue()))
}

func TestProductPage_HasMore(t *testing.T) {
	page := &ProductPage{Paging: Paging{Total: 53}}

	assert.True(t, page.HasMore(0, 25))
	assert.True(t, page.HasMore(25, 25))
	assert.False(t, page.HasMore(50, 25))
	assert.False(t, (&ProductPage{Paging: Paging{Total: 50}}).HasMore(25, 25))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("%w: HTTP 404", ErrProductNotFound)))
	assert.True(t, IsPermanent(ErrRequestFailed))
	assert.False(t, IsPermanent(ErrUnavailable))
	assert.False(t, IsPermanent(fmt.Errorf("wrap: %w", ErrInvalidResponse)))
}
