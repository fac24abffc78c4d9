package normalizer

import (
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomestic_FullItem(t *testing.T) {
	raw := decodeRaw(t, `{
		"num_iid": 610947572360,
		"title": "Stainless steel water bottle",
		"price": "¥25.80",
		"orginal_price": "¥32.00",
		"pic_url": "//img.alicdn.com/bao/1.jpg",
		"item_imgs": [{"url": "//img.alicdn.com/bao/1.jpg"}, {"url": "https://img.alicdn.com/bao/2.jpg"}],
		"seller_info": {"shop_id": "s-88", "shop_name": "Yiwu Drinkware", "province": "Zhejiang", "city": "Jinhua"},
		"props": [{"name": "Capacity", "value": "500ml"}, {"name": "", "value": ""}],
		"min_num": "2",
		"sales": "1.5万+",
		"rating": "4.8",
		"detail_url": "//detail.1688.com/offer/610947572360.html"
	}`)

	p, err := NormalizeDomestic(raw)
	require.NoError(t, err)

	assert.Equal(t, "610947572360", p.ID)
	assert.Equal(t, "Stainless steel water bottle", p.Title)
	assert.True(t, decimal.RequireFromString("25.80").Equal(p.Price))
	assert.True(t, decimal.RequireFromString("32").Equal(p.OriginalPrice))
	assert.Equal(t, "CNY", p.Currency)
	assert.Equal(t, "https://img.alicdn.com/bao/1.jpg", p.ImageURL)
	assert.Equal(t, []string{"https://img.alicdn.com/bao/1.jpg", "https://img.alicdn.com/bao/2.jpg"}, p.Images)
	assert.Equal(t, marketplace.Supplier{ID: "s-88", Name: "Yiwu Drinkware", Location: "Zhejiang Jinhua"}, p.Supplier)
	assert.Equal(t, []marketplace.Specification{{Name: "Capacity", Value: "500ml"}}, p.Specifications)
	assert.Equal(t, 2, p.MinimumOrder)
	assert.Equal(t, int64(15000), p.SalesQuantity)
	assert.Equal(t, 4.8, p.Rating)
	assert.Equal(t, "https://detail.1688.com/offer/610947572360.html", p.URL)
	assert.Equal(t, marketplace.ProviderDomestic, p.Provider)
}

func TestNormalizeDomestic_Fallbacks(t *testing.T) {
	raw := decodeRaw(t, `{
		"id": "42",
		"subject": "Desk lamp",
		"price": 19,
		"images": ["//cdn.example.com/lamp.jpg"],
		"seller_nick": "lampshop",
		"location": "Guangdong Shenzhen"
	}`)

	p, err := NormalizeDomestic(raw)
	require.NoError(t, err)

	assert.Equal(t, "Desk lamp", p.Title)
	assert.True(t, decimal.NewFromInt(19).Equal(p.Price))
	assert.True(t, p.Price.Equal(p.OriginalPrice))
	assert.Equal(t, "https://cdn.example.com/lamp.jpg", p.ImageURL)
	assert.Equal(t, "lampshop", p.Supplier.Name)
	assert.Equal(t, "Guangdong Shenzhen", p.Supplier.Location)
	assert.Equal(t, 1, p.MinimumOrder)
	assert.Equal(t, "https://detail.1688.com/offer/42.html", p.URL)
}

func TestNormalizeDomestic_UnparseablePriceIsZero(t *testing.T) {
	p, err := NormalizeDomestic(decodeRaw(t, `{"item_id":"1","price":"negotiable"}`))
	require.NoError(t, err)
	assert.True(t, p.Price.IsZero())
}
