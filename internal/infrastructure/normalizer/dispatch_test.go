package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, s string) marketplace.RawItem {
	t.Helper()
	var raw marketplace.RawItem
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want marketplace.Provider
	}{
		{name: "Id marker", raw: `{"Id":"789"}`, want: marketplace.ProviderInternational},
		{name: "QuantityRanges marker", raw: `{"item":"1","QuantityRanges":[]}`, want: marketplace.ProviderInternational},
		{name: "VendorId marker", raw: `{"VendorId":"v"}`, want: marketplace.ProviderInternational},
		{name: "domestic fields", raw: `{"item_id":"123","title":"T"}`, want: marketplace.ProviderDomestic},
		{name: "lowercase id is domestic", raw: `{"id":"1"}`, want: marketplace.ProviderDomestic},
		{name: "empty defaults to domestic", raw: `{}`, want: marketplace.ProviderDomestic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(decodeRaw(t, tt.raw)))
		})
	}
}

func TestNormalize_DomesticRoundTrip(t *testing.T) {
	p, err := Normalize(decodeRaw(t, `{"item_id":"123","title":"T","price":"¥1,234.50"}`))
	require.NoError(t, err)

	assert.Equal(t, "123", p.ID)
	assert.Equal(t, "T", p.Title)
	assert.True(t, decimal.RequireFromString("1234.50").Equal(p.Price))
	assert.Equal(t, "CNY", p.Currency)
	assert.Equal(t, marketplace.ProviderDomestic, p.Provider)
}

func TestNormalize_InternationalRoundTrip(t *testing.T) {
	p, err := Normalize(decodeRaw(t, `{"Id":"789","QuantityRanges":[{"Price":"12.00"}]}`))
	require.NoError(t, err)

	assert.Equal(t, "789", p.ID)
	assert.Equal(t, marketplace.ProviderInternational, p.Provider)
	assert.True(t, decimal.RequireFromString("12.00").Equal(p.Price))
}

func TestNormalize_PassThrough(t *testing.T) {
	original := marketplace.Product{
		ID:       "555",
		Title:    "Already normalized",
		Price:    decimal.RequireFromString("8.80"),
		Currency: "CNY",
		Images:   []string{"https://img/1.jpg"},
		Provider: marketplace.ProviderDomestic,
	}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	// an "Id"-like marker must not trigger re-normalization once tagged
	raw := decodeRaw(t, string(data))
	raw["VendorId"] = "ignored"

	p, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, original.ID, p.ID)
	assert.Equal(t, original.Title, p.Title)
	assert.Equal(t, marketplace.ProviderDomestic, p.Provider)
	assert.True(t, original.Price.Equal(p.Price))
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = Normalize(decodeRaw(t, `{"provider":"amazon","id":"1"}`))
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = Normalize(decodeRaw(t, `{"title":"no id"}`))
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = NormalizeAs(marketplace.Provider("x"), decodeRaw(t, `{"id":"1"}`))
	assert.ErrorIs(t, err, marketplace.ErrUnknownProvider)
}

func TestNormalizeBatch_DropsBadItems(t *testing.T) {
	items := []marketplace.RawItem{
		decodeRaw(t, `{"item_id":"1","title":"a","price":"1.00"}`),
		decodeRaw(t, `{"title":"missing id"}`),
		decodeRaw(t, `{"Id":"2","Title":"b","QuantityRanges":[{"Price":"2.00"}]}`),
	}

	products, failures := NormalizeBatch(items)

	require.Len(t, products, 2)
	assert.Equal(t, marketplace.ProviderDomestic, products[0].Provider)
	assert.Equal(t, marketplace.ProviderInternational, products[1].Provider)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.ErrorIs(t, failures[0], ErrInvalidItem)
}

func TestNormalizeBatchAs_UsesKnownProvider(t *testing.T) {
	items := []marketplace.RawItem{
		decodeRaw(t, `{"id":"1","title":"domestic but odd","price":"3"}`),
	}

	products, failures := NormalizeBatchAs(marketplace.ProviderDomestic, items)

	assert.Empty(t, failures)
	require.Len(t, products, 1)
	assert.Equal(t, marketplace.ProviderDomestic, products[0].Provider)
}
