package normalizer

import (
	"fmt"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/shopspring/decimal"
)

// InternationalDefaultCurrency is used when an international item does not state its currency
const InternationalDefaultCurrency = "USD"

// NormalizeInternational maps an international B2B API item to the canonical product
func NormalizeInternational(raw marketplace.RawItem) (marketplace.Product, error) {
	id := firstString(raw, "Id", "ItemId", "ProductId")
	if id == "" {
		return marketplace.Product{}, fmt.Errorf("%w: international item has no Id", ErrInvalidItem)
	}

	product := marketplace.Product{
		ID:       id,
		Title:    firstString(raw, "Title", "OriginalTitle", "Name"),
		Provider: marketplace.ProviderInternational,
	}

	price, original, currency := internationalPrice(raw)
	product.Price = price
	product.OriginalPrice = original
	product.Currency = currency

	product.ImageURL = FixImageURL(firstString(raw, "MainPictureUrl", "PictureUrl", "ImageUrl"))
	if v, ok := firstValue(raw, "Pictures", "Images"); ok {
		product.Images = imageList(v, "Url", "Large.Url", "Medium.Url")
	}
	if product.ImageURL == "" && len(product.Images) > 0 {
		product.ImageURL = product.Images[0]
	}
	if product.ImageURL != "" && len(product.Images) == 0 {
		product.Images = []string{product.ImageURL}
	}

	product.Supplier = marketplace.Supplier{
		ID:   firstString(raw, "VendorId", "Vendor.Id", "SellerId"),
		Name: firstString(raw, "VendorDisplayName", "VendorName", "Vendor.DisplayName", "Vendor.Name"),
		Location: firstNonEmpty(
			joinNonEmpty(", ", firstString(raw, "Location.City"), firstString(raw, "Location.State")),
			firstString(raw, "Location", "Vendor.Location.City", "VendorLocation"),
		),
	}

	if v, ok := firstValue(raw, "Attributes", "Properties"); ok {
		product.Specifications = specList(v, []string{"PropertyName", "OriginalPropertyName", "Name"}, []string{"Value", "OriginalValue"})
	}

	if v, ok := firstValue(raw, "FirstLotQuantity", "MinOrderQuantity", "BatchLotQuantity"); ok {
		product.MinimumOrder = int(ParseCount(v))
	}
	if product.MinimumOrder < 1 {
		if q := firstRangeQuantity(raw); q > 0 {
			product.MinimumOrder = q
		} else {
			product.MinimumOrder = 1
		}
	}
	if v, ok := firstValue(raw, "SalesCount", "Volume", "TotalSales"); ok {
		product.SalesQuantity = ParseCount(v)
	}
	if v, ok := firstValue(raw, "VendorScore", "Rating", "Vendor.Score"); ok {
		product.Rating = ParseFloat(v)
	}

	product.URL = firstString(raw, "ExternalItemUrl", "TaobaoItemUrl", "ItemUrl")

	return product, nil
}

// internationalPrice prefers the item's own price block and falls back to the first quantity range
func internationalPrice(raw marketplace.RawItem) (price, original decimal.Decimal, currency string) {
	currency = firstString(raw, "Price.CurrencyCode", "CurrencyCode", "Price.OriginalCurrencyCode")

	var found bool
	if v, ok := firstValue(raw, "Price.ConvertedPriceWithoutSign", "Price.ConvertedPrice", "Price.OriginalPrice", "Price"); ok {
		if _, isMap := asMap(v); !isMap {
			price, found = ParsePrice(v)
		}
	}
	if !found {
		price, found = firstRangePrice(raw)
		if currency == "" {
			currency = firstRangeCurrency(raw)
		}
	}
	if !found {
		price = decimal.Zero
	}

	original = price
	if v, ok := firstValue(raw, "Price.OriginalPrice"); ok {
		if p, ok := ParsePrice(v); ok {
			original = p
		}
	}
	if currency == "" {
		currency = InternationalDefaultCurrency
	}
	return price, original, currency
}

func firstRange(raw marketplace.RawItem) (map[string]any, bool) {
	ranges, ok := asSlice(raw["QuantityRanges"])
	if !ok || len(ranges) == 0 {
		return nil, false
	}
	return asMap(ranges[0])
}

func firstRangePrice(raw marketplace.RawItem) (decimal.Decimal, bool) {
	r, ok := firstRange(raw)
	if !ok {
		return decimal.Zero, false
	}
	v, ok := firstValue(r, "Price.ConvertedPriceWithoutSign", "Price.OriginalPrice", "Price.Value", "Price")
	if !ok {
		return decimal.Zero, false
	}
	if _, isMap := asMap(v); isMap {
		return decimal.Zero, false
	}
	return ParsePrice(v)
}

func firstRangeCurrency(raw marketplace.RawItem) string {
	r, ok := firstRange(raw)
	if !ok {
		return ""
	}
	return firstString(r, "Price.CurrencyCode", "CurrencyCode")
}

func firstRangeQuantity(raw marketplace.RawItem) int {
	r, ok := firstRange(raw)
	if !ok {
		return 0
	}
	v, ok := firstValue(r, "MinQuantity")
	if !ok {
		return 0
	}
	return int(ParseCount(v))
}
