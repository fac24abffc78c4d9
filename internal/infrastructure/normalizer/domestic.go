package normalizer

import (
	"fmt"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// DomesticCurrency is the currency every domestic wholesale price is quoted in
const DomesticCurrency = "CNY"

const domesticDetailURL = "https://detail.1688.com/offer/%s.html"

// NormalizeDomestic maps a domestic wholesale API item to the canonical product
func NormalizeDomestic(raw marketplace.RawItem) (marketplace.Product, error) {
	id := firstString(raw, "item_id", "num_iid", "offer_id", "id")
	if id == "" {
		return marketplace.Product{}, fmt.Errorf("%w: domestic item has no id", ErrInvalidItem)
	}

	product := marketplace.Product{
		ID:       id,
		Title:    firstString(raw, "title", "subject", "name"),
		Currency: DomesticCurrency,
		Provider: marketplace.ProviderDomestic,
	}

	if v, ok := firstValue(raw, "price", "promotion_price", "sale_price", "price_info.price"); ok {
		product.Price, _ = ParsePrice(v)
	}
	product.OriginalPrice = product.Price
	if v, ok := firstValue(raw, "original_price", "orginal_price", "price_info.original_price"); ok {
		if p, ok := ParsePrice(v); ok {
			product.OriginalPrice = p
		}
	}

	product.ImageURL = FixImageURL(firstString(raw, "pic_url", "main_image", "image", "img"))
	if v, ok := firstValue(raw, "item_imgs", "images", "pic_urls"); ok {
		product.Images = imageList(v, "url", "img", "src")
	}
	if product.ImageURL == "" && len(product.Images) > 0 {
		product.ImageURL = product.Images[0]
	}
	if product.ImageURL != "" && len(product.Images) == 0 {
		product.Images = []string{product.ImageURL}
	}

	product.Supplier = marketplace.Supplier{
		ID:   firstString(raw, "seller_id", "shop_id", "seller_info.shop_id", "seller_info.user_id", "member_id"),
		Name: firstString(raw, "seller_nick", "shop_name", "nick", "seller_info.shop_name", "seller_info.nick", "company_name"),
		Location: firstNonEmpty(
			firstString(raw, "location", "seller_info.location", "shop_location"),
			joinNonEmpty(" ", firstString(raw, "province", "seller_info.province"), firstString(raw, "city", "seller_info.city")),
		),
	}

	if v, ok := firstValue(raw, "props", "attributes", "specs"); ok {
		product.Specifications = specList(v, []string{"name", "prop_name", "attribute_name"}, []string{"value", "prop_value", "attribute_value"})
	}

	if v, ok := firstValue(raw, "min_num", "moq", "begin_amount", "min_order_quantity"); ok {
		product.MinimumOrder = int(ParseCount(v))
	}
	if product.MinimumOrder < 1 {
		product.MinimumOrder = 1
	}
	if v, ok := firstValue(raw, "sales", "sale_num", "total_sold", "volume", "sold_quantity"); ok {
		product.SalesQuantity = ParseCount(v)
	}
	if v, ok := firstValue(raw, "rating", "score", "shop_score", "seller_info.score"); ok {
		product.Rating = ParseFloat(v)
	}

	product.URL = firstString(raw, "detail_url", "item_url", "url", "permalink")
	if product.URL == "" {
		product.URL = fmt.Sprintf(domesticDetailURL, id)
	}
	product.URL = FixImageURL(product.URL)

	return product, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
