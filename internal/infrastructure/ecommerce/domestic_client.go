package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// Domestic gateway API names
const (
	domesticAPICategories = "item_cat_get"
	domesticAPIListing    = "item_search_cat"
	domesticAPIItem       = "item_get"
	domesticAPISearch     = "item_search"
)

// DomesticClient implements marketplace.Client for the domestic wholesale API
type DomesticClient struct {
	config    *DomesticConfig
	transport *transport
	now       func() time.Time
}

// NewDomesticClient creates a new domestic client with the given configuration
func NewDomesticClient(config *DomesticConfig) (*DomesticClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DomesticClient{
		config:    config,
		transport: newTransport("domestic", config.Endpoint),
		now:       time.Now,
	}, nil
}

// Provider returns the domestic provider tag
func (c *DomesticClient) Provider() marketplace.Provider {
	return marketplace.ProviderDomestic
}

// ListCategories returns the full category list.
// A data block that is not a list is an invalid response.
func (c *DomesticClient) ListCategories(ctx context.Context) ([]marketplace.Category, error) {
	resp, err := c.call(ctx, domesticAPICategories, map[string]string{"cid": "0"}, nil)
	if err != nil {
		return nil, err
	}

	var nodes []DomesticCategory
	if err := json.Unmarshal(resp.Data, &nodes); err != nil {
		return nil, fmt.Errorf("%w: domestic categories: %v", marketplace.ErrInvalidResponse, err)
	}
	if nodes == nil {
		return nil, fmt.Errorf("%w: domestic categories: missing list", marketplace.ErrInvalidResponse)
	}

	categories := make([]marketplace.Category, 0, len(nodes))
	for _, node := range nodes {
		if node.CID == "" {
			continue
		}
		categories = append(categories, node.toDomain())
	}
	return categories, nil
}

// ListProductsByCategory returns one page of a category listing.
// The gateway pages by number, so offset is converted using limit.
func (c *DomesticClient) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (*marketplace.ProductPage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("domestic: invalid page size %d", limit)
	}
	params := map[string]string{
		"cat":       categoryID,
		"page":      strconv.Itoa(offset/limit + 1),
		"page_size": strconv.Itoa(limit),
	}
	resp, err := c.call(ctx, domesticAPIListing, params, nil)
	if err != nil {
		return nil, err
	}

	page := &marketplace.ProductPage{Paging: marketplace.Paging{Offset: offset, Limit: limit}}
	var list DomesticItemList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		// wrong-shaped data is an empty page, not a failure
		return page, nil
	}
	page.Results = decodeRawItems(list.Items)
	page.Paging.Total = list.TotalResults.Int()
	return page, nil
}

// GetProduct fetches product detail
func (c *DomesticClient) GetProduct(ctx context.Context, productID string) (marketplace.RawItem, error) {
	if err := validateNumericID(productID); err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, domesticAPIItem, map[string]string{"num_iid": productID}, marketplace.ErrProductNotFound)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(resp.Data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: domestic item: %v", marketplace.ErrInvalidResponse, err)
	}
	item, ok := decodeRawItem(wrapper.Item)
	if !ok {
		return nil, fmt.Errorf("%w: domestic item %s", marketplace.ErrProductNotFound, productID)
	}
	return item, nil
}

// Search runs a keyword search
func (c *DomesticClient) Search(ctx context.Context, query marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	if strings.TrimSpace(query.Keyword) == "" {
		return nil, marketplace.ErrEmptySearchQuery
	}
	params := map[string]string{
		"q":         query.Keyword,
		"page":      strconv.Itoa(max(query.Page, 1)),
		"page_size": strconv.Itoa(max(query.PageSize, 1)),
	}
	resp, err := c.call(ctx, domesticAPISearch, params, nil)
	if err != nil {
		return nil, err
	}

	var list DomesticItemList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return &marketplace.SearchPage{}, nil
	}
	return &marketplace.SearchPage{Items: decodeRawItems(list.Items), Total: list.TotalResults.Int()}, nil
}

// call performs a signed GET and unwraps the gateway envelope
func (c *DomesticClient) call(ctx context.Context, api string, params map[string]string, notFound error) (*DomesticResponse, error) {
	params["key"] = c.config.AppKey
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	params["sign"] = c.config.Sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	endpoint := c.config.resolve(api + "/?" + values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("domestic: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.transport.do(ctx, req, notFound)
	if err != nil {
		return nil, err
	}

	var resp DomesticResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: domestic %s: %v", marketplace.ErrInvalidResponse, api, err)
	}
	if resp.IsItemGone() && notFound != nil {
		return nil, fmt.Errorf("%w: %s", notFound, resp.Message())
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s - %s", marketplace.ErrRequestFailed, resp.ErrorCode, resp.Message())
	}
	return &resp, nil
}

// validateNumericID checks a domestic item id is all digits
func validateNumericID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty product id", marketplace.ErrRequestFailed)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: invalid product id %q", marketplace.ErrRequestFailed, id)
		}
	}
	return nil
}

var _ marketplace.Client = (*DomesticClient)(nil)
