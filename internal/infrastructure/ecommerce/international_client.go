package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// International API method names
const (
	internationalMethodCategories = "GetCategorySubcategoryInfoList"
	internationalMethodListing    = "SearchItemsFrame"
	internationalMethodItem       = "GetItemFullInfo"
)

// InternationalClient implements marketplace.Client for the international B2B API
type InternationalClient struct {
	config    *InternationalConfig
	transport *transport
}

// NewInternationalClient creates a new international client with the given configuration
func NewInternationalClient(config *InternationalConfig) (*InternationalClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &InternationalClient{
		config:    config,
		transport: newTransport("international", config.Endpoint),
	}, nil
}

// Provider returns the international provider tag
func (c *InternationalClient) Provider() marketplace.Provider {
	return marketplace.ProviderInternational
}

// ListCategories returns the root category list
func (c *InternationalClient) ListCategories(ctx context.Context) ([]marketplace.Category, error) {
	var resp InternationalCategoriesResponse
	if err := c.call(ctx, internationalMethodCategories, url.Values{"parentCategoryId": {""}}, nil, &resp); err != nil {
		return nil, err
	}

	var nodes []InternationalCategory
	if err := json.Unmarshal(resp.CategoryInfoList.Content, &nodes); err != nil || nodes == nil {
		return nil, fmt.Errorf("%w: international categories: missing list", marketplace.ErrInvalidResponse)
	}

	categories := make([]marketplace.Category, 0, len(nodes))
	for _, node := range nodes {
		if node.ID == "" || node.IsHidden {
			continue
		}
		categories = append(categories, node.toDomain())
	}
	return categories, nil
}

// ListProductsByCategory returns one frame of a category listing
func (c *InternationalClient) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (*marketplace.ProductPage, error) {
	params := url.Values{
		"xmlParameters": {fmt.Sprintf("<SearchItemsParameters><CategoryId>%s</CategoryId></SearchItemsParameters>", xmlEscape(categoryID))},
		"framePosition": {strconv.Itoa(offset)},
		"frameSize":     {strconv.Itoa(limit)},
	}
	var resp InternationalItemsResponse
	if err := c.call(ctx, internationalMethodListing, params, nil, &resp); err != nil {
		return nil, err
	}
	return &marketplace.ProductPage{
		Results: decodeRawItems(resp.Result.Items.Content),
		Paging:  marketplace.Paging{Total: resp.Result.Items.TotalCount.Int(), Offset: offset, Limit: limit},
	}, nil
}

// GetProduct fetches product detail
func (c *InternationalClient) GetProduct(ctx context.Context, productID string) (marketplace.RawItem, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: empty product id", marketplace.ErrRequestFailed)
	}
	var resp InternationalItemResponse
	if err := c.call(ctx, internationalMethodItem, url.Values{"itemId": {productID}}, marketplace.ErrProductNotFound, &resp); err != nil {
		return nil, err
	}
	item, ok := decodeRawItem(resp.OtapiItemFullInfo)
	if !ok {
		return nil, fmt.Errorf("%w: international item %s", marketplace.ErrProductNotFound, productID)
	}
	return item, nil
}

// Search runs a keyword search
func (c *InternationalClient) Search(ctx context.Context, query marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	if strings.TrimSpace(query.Keyword) == "" {
		return nil, marketplace.ErrEmptySearchQuery
	}
	pageSize := max(query.PageSize, 1)
	params := url.Values{
		"xmlParameters": {fmt.Sprintf("<SearchItemsParameters><ItemTitle>%s</ItemTitle></SearchItemsParameters>", xmlEscape(query.Keyword))},
		"framePosition": {strconv.Itoa((max(query.Page, 1) - 1) * pageSize)},
		"frameSize":     {strconv.Itoa(pageSize)},
	}
	var resp InternationalItemsResponse
	if err := c.call(ctx, internationalMethodListing, params, nil, &resp); err != nil {
		return nil, err
	}
	return &marketplace.SearchPage{
		Items: decodeRawItems(resp.Result.Items.Content),
		Total: resp.Result.Items.TotalCount.Int(),
	}, nil
}

// envelope is implemented by every international response type
type envelope interface {
	status() *InternationalResponse
}

func (r *InternationalResponse) status() *InternationalResponse { return r }

// call performs a GET against one API method and decodes into out
func (c *InternationalClient) call(ctx context.Context, method string, params url.Values, notFound error, out envelope) error {
	params.Set("instanceKey", c.config.InstanceKey)
	params.Set("language", c.config.Language)
	endpoint := c.config.resolve(method + "?" + params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("international: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.transport.do(ctx, req, notFound)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: international %s: %v", marketplace.ErrInvalidResponse, method, err)
	}

	status := out.status()
	if status.IsItemGone() && notFound != nil {
		return fmt.Errorf("%w: %s", notFound, status.ErrorDescription)
	}
	if !status.IsSuccess() {
		return fmt.Errorf("%w: %s - %s", marketplace.ErrRequestFailed, status.ErrorCode, status.ErrorDescription)
	}
	return nil
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}

var _ marketplace.Client = (*InternationalClient)(nil)
