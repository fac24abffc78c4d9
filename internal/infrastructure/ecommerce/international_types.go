package ecommerce

import (
	"encoding/json"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// International API error codes
const (
	internationalCodeOK       = "Ok"
	internationalCodeNotFound = "NotFound"
	internationalCodeNotAvail = "NotAvailable"
)

// InternationalResponse is the common envelope of international API calls
type InternationalResponse struct {
	ErrorCode        string `json:"ErrorCode"`
	ErrorDescription string `json:"ErrorDescription"`
}

// IsSuccess returns true if the API reported success
func (r *InternationalResponse) IsSuccess() bool {
	return r.ErrorCode == "" || strings.EqualFold(r.ErrorCode, internationalCodeOK)
}

// IsItemGone returns true if the API says the item no longer exists
func (r *InternationalResponse) IsItemGone() bool {
	return strings.EqualFold(r.ErrorCode, internationalCodeNotFound) ||
		strings.EqualFold(r.ErrorCode, internationalCodeNotAvail)
}

// InternationalCategory is one category node
type InternationalCategory struct {
	ID       flexString `json:"Id"`
	Name     string     `json:"Name"`
	ParentID flexString `json:"ParentId"`
	IsHidden bool       `json:"IsHidden"`
}

func (c InternationalCategory) toDomain() marketplace.Category {
	return marketplace.Category{ID: c.ID.String(), Name: strings.TrimSpace(c.Name), ParentID: c.ParentID.String()}
}

// InternationalCategoriesResponse is returned by the category listing
type InternationalCategoriesResponse struct {
	InternationalResponse
	CategoryInfoList struct {
		Content json.RawMessage `json:"Content"`
	} `json:"CategoryInfoList"`
}

// InternationalItemsResponse is returned by listing and search calls
type InternationalItemsResponse struct {
	InternationalResponse
	Result struct {
		Items struct {
			Content    json.RawMessage `json:"Content"`
			TotalCount flexString      `json:"TotalCount"`
		} `json:"Items"`
	} `json:"Result"`
}

// InternationalItemResponse is returned by the item detail call
type InternationalItemResponse struct {
	InternationalResponse
	OtapiItemFullInfo json.RawMessage `json:"OtapiItemFullInfo"`
}
