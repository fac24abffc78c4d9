package ecommerce

import (
	"encoding/json"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// Domestic gateway error codes
const (
	domesticCodeOK           = "0000"
	domesticCodeItemNotFound = "4016"
	domesticCodeItemDelisted = "4017"
)

// DomesticResponse is the envelope every domestic gateway call returns
type DomesticResponse struct {
	ErrorCode flexString      `json:"error_code"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

// IsSuccess returns true if the gateway reported success
func (r *DomesticResponse) IsSuccess() bool {
	code := r.ErrorCode.String()
	return code == "" || code == domesticCodeOK || code == "0"
}

// IsItemGone returns true if the gateway says the item no longer exists
func (r *DomesticResponse) IsItemGone() bool {
	code := r.ErrorCode.String()
	return code == domesticCodeItemNotFound || code == domesticCodeItemDelisted
}

// Message returns the best available error message
func (r *DomesticResponse) Message() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Error
}

// DomesticCategory is one category node
type DomesticCategory struct {
	CID      flexString `json:"cid"`
	Name     string     `json:"name"`
	ParentID flexString `json:"parent_cid"`
}

func (c DomesticCategory) toDomain() marketplace.Category {
	parent := c.ParentID.String()
	if parent == "0" {
		parent = ""
	}
	return marketplace.Category{ID: c.CID.String(), Name: strings.TrimSpace(c.Name), ParentID: parent}
}

// DomesticItemList is the data block of listing and search calls
type DomesticItemList struct {
	Items        json.RawMessage `json:"item"`
	TotalResults flexString      `json:"total_results"`
	Page         flexString      `json:"page"`
	PageSize     flexString      `json:"page_size"`
}
