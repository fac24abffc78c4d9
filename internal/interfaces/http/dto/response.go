// Package dto holds the JSON envelope every API response is wrapped in.
package dto

// Response is the envelope: data on success, error otherwise
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one field that failed binding
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Meta describes the page a listing returned
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// DefaultPageSize applies when a caller reports no page size
const DefaultPageSize = 20

func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Page wraps one page of a listing
func Page(data any, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Total: total, Page: page, PageSize: pageSize, TotalPages: TotalPages(total, pageSize)},
	}
}

// TotalPages rounds up; a non-positive page size yields zero pages
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// Fail builds an error envelope. requestID may be empty.
func Fail(code, message, requestID string, details ...ValidationDetail) Response {
	return Response{
		Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID, Details: details},
	}
}

// IDRequest binds a job id path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ExternalIDRequest binds the marketplace id of one catalog row
type ExternalIDRequest struct {
	ExternalID string `uri:"externalId" binding:"required,max=64"`
}
