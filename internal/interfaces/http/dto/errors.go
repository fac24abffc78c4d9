package dto

import "net/http"

// API error codes. Clients match on these, so they never change once shipped.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeTimeout             = "ERR_TIMEOUT"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeEmptyQuery          = "ERR_EMPTY_QUERY"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeProductNotFound     = "ERR_PRODUCT_NOT_FOUND"
	ErrCodeJobNotFound         = "ERR_JOB_NOT_FOUND"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicateJob        = "ERR_DUPLICATE_JOB"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInvalidStatus       = "ERR_INVALID_STATUS"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
)

var statusByCode = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeTimeout:             http.StatusGatewayTimeout,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeEmptyQuery:          http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeProductNotFound:     http.StatusNotFound,
	ErrCodeJobNotFound:         http.StatusNotFound,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateJob:        http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeInvalidStatus:       http.StatusUnprocessableEntity,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
}

// StatusOf returns the HTTP status for an API error code, 500 when unknown
func StatusOf(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domain codes are SCREAMING_SNAKE without the ERR_ prefix
var apiCodeByDomainCode = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"PRODUCT_NOT_FOUND":    ErrCodeProductNotFound,
	"JOB_NOT_FOUND":        ErrCodeJobNotFound,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"INVALID_STATUS":       ErrCodeInvalidStatus,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// APICode translates a domain error code. ok is false for codes the API
// does not publish, which callers report as a generic error.
func APICode(domainCode string) (code string, ok bool) {
	code, ok = apiCodeByDomainCode[domainCode]
	return code, ok
}
