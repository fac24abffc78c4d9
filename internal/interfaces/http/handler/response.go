package handler

import "github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/dto"

// Swagger shapes for the dto.Response envelope. Handlers write dto.Response
// directly; these only give the generated docs a typed data field.

// APIResponse is the success envelope
type APIResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    T         `json:"data,omitempty"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}

// RetriedData reports how many dead jobs went back to pending
type RetriedData struct {
	Retried int64 `json:"retried" example:"3"`
}
