package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/dto"
	"github.com/china-facil/chinafacil-backend-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler writes the response envelope. Embedded by every API handler.
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.OK(data))
}

// SuccessWithMeta writes one page of a listing
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.Page(data, total, page, pageSize))
}

// Accepted acknowledges work handed to the job queue
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.OK(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *BaseHandler) fail(c *gin.Context, code, message string, details ...dto.ValidationDetail) {
	c.JSON(dto.StatusOf(code), dto.Fail(code, message, getRequestID(c), details...))
}

// ValidationError answers a failed bind with the offending fields, or a
// plain 400 when the body could not be decoded at all
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	if details := middleware.ValidationDetails(err); len(details) > 0 {
		h.fail(c, dto.ErrCodeValidation, "Request validation failed", details...)
		return
	}
	h.fail(c, dto.ErrCodeBadRequest, "Invalid request parameters")
}

// HandleError maps a service error to its status and API code. Causes of
// 5xx responses are logged, never returned.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log := logger.L(c.Request.Context())

	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		code, known := dto.APICode(domainErr.Code)
		if !known {
			code = dto.ErrCodeInternal
			if errors.Is(err, shared.ErrInvalidInput) {
				code = dto.ErrCodeInvalidInput
			}
		}
		if dto.StatusOf(code) >= http.StatusInternalServerError {
			log.Error("Request failed", zap.String("code", domainErr.Code), zap.Error(err))
		}
		h.fail(c, code, domainErr.Message)
	case errors.Is(err, marketplace.ErrEmptySearchQuery):
		h.fail(c, dto.ErrCodeEmptyQuery, "Search query cannot be empty")
	case errors.Is(err, queue.ErrDuplicateJob):
		h.fail(c, dto.ErrCodeDuplicateJob, "An identical job is already queued")
	case errors.Is(err, context.DeadlineExceeded):
		h.fail(c, dto.ErrCodeTimeout, "Request timed out")
	default:
		log.Error("Unhandled request error", zap.Error(err))
		h.fail(c, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}
