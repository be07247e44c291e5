package httpserver

import (
	"errors"
	"net/http"

	"storefront-cart/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type dataResponse struct {
	Data       any `json:"data"`
	StatusCode int `json:"statusCode"`
}

type messageResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type errorResponse struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{domain.ErrItemNotInCart, http.StatusNotFound, "ITEM_NOT_IN_CART"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{domain.ErrInvalidDiscount, http.StatusBadRequest, "INVALID_DISCOUNT"},
	{domain.ErrAlreadyApplied, http.StatusConflict, "ALREADY_APPLIED"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrDuplicateRequest, http.StatusConflict, "DUPLICATE_REQUEST"},
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, dataResponse{Data: data, StatusCode: status})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, messageResponse{Message: message, StatusCode: status})
}

// respondError renders err in the error envelope and aborts the chain. Anything
// that is not a known domain error is logged and reported as a bare 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorBody(err error) (int, errorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.target.Error()
			if m.target == domain.ErrInvalidInput {
				msg = err.Error()
			}
			return m.status, errorResponse{Message: msg, Code: m.code, StatusCode: m.status}
		}
	}
	return http.StatusInternalServerError, errorResponse{
		Message:    domain.ErrInternal.Error(),
		Code:       "INTERNAL_ERROR",
		StatusCode: http.StatusInternalServerError,
	}
}
