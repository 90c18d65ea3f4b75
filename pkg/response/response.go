package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "invoria/pkg/errors"
)

// ErrorBody is the error payload returned to API consumers. The browser client
// reads the "detail" field, so the name is part of the wire contract.
type ErrorBody struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

// JSON writes a success payload as-is. Endpoint payload shapes are part of the
// public API contract and are not wrapped in an envelope.
func JSON(c *gin.Context, statusCode int, payload interface{}) {
	c.JSON(statusCode, payload)
}

// Error renders an error derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorBody{
		Code:   appErr.Code,
		Detail: appErr.Message,
	})
}
