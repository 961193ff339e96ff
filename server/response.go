package server

import (
	"net/http"
	"time"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/types"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is an alias for types.ErrorResponse
type ErrorResponse = types.ErrorResponse

// SuccessResponse is a type alias for types.SuccessResponse[T]
type SuccessResponse[T any] = types.SuccessResponse[T]

// Success sends a success response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, types.SuccessResponse[interface{}]{
		StatusCode: statusCode,
		IsSuccess:  true,
		Data:       data,
	})
}

// OK sends a 200 OK response
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// HandleAppError maps err to its HTTP status and public kind. Only the
// AppError's own message is returned; wrapped causes are logged, never sent.
func HandleAppError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatusFromCode(code)

	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, types.ErrorResponse{
		StatusCode: status,
		IsSuccess:  false,
		Error: types.ErrorDetail{
			Timestamp:    time.Now().Format(time.RFC3339),
			Path:         c.Request.URL.Path,
			Kind:         apperrors.PublicKind(code),
			ErrorMessage: message,
			ErrorCode:    code,
		},
	})
}

// BadRequest sends a 400 for a malformed request
func BadRequest(c *gin.Context, message string) {
	HandleAppError(c, apperrors.New(apperrors.ErrInvalidRequest, message))
}
