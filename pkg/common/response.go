package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the standard response envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError is the error payload of a response envelope
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse writes a success envelope
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// CreatedResponse writes a success envelope with 201
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// ErrorResponse writes an error envelope with a generic code
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: http.StatusText(status), Message: message},
	})
}

// AppErrorResponse writes an AppError with its own status and code
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.Status, APIResponse{
		Success: false,
		Error:   &APIError{Code: err.Code, Message: err.Message},
	})
}
