// pkg/response/response.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StandardResponse represents a standard API response
type StandardResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage sends a successful response with a message
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a successful creation response
func Created(c *gin.Context, message string, data interface{}) {
	if message == "" {
		message = "Resource created successfully"
	}
	c.JSON(http.StatusCreated, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Accepted acknowledges work that completes asynchronously
func Accepted(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// BadRequest sends a bad request error response
func BadRequest(c *gin.Context, error string) {
	ErrorResponse(c, http.StatusBadRequest, error)
}

// Unauthorized sends an unauthorized error response
func Unauthorized(c *gin.Context, error string) {
	if error == "" {
		error = "Unauthorized"
	}
	ErrorResponse(c, http.StatusUnauthorized, error)
}

// Forbidden sends a forbidden error response
func Forbidden(c *gin.Context, error string) {
	if error == "" {
		error = "Forbidden"
	}
	ErrorResponse(c, http.StatusForbidden, error)
}

// NotFound sends a not found error response
func NotFound(c *gin.Context, error string) {
	if error == "" {
		error = "Resource not found"
	}
	ErrorResponse(c, http.StatusNotFound, error)
}

// TooManyRequests sends a rate limit error response
func TooManyRequests(c *gin.Context, error string) {
	if error == "" {
		error = "Too many requests"
	}
	ErrorResponse(c, http.StatusTooManyRequests, error)
}

// InternalError sends an internal server error response
func InternalError(c *gin.Context, error string) {
	if error == "" {
		error = "Internal server error"
	}
	ErrorResponse(c, http.StatusInternalServerError, error)
}

// ServiceUnavailable sends a service unavailable error response
func ServiceUnavailable(c *gin.Context, error string) {
	if error == "" {
		error = "Service unavailable"
	}
	ErrorResponse(c, http.StatusServiceUnavailable, error)
}

// ErrorResponse sends a generic error response and aborts the chain
func ErrorResponse(c *gin.Context, statusCode int, error string) {
	c.AbortWithStatusJSON(statusCode, StandardResponse{
		Success: false,
		Error:   error,
	})
}
