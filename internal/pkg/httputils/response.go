// Package httputils provides HTTP utility functions.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard envelope for all HTTP responses.
// Code is 0 on success and mirrors the HTTP status on error.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess writes a success response with the given data.
func WriteSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// WriteMessage writes a success response with a human-readable message.
func WriteMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// WriteError writes an error response with the given HTTP status.
func WriteError(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Code: status, Message: err.Error()})
}

// WriteErrorMessage writes an error response with a fixed message.
func WriteErrorMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}
