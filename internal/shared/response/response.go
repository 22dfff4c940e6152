package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MessageBody acknowledges a mutation.
type MessageBody struct {
	Message string `json:"message"`
}

// Success writes data as the response body.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

func Message(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, MessageBody{Message: message})
}

func Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorBody{Error: message, Code: code})
}

// Abort writes the error and stops the middleware chain.
func Abort(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorBody{Error: message, Code: code})
}

// Common error responses
func BadRequest(c *gin.Context, message string) {
	Error(c, 400, "BAD_REQUEST", message)
}

func Unauthorized(c *gin.Context, message string) {
	Abort(c, 401, "UNAUTHORIZED", message)
}
