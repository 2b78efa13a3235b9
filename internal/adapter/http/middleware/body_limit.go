package middleware

import (
	"fmt"
	"net/http"

	"vending-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies at maxBytes. Requests that declare a
// larger Content-Length are refused with 413 before any handler runs;
// chunked bodies are cut off by the reader and fail at bind time.
func MaxBodySize(maxBytes int64, respond Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respond(c, apperror.New(apperror.CodeValidation,
				fmt.Sprintf("request body exceeds %d bytes", maxBytes),
				http.StatusRequestEntityTooLarge))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
