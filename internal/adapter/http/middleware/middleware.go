package middleware

import (
	"net/http"
	"strings"
	"time"

	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID = "request_id"
	CtxClientID  = "client_id"
	CtxAdmin     = "admin"
)

// Responder writes an error in the envelope a route group expects.
type Responder func(c *gin.Context, err error)

// APIKeyAuth verifies the shared secret sent as "Authorization: Bearer <key>"
// or "Authorization: Apikey <key>".
func APIKeyAuth(verifier ports.SecretVerifier, respond Responder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := presentedKey(c.GetHeader("Authorization"))
		if key == "" || !verifier.VerifyAPIKey(key) {
			log.Warn().
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("rejected request with invalid api key")
			respond(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}
		c.Set(CtxAdmin, true)
		c.Next()
	}
}

func presentedKey(header string) string {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "bearer", "apikey":
		return strings.TrimSpace(key)
	}
	return ""
}

// JWTAuth creates a middleware that validates client tokens for the wallet API.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("client token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxClientID, claims.ClientID)
		c.Next()
	}
}

// Maintenance rejects requests while the gate is enabled, before any
// handler touches storage.
func Maintenance(gate ports.MaintenanceGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enabled, message := gate.Status(); enabled {
			response.AckError(c, apperror.ErrMaintenance(message))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID propagates or assigns a request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
