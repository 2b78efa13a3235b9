package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
	"vending-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter limits requests per actor. Owners are limited individually so
// one chat user cannot exhaust a shared client token.
func RateLimiter(limiter ports.RateLimiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := extractActor(c)
		decision := limiter.Check(c.Request.Context(), actor)

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int64(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Debug().Str("actor_id", actor).Int64("retry_after", retryAfter).Msg("request rate limited")
			response.Error(c, apperror.ErrRateLimitExceeded().
				WithDetail("retry_after_seconds", retryAfter).
				WithDetail("banned", decision.Banned))
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractActor determines the rate limit key source: the owner in the path
// or JSON body, then the client token, then the caller IP.
func extractActor(c *gin.Context) string {
	if id := c.Param("owner_id"); id != "" {
		return "owner:" + id
	}
	if id := ownerFromBody(c); id != "" {
		return "owner:" + id
	}
	if id := c.GetString(CtxClientID); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP()
}

// ownerFromBody peeks at owner_id in a JSON body and restores the body.
func ownerFromBody(c *gin.Context) string {
	if c.Request.Body == nil || c.ContentType() != gin.MIMEJSON {
		return ""
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if err != nil {
		return ""
	}

	var peek struct {
		OwnerID json.RawMessage `json:"owner_id"`
	}
	if json.Unmarshal(bodyBytes, &peek) != nil || len(peek.OwnerID) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(peek.OwnerID, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(peek.OwnerID, &n) == nil {
		return n.String()
	}
	return ""
}
