package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextOwnerIDKey = "owner_id"

// AuthRequired resolves the calling freelancer from the Authorization
// bearer token and stores the owner id on the context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ownerID, err := s.authn.Verify(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextOwnerIDKey, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextOwnerIDKey)
	if !ok {
		return 0
	}
	id, ok := value.(snowflake.ID)
	if !ok {
		return 0
	}
	return id
}

// RateLimit throttles a route per client IP. The limiter backend is
// Redis when configured, in-process otherwise.
func (s *Server) RateLimit(name string, rate float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rl:" + name + ":" + c.ClientIP()
		result, err := s.limiter.Allow(c.Request.Context(), key, rate, burst)
		if err != nil {
			// Fail open: a limiter outage must not take down the
			// public surface.
			s.log.Warn("rate limiter unavailable", zap.String("route", name), zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
