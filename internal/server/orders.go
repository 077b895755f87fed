package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pawprintlabs/pawprint/internal/observability/logger"
	"go.uber.org/zap"
)

// OrderStatus serves the thank-you page's polling loop. Tokens are
// unguessable, so possession of one is the access check.
func (s *Server) OrderStatus(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))

	resp, err := s.orderSvc.GetStatus(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// StatusPollRateLimit throttles status polling per client IP. Limiter
// trouble fails open: polling is read-only and a redis outage should not
// take the status page down with it.
func (s *Server) StatusPollRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.statusLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		allowed, err := s.statusLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("status poll rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		c.Next()
	}
}

func (s *Server) ListFailedOrders(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid value"))
			return
		}
		limit = parsed
	}

	resp, err := s.orderSvc.ListFailed(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RequeueOrder(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))

	resp, err := s.orderSvc.RequeueFailed(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
