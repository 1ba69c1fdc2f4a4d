package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"satstack.com/pkg/common"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
	"satstack.com/pkg/ratelimit"
	"satstack.com/pkg/xerr"
)

// KeyFunc picks the identity a request is limited by.
type KeyFunc func(c *gin.Context) string

// ClientIPKey limits per client address.
func ClientIPKey(c *gin.Context) string { return c.ClientIP() }

// HeaderKey limits per header value, falling back to the client address.
func HeaderKey(header string) KeyFunc {
	return func(c *gin.Context) string {
		if v := c.GetHeader(header); v != "" {
			return header + "=" + v
		}
		return c.ClientIP()
	}
}

func RateLimit(store *ratelimit.Store, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = ClientIPKey
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := keyFn(c) + ":" + route

		if !store.Allow(key) {
			// expected rejection, no stack
			logger.Warn(c, "http rate limited",
				zap.String("key", key),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues(route).Inc()
			common.Fail(c, http.StatusTooManyRequests, xerr.TooManyRequests, xerr.MapErrMsg(xerr.TooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
