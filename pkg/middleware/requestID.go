package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"satstack.com/pkg/common"
)

// ReqId reuses the client's X-Request-Id or mints one, and echoes it back.
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if rid == "" {
			rid = common.New()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		// services receive c.Request.Context(), not the gin context
		ctx := context.WithValue(c.Request.Context(), common.CtxKeyRequestID, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
