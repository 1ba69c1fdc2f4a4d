package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"satstack.com/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = logger.RequestIdKey
)

func New() string { return uuid.NewString() }

// RequestIDFromGin returns the id set by the request id middleware.
func RequestIDFromGin(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
