package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"satstack.com/pkg/common"
	"satstack.com/pkg/xerr"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderAdminToken = "X-Admin-Token"

	ctxKeyUserID = "user_id"
)

// RequireUser trusts X-User-Id as set by the authenticating proxy in front
// of the service.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || id <= 0 {
			common.Fail(c, http.StatusUnauthorized, xerr.Unauthenticated, xerr.MapErrMsg(xerr.Unauthenticated))
			c.Abort()
			return
		}
		c.Set(ctxKeyUserID, id)
		c.Next()
	}
}

// RequireAdmin checks X-Admin-Token. An empty token disables admin routes.
func RequireAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAdminToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			common.Fail(c, http.StatusForbidden, xerr.Unauthenticated, "admin token required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(ctxKeyUserID)
}
