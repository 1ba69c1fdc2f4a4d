package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"satstack.com/pkg/common"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/xerr"
)

func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c, "http panic",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err),
					zap.ByteString("stack", debug.Stack()),
				)
				common.Fail(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError))
				c.Abort()
			}
		}()
		c.Next()
	}
}
