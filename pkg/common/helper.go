package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"satstack.com/pkg/logger"
)

// Response is the envelope of every HTTP reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	FailWithData(c, httpStatus, code, message, nil)
}

// FailWithData is Fail for errors whose details the client needs, e.g. an unlock time.
func FailWithData(c *gin.Context, httpStatus int, code int, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// FailLogged records the failing request before replying.
func FailLogged(c *gin.Context, httpStatus int, code int, msg string, err error) {
	logger.Warn(c, "http error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", code),
		zap.String("message", msg),
		zap.Error(err),
	)
	Fail(c, httpStatus, code, msg)
}
