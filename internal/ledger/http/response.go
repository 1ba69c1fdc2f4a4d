package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/repo/mysql"
	"satstack.com/pkg/common"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/xerr"
)

type errorMapping struct {
	status int
	code   int
}

var kindMapping = map[domain.Kind]errorMapping{
	domain.KindInvalidAssetPair:    {http.StatusBadRequest, xerr.InvalidAssetPair},
	domain.KindInvalidAmount:       {http.StatusBadRequest, xerr.InvalidAmount},
	domain.KindPriceUnavailable:    {http.StatusServiceUnavailable, xerr.PriceUnavailable},
	domain.KindInsufficientBalance: {http.StatusUnprocessableEntity, xerr.InsufficientBalance},
	domain.KindAssetLocked:         {http.StatusLocked, xerr.AssetLocked},
	domain.KindPersistenceFailure:  {http.StatusInternalServerError, xerr.LedgerStoreError},
	domain.KindRequestConflict:     {http.StatusConflict, xerr.RequestConflict},
}

// lockedData tells the client when to retry a locked sale.
type lockedData struct {
	Available int64     `json:"available"`
	UnlockAt  time.Time `json:"unlock_at"`
}

// fail writes err as a ledger error envelope. The message is the error's own
// text, so every kind reads differently.
func fail(c *gin.Context, err error) {
	if ce, ok := xerr.As(err); ok {
		failCode(c, ce, err)
		return
	}
	var le *domain.Error
	if !errors.As(err, &le) {
		common.FailLogged(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError), err)
		return
	}
	m, ok := kindMapping[le.Kind]
	if !ok {
		m = errorMapping{http.StatusInternalServerError, xerr.ServerCommonError}
	}

	switch le.Kind {
	case domain.KindAssetLocked:
		common.FailWithData(c, m.status, m.code, le.Msg, lockedData{Available: le.Available, UnlockAt: le.UnlockAt})
	case domain.KindPersistenceFailure:
		if mysql.IsRetryable(err) {
			c.Header("Retry-After", "1")
			common.FailLogged(c, http.StatusServiceUnavailable, xerr.DbError, xerr.MapErrMsg(xerr.DbError), err)
			return
		}
		// storage details stay in the log
		common.FailLogged(c, m.status, m.code, xerr.MapErrMsg(m.code), err)
	default:
		logger.Debug(c, "request rejected", zap.Int("biz_code", m.code), zap.Error(err))
		common.Fail(c, m.status, m.code, le.Msg)
	}
}

var codeStatus = map[int]int{
	xerr.RequestParamsError: http.StatusBadRequest,
	xerr.Unauthenticated:    http.StatusUnauthorized,
	xerr.RecordNotFound:     http.StatusNotFound,
	xerr.Conflict:           http.StatusConflict,
	xerr.TooManyRequests:    http.StatusTooManyRequests,
	xerr.Unavailable:        http.StatusServiceUnavailable,
}

// failCode writes a plain code error; unlisted codes are internal.
func failCode(c *gin.Context, ce *xerr.CodeError, err error) {
	status, ok := codeStatus[ce.Code]
	if !ok {
		common.FailLogged(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError), err)
		return
	}
	common.Fail(c, status, ce.Code, ce.Msg)
}

func badRequest(c *gin.Context, err error) {
	common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, err.Error())
}
