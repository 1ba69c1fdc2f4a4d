package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"satstack.com/internal/ledger/catalog"
	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/price"
	"satstack.com/internal/ledger/service"
	"satstack.com/pkg/common"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/xerr"
)

// PricePublisher stores an admin supplied price.
type PricePublisher interface {
	Publish(ctx context.Context, symbol string, p decimal.Decimal) error
}

type Handler struct {
	Grants     *service.GrantService
	Settlement *service.SettlementService
	Holdings   *service.HoldingsService
	Lots       *service.LotService
	Portfolio  *service.PortfolioService
	History    *service.HistoryService
	Audit      *service.AuditService
	Catalog    *catalog.Registry
	Prices     PricePublisher
}

func (h *Handler) EnsureGrant(c *gin.Context) {
	g, created, err := h.Grants.EnsureGrant(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, gin.H{"grant": g, "created": created})
}

type settleReq struct {
	From   string      `json:"from" binding:"required"`
	To     string      `json:"to" binding:"required"`
	Amount amountField `json:"amount" binding:"required"`
	Unit   string      `json:"unit" binding:"required"`
}

// amountField takes a JSON number or string verbatim; the unit decides how
// it is parsed.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string")
	}
	*a = amountField(n)
	return nil
}

const maxRequestIDLen = 64

func (h *Handler) Settle(c *gin.Context) {
	var req settleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	unit, err := domain.ParseUnit(req.Unit)
	if err != nil {
		fail(c, err)
		return
	}
	// only a client supplied id makes the call idempotent
	rid := c.GetHeader(common.HeaderRequestID)
	if len(rid) > maxRequestIDLen {
		badRequest(c, fmt.Errorf("%s longer than %d", common.HeaderRequestID, maxRequestIDLen))
		return
	}

	res, err := h.Settlement.Settle(c.Request.Context(), service.SettleRequest{
		UserID:    userID(c),
		From:      req.From,
		To:        req.To,
		Amount:    string(req.Amount),
		Unit:      unit,
		RequestID: rid,
	})
	if err != nil {
		fail(c, err)
		return
	}
	t := res.Trade
	common.Success(c, gin.H{
		"trade":    t,
		"lot":      res.Lot,
		"replayed": res.Replayed,
		"summary": fmt.Sprintf("swapped %s %s for %s %s",
			domain.FormatAmount(t.FromAmount), t.FromAsset, domain.FormatAmount(t.ToAmount), t.ToAsset),
	})
}

func (h *Handler) Trades(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.History.Trades(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

func (h *Handler) HoldingsList(c *gin.Context) {
	out, err := h.Holdings.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

func (h *Handler) Availability(c *gin.Context) {
	a, ok := h.Catalog.Lookup(c.Param("asset"))
	if !ok {
		common.Fail(c, http.StatusNotFound, xerr.RecordNotFound, "unknown asset")
		return
	}
	out, err := h.Lots.Availability(c.Request.Context(), userID(c), a.Symbol)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

func (h *Handler) LotList(c *gin.Context) {
	a, ok := h.Catalog.Lookup(c.Param("asset"))
	if !ok {
		common.Fail(c, http.StatusNotFound, xerr.RecordNotFound, "unknown asset")
		return
	}
	out, err := h.Lots.Lots(c.Request.Context(), userID(c), a.Symbol)
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

func (h *Handler) PortfolioValue(c *gin.Context) {
	out, err := h.Portfolio.Value(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

func (h *Handler) Reconcile(c *gin.Context) {
	out, err := h.Audit.Reconcile(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.Success(c, out)
}

type publishReq struct {
	Price string `json:"price" binding:"required"`
}

func (h *Handler) PublishPrice(c *gin.Context) {
	a, ok := h.Catalog.Lookup(c.Param("symbol"))
	if !ok {
		common.Fail(c, http.StatusNotFound, xerr.RecordNotFound, "unknown asset")
		return
	}
	var req publishReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := price.ParsePrice(req.Price)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Prices.Publish(c.Request.Context(), a.Symbol, p); err != nil {
		common.FailLogged(c, http.StatusServiceUnavailable, xerr.CacheError, xerr.MapErrMsg(xerr.CacheError), err)
		return
	}
	logger.Info(c.Request.Context(), "price published", zap.String("symbol", a.Symbol), zap.Stringer("price_usd", p))
	common.Success(c, gin.H{"symbol": a.Symbol, "price_usd": p})
}

func (h *Handler) Assets(c *gin.Context) {
	common.Success(c, h.Catalog.List())
}
