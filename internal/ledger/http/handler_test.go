package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"satstack.com/internal/ledger/catalog"
	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/ledgertest"
	"satstack.com/internal/ledger/price"
	"satstack.com/internal/ledger/repo/mysql"
	"satstack.com/internal/ledger/service"
	"satstack.com/pkg/ratelimit"
	"satstack.com/pkg/xerr"
)

const adminToken = "s3cret"

type env struct {
	router *gin.Engine
	clock  *ledgertest.Clock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := mysql.New(ledgertest.NewDB(t))
	clock := ledgertest.NewClock(time.Time{})
	prices, err := price.NewStatic(map[string]string{"BTC": "115000", "AMZN": "145.80"})
	require.NoError(t, err)
	reg := catalog.NewRegistry(catalog.StaticLoader(func() []domain.Asset {
		return []domain.Asset{{Symbol: "AMZN", Name: "Amazon"}, {Symbol: "TSLA", Name: "Tesla"}}
	}), 0)
	require.NoError(t, reg.Reload(context.Background()))

	opt := service.WithClock(clock)
	h := &Handler{
		Grants:     service.NewGrantService(repo, service.DefaultGrant, opt),
		Settlement: service.NewSettlementService(repo, reg, prices, opt),
		Holdings:   service.NewHoldingsService(repo, repo, time.Minute, opt),
		Lots:       service.NewLotService(repo, repo, opt),
		Portfolio:  service.NewPortfolioService(repo, repo, prices),
		History:    service.NewHistoryService(repo),
		Audit:      service.NewAuditService(repo),
		Catalog:    reg,
		Prices:     prices,
	}
	limiter := ratelimit.NewStore(rate.Inf, 1, time.Minute)
	return &env{router: NewRouter(h, limiter, RouterConfig{ServiceName: "ledger-test", AdminToken: adminToken}), clock: clock}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path string, user int64, body any, headers ...string) (int, envelope, http.Header) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user > 0 {
		req.Header.Set(HeaderUserID, fmt.Sprint(user))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out, w.Header()
}

func trade(from, to string, amount any, unit string) gin.H {
	return gin.H{"from": from, "to": to, "amount": amount, "unit": unit}
}

func TestRequireUser(t *testing.T) {
	e := newEnv(t)
	status, body, _ := e.do(t, http.MethodGet, "/api/holdings", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, xerr.Unauthenticated, body.Code)

	status, _, _ = e.do(t, http.MethodGet, "/api/holdings", 0, nil, HeaderUserID, "abc")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGrantAndTradeFlow(t *testing.T) {
	e := newEnv(t)

	status, body, hdr := e.do(t, http.MethodPost, "/api/grants", 7, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, hdr.Get("X-Request-Id"))
	var grant struct {
		Created bool `json:"created"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &grant))
	assert.True(t, grant.Created)

	_, body, _ = e.do(t, http.MethodPost, "/api/grants", 7, nil)
	require.NoError(t, json.Unmarshal(body.Data, &grant))
	assert.False(t, grant.Created)

	status, body, _ = e.do(t, http.MethodPost, "/api/trades", 7, trade("btc", "amzn", "0.01", "btc"))
	require.Equal(t, http.StatusOK, status, body.Message)
	var settled struct {
		Trade   domain.Trade `json:"trade"`
		Summary string       `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &settled))
	assert.Equal(t, int64(788_751_715), settled.Trade.ToAmount)
	assert.Equal(t, "swapped 0.01 BTC for 7.88751715 AMZN", settled.Summary)

	status, body, _ = e.do(t, http.MethodPost, "/api/trades", 7, trade("AMZN", "BTC", 788751715, "sats"))
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, xerr.AssetLocked, body.Code)
	assert.Contains(t, body.Message, "unlock")
	var locked lockedData
	require.NoError(t, json.Unmarshal(body.Data, &locked))
	assert.Equal(t, int64(0), locked.Available)
	assert.True(t, locked.UnlockAt.Equal(ledgertest.Epoch.Add(24*time.Hour)))

	e.clock.Advance(24*time.Hour + time.Second)
	status, _, _ = e.do(t, http.MethodPost, "/api/trades", 7, trade("AMZN", "BTC", "7.88751715", "shares"))
	assert.Equal(t, http.StatusOK, status)

	status, body, _ = e.do(t, http.MethodGet, "/api/trades?page=1&limit=1", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var page service.TradePage
	require.NoError(t, json.Unmarshal(body.Data, &page))
	require.Len(t, page.Trades, 1)
	assert.Equal(t, "AMZN", page.Trades[0].FromAsset)

	status, body, _ = e.do(t, http.MethodGet, "/api/audit", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var report service.AuditReport
	require.NoError(t, json.Unmarshal(body.Data, &report))
	assert.True(t, report.Consistent)
}

func TestSettleErrors(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/grants", 7, nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   int
	}{
		{"asset to asset", trade("AMZN", "TSLA", 1, "shares"), http.StatusBadRequest, xerr.InvalidAssetPair},
		{"unknown unit", trade("BTC", "AMZN", 1, "bitcoins"), http.StatusBadRequest, xerr.InvalidAmount},
		{"not a number", trade("BTC", "AMZN", "lots", "btc"), http.StatusBadRequest, xerr.InvalidAmount},
		{"zero", trade("BTC", "AMZN", 0, "sats"), http.StatusBadRequest, xerr.InvalidAmount},
		{"no price", trade("BTC", "TSLA", 1000, "sats"), http.StatusServiceUnavailable, xerr.PriceUnavailable},
		{"insufficient", trade("BTC", "AMZN", 2, "btc"), http.StatusUnprocessableEntity, xerr.InsufficientBalance},
		{"missing field", gin.H{"from": "BTC", "amount": 1, "unit": "btc"}, http.StatusBadRequest, xerr.RequestParamsError},
		{"bad amount type", gin.H{"from": "BTC", "to": "AMZN", "amount": true, "unit": "btc"}, http.StatusBadRequest, xerr.RequestParamsError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := e.do(t, http.MethodPost, "/api/trades", 7, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestSettleIdempotencyHeader(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/grants", 7, nil)

	body := trade("BTC", "AMZN", 1000, "sats")
	status, first, _ := e.do(t, http.MethodPost, "/api/trades", 7, body, "X-Request-Id", "order-1")
	require.Equal(t, http.StatusOK, status)
	status, second, _ := e.do(t, http.MethodPost, "/api/trades", 7, body, "X-Request-Id", "order-1")
	require.Equal(t, http.StatusOK, status)

	var a, b struct {
		Trade    domain.Trade `json:"trade"`
		Replayed bool         `json:"replayed"`
	}
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.False(t, a.Replayed)
	assert.True(t, b.Replayed)
	assert.Equal(t, a.Trade.ID, b.Trade.ID)

	status, conflict, _ := e.do(t, http.MethodPost, "/api/trades", 7, trade("BTC", "AMZN", 2000, "sats"), "X-Request-Id", "order-1")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, xerr.RequestConflict, conflict.Code)
}

func TestHoldingViews(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/grants", 7, nil)
	e.do(t, http.MethodPost, "/api/trades", 7, trade("BTC", "AMZN", 1000000, "sats"))

	status, body, _ := e.do(t, http.MethodGet, "/api/holdings", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var list []service.Availability
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 2)

	status, body, _ = e.do(t, http.MethodGet, "/api/holdings/amzn/availability", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var av service.Availability
	require.NoError(t, json.Unmarshal(body.Data, &av))
	assert.Equal(t, int64(788_751_715), av.Locked)
	assert.Equal(t, int64(0), av.Available)

	status, body, _ = e.do(t, http.MethodGet, "/api/holdings/AMZN/lots", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var lots []service.LotView
	require.NoError(t, json.Unmarshal(body.Data, &lots))
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Locked)
	assert.Equal(t, int64(1_000_000), lots[0].BTCSpent)

	status, _, _ = e.do(t, http.MethodGet, "/api/holdings/DOGE/lots", 7, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body, _ = e.do(t, http.MethodGet, "/api/portfolio", 7, nil)
	require.Equal(t, http.StatusOK, status)
	var p service.Portfolio
	require.NoError(t, json.Unmarshal(body.Data, &p))
	assert.Equal(t, int64(100_000_000), p.TotalSats)
}

func TestAdminPublishPrice(t *testing.T) {
	e := newEnv(t)

	status, _, _ := e.do(t, http.MethodPut, "/api/admin/prices/TSLA", 0, gin.H{"price": "250"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = e.do(t, http.MethodPut, "/api/admin/prices/TSLA", 0, gin.H{"price": "-1"}, HeaderAdminToken, adminToken)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = e.do(t, http.MethodPut, "/api/admin/prices/DOGE", 0, gin.H{"price": "1"}, HeaderAdminToken, adminToken)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = e.do(t, http.MethodPut, "/api/admin/prices/tsla", 0, gin.H{"price": "250"}, HeaderAdminToken, adminToken)
	require.Equal(t, http.StatusOK, status)

	e.do(t, http.MethodPost, "/api/grants", 7, nil)
	status, _, _ = e.do(t, http.MethodPost, "/api/trades", 7, trade("BTC", "TSLA", 1000, "sats"))
	assert.Equal(t, http.StatusOK, status, "TSLA is priced now")
}

func TestAssets(t *testing.T) {
	e := newEnv(t)
	status, body, _ := e.do(t, http.MethodGet, "/api/assets", 0, nil)
	require.Equal(t, http.StatusOK, status)
	var assets []domain.Asset
	require.NoError(t, json.Unmarshal(body.Data, &assets))
	require.Len(t, assets, 3)
	assert.Equal(t, "BTC", assets[0].Symbol)
}

func TestFailPersistence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		retryAfter string
	}{
		{"storage", domain.Persistence(errors.New("disk full")), http.StatusInternalServerError, xerr.LedgerStoreError, ""},
		{"deadlock", domain.Persistence(&gomysql.MySQLError{Number: 1213}), http.StatusServiceUnavailable, xerr.DbError, "1"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, xerr.ServerCommonError, ""},
		{"invalid user", service.ErrInvalidUser, http.StatusBadRequest, xerr.RequestParamsError, ""},
		{"unlisted code", xerr.Wrap(errors.New("disk full"), xerr.CacheError, "cache"), http.StatusInternalServerError, xerr.ServerCommonError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/trades", nil)
			fail(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			var body envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Message, "disk full")
		})
	}
}

func TestRateLimitPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.NewStore(rate.Every(time.Hour), 1, time.Minute)
	r := gin.New()
	r.GET("/x", RequireUser(), rateLimited(limiter), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	get := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderUserID, user)
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, get("1"))
	assert.Equal(t, http.StatusTooManyRequests, get("1"))
	assert.Equal(t, http.StatusOK, get("2"))
}

func TestAmountFieldAcceptsStringOrNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    amountField
		wantErr bool
	}{
		{`"0.01"`, "0.01", false},
		{`0.01`, "0.01", false},
		{`1500`, "1500", false},
		{`1e-3`, "1e-3", false},
		{`true`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a amountField
			err := json.Unmarshal([]byte(tt.in), &a)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a)
		})
	}
}
