package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"satstack.com/pkg/middleware"
	"satstack.com/pkg/ratelimit"
)

type RouterConfig struct {
	ServiceName string
	AdminToken  string
	// MetricsPath is served by the prometheus middleware; empty disables it.
	MetricsPath string
}

func NewRouter(h *Handler, limiter *ratelimit.Store, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.MetricsPath != "" {
		p := ginprom.NewPrometheus("satstack")
		p.MetricsPath = cfg.MetricsPath
		p.Use(r)
	}
	r.Use(
		otelgin.Middleware(cfg.ServiceName),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
	)

	api := r.Group("/api")
	api.GET("/assets", h.Assets)

	admin := api.Group("/admin", RequireAdmin(cfg.AdminToken))
	admin.PUT("/prices/:symbol", h.PublishPrice)

	user := api.Group("", RequireUser(), rateLimited(limiter))
	{
		user.POST("/grants", h.EnsureGrant)
		user.POST("/trades", h.Settle)
		user.GET("/trades", h.Trades)
		user.GET("/holdings", h.HoldingsList)
		user.GET("/holdings/:asset/availability", h.Availability)
		user.GET("/holdings/:asset/lots", h.LotList)
		user.GET("/portfolio", h.PortfolioValue)
		user.GET("/audit", h.Reconcile)
	}
	return r
}

// rateLimited keys the token buckets by user.
func rateLimited(limiter *ratelimit.Store) gin.HandlerFunc {
	return middleware.RateLimit(limiter, middleware.HeaderKey(HeaderUserID))
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}
