// Package api exposes the engine's administrative and manual-trading
// operations over HTTP, consumed by cmd/tradectl and any future UI,
// grounded on the teacher's `SynapseStrike/api/tactics.go` handler shapes
// and gin.Engine wiring.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"momentum-engine/broker"
	"momentum-engine/config"
	"momentum-engine/engine"
	"momentum-engine/logger"
	"momentum-engine/metrics"
)

// Server is the admin/status/manual-trading HTTP surface. It holds no
// strategy state of its own; every handler delegates to Engine or talks
// to the broker directly for operator-initiated manual trades that fall
// outside any strategy's lifecycle.
type Server struct {
	eng        *engine.Engine
	brokerC    broker.Broker
	cfg        *config.Config
	log        *logger.Logger
	apiKeyHash string
}

// NewServer constructs the admin API. apiKeyHash is the bcrypt hash of the
// operator's admin API key (config.AdminAPIKeyHash); an empty hash
// disables the login endpoint entirely (the server still starts, for
// local/paper development, but every mutating route 401s).
func NewServer(eng *engine.Engine, b broker.Broker, cfg *config.Config, log *logger.Logger) *Server {
	return &Server{eng: eng, brokerC: b, cfg: cfg, log: log, apiKeyHash: cfg.AdminAPIKeyHash}
}

// Router builds the gin engine. Read-only routes require a valid bearer
// token; routes that change state additionally require it. Manual trading
// routes invoked with `?live=true` additionally require a fresh TOTP code
// (§ live-trading switch).
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.POST("/auth/login", s.handleLogin)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	authed := r.Group("/")
	authed.Use(s.jwtMiddleware())
	{
		authed.GET("/status", s.handleStatus)
		authed.GET("/account", s.handleAccount)
		authed.GET("/positions", s.handlePositions)
		authed.GET("/orders", s.handleOpenOrders)
		authed.GET("/trades", s.handleTrades)
		authed.GET("/quote/:ticker", s.handleQuote)

		authed.POST("/strategies/:id/enable", s.handleEnableStrategy)
		authed.POST("/strategies/:id/disable", s.handleDisableStrategy)
		authed.POST("/strategies/:id/priority", s.handleSetPriority)

		authed.POST("/buy", s.totpGuard(), s.handleBuy)
		authed.POST("/sell", s.totpGuard(), s.handleSell)
		authed.POST("/close/:ticker", s.totpGuard(), s.handleClose)
		authed.POST("/close-all", s.totpGuard(), s.handleCloseAll)
		authed.POST("/cancel-all", s.totpGuard(), s.handleCancelAll)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-TOTP-Code")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// ListenAndServe runs the admin API on cfg.AdminPort. It blocks; callers
// run it in a goroutine.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.AdminPort),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
