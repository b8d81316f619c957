package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/logging"
	"binance-signal-monitor/internal/marketdata"
	"binance-signal-monitor/internal/monitor"
	"binance-signal-monitor/internal/simulator"
	"binance-signal-monitor/internal/tradestore"
)

// Config holds HTTP server settings
type Config struct {
	ListenAddr string `json:"listen_addr"`
}

// PriceSource supplies live ticker prices, typically the websocket
// stream. May be absent.
type PriceSource interface {
	PriceSnapshot() map[string]binance.TickerPrice
}

// Server exposes read-only monitoring state plus symbol pause/resume
type Server struct {
	cfg     Config
	monitor *monitor.Monitor
	sim     *simulator.Simulator
	store   *tradestore.Store
	cache   *marketdata.Cache
	prices  PriceSource

	httpServer *http.Server
	log        *logging.Logger
}

// SetPriceSource installs a live price feed behind /api/prices
func (s *Server) SetPriceSource(src PriceSource) {
	s.prices = src
}

// New builds the server and its routes. store and cache may be nil;
// their endpoints then report 503.
func New(cfg Config, mon *monitor.Monitor, sim *simulator.Simulator, store *tradestore.Store, cache *marketdata.Cache) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	s := &Server{
		cfg:     cfg,
		monitor: mon,
		sim:     sim,
		store:   store,
		cache:   cache,
		log:     logging.WithComponent("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.handleHealth)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/symbols/:symbol", s.handleSymbol)
		apiGroup.POST("/symbols/:symbol/pause", s.handlePause)
		apiGroup.POST("/symbols/:symbol/resume", s.handleResume)
		apiGroup.GET("/positions", s.handlePositions)
		apiGroup.GET("/trades", s.handleTrades)
		apiGroup.GET("/trades/summary", s.handleTradeSummary)
		apiGroup.GET("/suggestions", s.handleSuggestions)
		apiGroup.GET("/performance", s.handlePerformance)
		apiGroup.GET("/alerts", s.handleAlerts)
		apiGroup.GET("/cache/stats", s.handleCacheStats)
		apiGroup.GET("/ratelimit", s.handleRateLimit)
		apiGroup.GET("/prices", s.handlePrices)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	go func() {
		s.log.Info("api server listening", "addr", s.cfg.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.monitor.Status()
	code := http.StatusOK
	if status.State != monitor.StateRunning {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"state":        status.State,
		"health_score": status.HealthScore,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"monitoring": s.monitor.Status(),
		"simulator":  s.sim.Stats(),
	})
}

func (s *Server) handleSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	status, ok := s.monitor.SymbolStatus(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handlePause(c *gin.Context) {
	symbol := c.Param("symbol")
	if !s.monitor.PauseSymbol(symbol) {
		c.JSON(http.StatusConflict, gin.H{"error": "symbol not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "state": "PAUSED"})
}

func (s *Server) handleResume(c *gin.Context) {
	symbol := c.Param("symbol")
	if !s.monitor.ResumeSymbol(symbol) {
		c.JSON(http.StatusConflict, gin.H{"error": "symbol not paused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "state": "ACTIVE"})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"open":   s.sim.OpenPositionsSummary(s.monitor.LatestPrices()),
		"closed": s.sim.ClosedTrades(),
		"stats":  s.sim.Stats(),
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade store disabled"})
		return
	}

	interval := c.Query("interval")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	var (
		trades []*tradestore.TradeRecord
		err    error
	)
	if interval != "" {
		trades, err = s.store.TradesForInterval(interval, limit)
	} else {
		trades, err = s.store.Trades()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) handleTradeSummary(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade store disabled"})
		return
	}

	if interval := c.Query("interval"); interval != "" {
		sum, err := s.store.SummaryForInterval(interval)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sum)
		return
	}

	sums, err := s.store.SummaryByInterval()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"intervals": sums, "session": s.store.SessionStats()})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Suggestions())
}

func (s *Server) handlePerformance(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Performance())
}

func (s *Server) handleAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{"alerts": s.monitor.Alerts(limit)})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache disabled"})
		return
	}
	c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) handleRateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, binance.GetRateLimiter().Stats())
}

func (s *Server) handlePrices(c *gin.Context) {
	if s.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price stream disabled"})
		return
	}
	snap := s.prices.PriceSnapshot()
	c.JSON(http.StatusOK, gin.H{"prices": snap, "count": len(snap)})
}
