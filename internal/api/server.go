// Package api exposes the gateway's HTTP and WebSocket surface to the
// browser client.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"papertrade-gateway/config"
	"papertrade-gateway/internal/auth"
	"papertrade-gateway/internal/dashboard"
	"papertrade-gateway/internal/events"
	"papertrade-gateway/internal/logging"
	"papertrade-gateway/internal/marketdata"
	"papertrade-gateway/internal/portfolio"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// DashboardSource is the slice of the refresher the handlers consume.
type DashboardSource interface {
	Current() *dashboard.Snapshot
	CurrentLeaderboard() *dashboard.Leaderboard
	RefreshNow(ctx context.Context)
}

// MarketData is the slice of the market data manager the handlers consume.
type MarketData interface {
	Subscribe(symbol string)
	Unsubscribe(symbol string)
	GetQuote(symbol string) (marketdata.Quote, bool)
	AllQuotes() []marketdata.Quote
	GetStats() marketdata.Stats
	IsConnected() bool
}

// TradeHistory fetches the caller's full trade history on demand. Unlike the
// dashboard snapshot it is not refreshed in the background, so requests hit
// the trading API directly.
type TradeHistory interface {
	GetTrades(ctx context.Context) ([]portfolio.TradeExecution, error)
}

// QuoteSnapshots serves the last persisted quote map so quotes stay
// available, stale, while the feed is down.
type QuoteSnapshots interface {
	Quotes(ctx context.Context) (map[string]marketdata.Quote, bool)
}

// AuthService is the slice of the auth client the handlers consume.
type AuthService interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	FetchProfile(ctx context.Context) (*auth.User, error)
	Logout(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	eventBus    *events.EventBus
	config      config.ServerConfig
	authClient  AuthService
	validator   *auth.Validator
	authEnabled bool
	marketData  MarketData
	dash        DashboardSource
	history     TradeHistory
	quoteSnaps  QuoteSnapshots
	rateLimiter *RateLimiter
	logger      *logging.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	eventBus *events.EventBus,
	authClient AuthService,
	validator *auth.Validator, // Can be nil if auth is disabled
	marketData MarketData,
	dash DashboardSource,
	history TradeHistory,
	quoteSnaps QuoteSnapshots,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		eventBus:    eventBus,
		config:      cfg,
		authClient:  authClient,
		validator:   validator,
		authEnabled: validator != nil,
		marketData:  marketData,
		dash:        dash,
		history:     history,
		quoteSnaps:  quoteSnaps,
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logging.Default().WithComponent("api"),
	}

	server.setupRoutes()

	InitWebSocket(eventBus)

	return server
}

func allowedOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:5173"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// rateLimitMiddleware rate limits requests by endpoint path.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests to this endpoint",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Auth routes (public, proxied to the auth service)
	authGroup := s.router.Group("/api/auth")
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/register", s.handleRegister)
		authGroup.GET("/profile", s.handleProfile)
		authGroup.POST("/logout", s.handleLogout)
	}

	// Auth status endpoint (always available)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"auth_enabled": s.authEnabled,
		})
	})

	// API routes (protected when auth is enabled)
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())

	if s.authEnabled {
		api.Use(auth.Middleware(s.validator))
	}

	{
		// Dashboard & portfolio endpoints
		api.GET("/dashboard", s.handleGetDashboard)
		api.POST("/dashboard/refresh", s.handleRefreshDashboard)
		api.GET("/portfolio", s.handleGetPortfolio)
		api.GET("/portfolio/intraday", s.handleGetIntraday)
		api.GET("/trades", s.handleGetTrades)
		api.GET("/trades/history", s.handleTradeHistory)

		// Leaderboard endpoints
		api.GET("/leaderboard", s.handleGetLeaderboard)
		api.GET("/leaderboard/me", s.handleGetMyRank)

		// Market data endpoints
		api.GET("/quotes", s.handleGetAllQuotes)
		api.GET("/quotes/:symbol", s.handleGetQuote)
		api.POST("/quotes/:symbol/subscribe", s.handleSubscribe)
		api.DELETE("/quotes/:symbol/subscribe", s.handleUnsubscribe)
		api.GET("/feed/status", s.handleFeedStatus)
	}

	// WebSocket endpoint for live quote and dashboard pushes
	s.router.GET("/ws", s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	readTimeout := time.Duration(s.config.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := time.Duration(s.config.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	feedConnected := false
	if s.marketData != nil {
		feedConnected = s.marketData.IsConnected()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"feed_connected": feedConnected,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
