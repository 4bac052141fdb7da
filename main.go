package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade-gateway/config"
	"papertrade-gateway/internal/api"
	"papertrade-gateway/internal/auth"
	"papertrade-gateway/internal/cache"
	"papertrade-gateway/internal/dashboard"
	"papertrade-gateway/internal/events"
	"papertrade-gateway/internal/logging"
	"papertrade-gateway/internal/marketdata"
	"papertrade-gateway/internal/upstream"
)

// livePriceSource adapts the market data manager's quote cache to the
// dashboard's price lookup for synthesized holdings.
type livePriceSource struct {
	manager *marketdata.Manager
}

func (s *livePriceSource) LivePrices() map[string]float64 {
	quotes := s.manager.AllQuotes()
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		prices[q.Symbol] = q.Price
	}
	return prices
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()

	// Optional Redis snapshot cache
	var snapshots *cache.Snapshots
	if cfg.RedisConfig.Enabled {
		redisService, err := cache.NewService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing without it", "error", err)
		} else {
			snapshots = cache.NewSnapshots(redisService)
			defer redisService.Close()
		}
	}

	// Session credential store shared by the auth and trading API clients
	tokenStore := auth.NewTokenStore()

	authClient := auth.NewClient(auth.ClientConfig{
		BaseURL:        cfg.UpstreamConfig.AuthBaseURL,
		RequestTimeout: cfg.UpstreamConfig.RequestTimeout,
	}, tokenStore)

	tradingClient := upstream.NewClient(upstream.Config{
		BaseURL:        cfg.UpstreamConfig.BaseURL,
		RequestTimeout: cfg.UpstreamConfig.RequestTimeout,
		RetryAttempts:  cfg.UpstreamConfig.RetryAttempts,
	}, tokenStore)

	// Market data: websocket feed + subscription manager
	feed := marketdata.NewStreamFeed(marketdata.FeedConfig{
		URL:            cfg.FeedConfig.URL,
		ConnectTimeout: cfg.FeedConfig.ConnectTimeout,
		PingInterval:   cfg.FeedConfig.PingInterval,
	})
	manager := marketdata.NewManager(feed)

	// Fan quote updates and connection changes out to the event bus; browser
	// clients receive them over the websocket hub.
	manager.OnQuoteUpdate(func(q marketdata.Quote) {
		eventBus.PublishQuoteUpdate(q.Symbol, q.Price, q.Change, q.ChangePercent)
	})
	manager.OnStatusChange(func(connected bool) {
		eventBus.PublishFeedStatus(connected)
	})

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.FeedConfig.ConnectTimeout)
	if err := manager.Connect(connectCtx); err != nil {
		logger.Warn("Feed connect failed at startup, subscriptions queued", "error", err)
	}
	cancelConnect()

	// Dashboard refresh loops
	refresher := dashboard.NewRefresher(
		tradingClient,
		&livePriceSource{manager: manager},
		tokenStore,
		eventBus,
		snapshots,
		dashboard.Config{
			PortfolioInterval:   cfg.RefreshConfig.PortfolioInterval,
			LeaderboardInterval: cfg.RefreshConfig.LeaderboardInterval,
			LeaderboardLimit:    cfg.RefreshConfig.LeaderboardLimit,
		},
	)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refresher.Start(rootCtx)

	// Periodically snapshot the quote cache so a feed outage still leaves
	// recent prices servable.
	if snapshots != nil {
		go func() {
			ticker := time.NewTicker(cache.QuotesTTL)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					quotes := manager.AllQuotes()
					byName := make(map[string]marketdata.Quote, len(quotes))
					for _, q := range quotes {
						byName[q.Symbol] = q
					}
					snapshots.StoreQuotes(rootCtx, byName)
				}
			}
		}()
	}

	// Gateway-side token validation for browser requests
	var validator *auth.Validator
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			log.Fatal("AUTH_JWT_SECRET is required when auth is enabled")
		}
		validator = auth.NewValidator(cfg.AuthConfig.JWTSecret)
	}

	server := api.NewServer(
		cfg.ServerConfig,
		eventBus,
		authClient,
		validator,
		manager,
		refresher,
		tradingClient,
		snapshots,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	logger.Info("Gateway started",
		"port", cfg.ServerConfig.Port,
		"feed", cfg.FeedConfig.URL,
		"upstream", cfg.UpstreamConfig.BaseURL)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")
	cancel()
	manager.Disconnect()

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	logger.Info("Gateway stopped")
}
