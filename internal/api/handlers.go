package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"papertrade-gateway/internal/auth"
	"papertrade-gateway/internal/marketdata"
)

// ---- Auth proxy handlers ----

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid login payload: "+err.Error())
		return
	}

	session, err := s.authClient.Login(c.Request.Context(), req)
	if err != nil {
		s.authError(c, err)
		return
	}
	successResponse(c, session)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid registration payload: "+err.Error())
		return
	}

	session, err := s.authClient.Register(c.Request.Context(), req)
	if err != nil {
		s.authError(c, err)
		return
	}
	successResponse(c, session)
}

func (s *Server) handleProfile(c *gin.Context) {
	user, err := s.authClient.FetchProfile(c.Request.Context())
	if err != nil {
		s.authError(c, err)
		return
	}
	successResponse(c, user)
}

func (s *Server) handleLogout(c *gin.Context) {
	userID := auth.GetUserID(c)
	_ = s.authClient.Logout(c.Request.Context())

	if s.eventBus != nil {
		s.eventBus.PublishUserLogout(userID)
	}
	successResponse(c, gin.H{"logged_out": true})
}

// authError maps auth service failures to HTTP responses, preserving the
// service's own status code where one is carried.
func (s *Server) authError(c *gin.Context, err error) {
	if authErr, ok := err.(auth.AuthError); ok {
		status := authErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error":   authErr.Code,
			"message": authErr.Message,
		})
		return
	}
	errorResponse(c, http.StatusBadGateway, err.Error())
}

// ---- Dashboard & portfolio handlers ----

func (s *Server) handleGetDashboard(c *gin.Context) {
	snap := s.dash.Current()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, "dashboard not yet populated")
		return
	}
	successResponse(c, snap)
}

func (s *Server) handleRefreshDashboard(c *gin.Context) {
	s.dash.RefreshNow(c.Request.Context())

	snap := s.dash.Current()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, "refresh failed")
		return
	}
	successResponse(c, snap)
}

func (s *Server) handleGetPortfolio(c *gin.Context) {
	snap := s.dash.Current()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, "portfolio not yet loaded")
		return
	}
	successResponse(c, gin.H{
		"holdings":  snap.Holdings,
		"long_term": snap.LongTerm,
		"metrics":   snap.Metrics,
	})
}

func (s *Server) handleGetIntraday(c *gin.Context) {
	snap := s.dash.Current()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, "portfolio not yet loaded")
		return
	}
	successResponse(c, gin.H{
		"intraday": snap.Intraday,
		"metrics":  snap.IntradayMetrics,
	})
}

func (s *Server) handleGetTrades(c *gin.Context) {
	snap := s.dash.Current()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trades not yet loaded")
		return
	}
	successResponse(c, snap.Trades)
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	if s.history == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trade history unavailable")
		return
	}

	trades, err := s.history.GetTrades(c.Request.Context())
	if err != nil {
		s.logger.Error("trade history fetch failed", "error", err)
		errorResponse(c, http.StatusBadGateway, "failed to fetch trade history")
		return
	}
	successResponse(c, trades)
}

// ---- Leaderboard handlers ----

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	board := s.dash.CurrentLeaderboard()
	if board == nil {
		errorResponse(c, http.StatusServiceUnavailable, "leaderboard not yet loaded")
		return
	}
	successResponse(c, board)
}

func (s *Server) handleGetMyRank(c *gin.Context) {
	board := s.dash.CurrentLeaderboard()
	if board == nil || board.Rank == nil {
		errorResponse(c, http.StatusServiceUnavailable, "rank not yet loaded")
		return
	}
	successResponse(c, board.Rank)
}

// ---- Market data handlers ----

func (s *Server) handleGetAllQuotes(c *gin.Context) {
	quotes := s.marketData.AllQuotes()
	if len(quotes) == 0 && !s.marketData.IsConnected() {
		if cached, ok := s.cachedQuotes(c); ok {
			stale := make([]marketdata.Quote, 0, len(cached))
			for _, q := range cached {
				stale = append(stale, q)
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": stale, "from_cache": true})
			return
		}
	}
	successResponse(c, quotes)
}

func (s *Server) handleGetQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	quote, ok := s.marketData.GetQuote(symbol)
	if ok {
		successResponse(c, quote)
		return
	}
	if !s.marketData.IsConnected() {
		if cached, ok := s.cachedQuotes(c); ok {
			if q, ok := cached[symbol]; ok {
				c.JSON(http.StatusOK, gin.H{"success": true, "data": q, "from_cache": true})
				return
			}
		}
	}
	errorResponse(c, http.StatusNotFound, "no quote cached for "+symbol)
}

// cachedQuotes reads the persisted quote snapshot while the feed is down.
func (s *Server) cachedQuotes(c *gin.Context) (map[string]marketdata.Quote, bool) {
	if s.quoteSnaps == nil {
		return nil, false
	}
	return s.quoteSnaps.Quotes(c.Request.Context())
}

func (s *Server) handleSubscribe(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}
	s.marketData.Subscribe(symbol)
	successResponse(c, gin.H{"symbol": symbol, "subscribed": true})
}

func (s *Server) handleUnsubscribe(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	s.marketData.Unsubscribe(symbol)
	successResponse(c, gin.H{"symbol": symbol, "subscribed": false})
}

func (s *Server) handleFeedStatus(c *gin.Context) {
	stats := s.marketData.GetStats()
	successResponse(c, stats)
}
