package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rookie/internal/aggregate"
	"rookie/internal/alerts"
	"rookie/internal/domain"
	"rookie/internal/indicator"
	"rookie/internal/news"
	"rookie/internal/search"
	"rookie/internal/state"
	"rookie/internal/wallet"
)

// NewsSource loads one news category.
type NewsSource interface {
	Fetch(ctx context.Context, category string) ([]domain.NewsArticle, error)
}

// Insights generates analyst texts.
type Insights interface {
	AnalyzeAsset(ctx context.Context, a domain.Asset) string
	MarketOutlook(ctx context.Context) string
}

// Deps are the components the API serves.
type Deps struct {
	Orchestrator *aggregate.Orchestrator
	Search       *search.Resolver
	Wallet       *wallet.Valuator
	State        *state.Store
	Alerts       *alerts.Service
	Series       *indicator.SeriesResolver
	News         NewsSource
	Insights     Insights
}

// topGainersCount is the size of the dashboard's top gainers list.
const topGainersCount = 5

// Server serves the dashboard HTTP API.
type Server struct {
	Deps
	origins []string
	log     *slog.Logger
}

// NewServer creates a Server. An empty origins list allows any origin.
func NewServer(d Deps, origins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Deps:    d,
		origins: origins,
		log:     logger.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/datasets/:name", s.handleDataset)
	api.POST("/refresh", s.handleRefresh)

	api.GET("/search", s.handleSearch)
	api.PUT("/search", s.handleSearchUpdate)
	api.DELETE("/search", s.handleSearchClear)
	api.GET("/search/results", s.handleSearchResults)

	api.GET("/watchlist", s.handleGetWatchlist)
	api.PUT("/watchlist/:id", s.handleAddWatchlist)
	api.DELETE("/watchlist/:id", s.handleRemoveWatchlist)

	api.GET("/assets/:id/technicals", s.handleTechnicals)
	api.GET("/assets/:id/insight", s.handleInsight)
	api.GET("/outlook", s.handleOutlook)
	api.GET("/news", s.handleNews)

	api.GET("/portfolio", s.handleGetPortfolio)
	api.POST("/portfolio", s.handleLoadPortfolio)
	api.DELETE("/portfolio", s.handleDisconnect)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)
	api.POST("/login", s.handleLogin)
	api.POST("/logout", s.handleLogout)

	api.GET("/alerts", s.handleListAlerts)
	api.GET("/alerts/reached", s.handleReachedAlerts)
	api.POST("/alerts", s.handleAddAlert)
	api.DELETE("/alerts/:id", s.handleRemoveAlert)
}

// Handler returns the gin engine with CORS, request IDs, request logging
// and panic recovery installed.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	r.Use(cors.New(cfg))

	s.RegisterRoutes(r)
	return r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

const requestIDHeader = "X-Request-ID"

// requestID propagates the caller's request ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Microsecond),
			"request_id", c.GetString("request_id"),
		)
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.Orchestrator.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": snap.Version,
		"loading": s.Orchestrator.Loading(),
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap := s.Orchestrator.Snapshot()
	c.JSON(http.StatusOK, SnapshotResponse{
		Version:   snap.Version,
		Cycle:     snap.Cycle,
		UpdatedAt: snap.UpdatedAt,
		Loading:   s.Orchestrator.Loading(),
		Datasets:  snap.Datasets,
		Errors:    snap.Errors,
		Gainers:   aggregate.TopGainers(gainerPool(snap), topGainersCount),
	})
}

// gainerPool is every tracked dataset except penny stocks and trending.
func gainerPool(snap aggregate.Snapshot) []domain.Asset {
	return aggregate.Merge(
		snap.Get(aggregate.DatasetCrypto),
		snap.Get(aggregate.DatasetNasdaq),
		snap.Get(aggregate.DatasetNYSE),
		snap.Get(aggregate.DatasetBIST),
	)
}

// handleDataset serves one named dataset, "all" for the merged view, or
// "gainers" for the top gainers. Query parameters sort and dir order it.
func (s *Server) handleDataset(c *gin.Context) {
	name := c.Param("name")
	field, dir, err := aggregate.ParseSort(c.Query("sort"), c.Query("dir"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.Orchestrator.Snapshot()
	var assets []domain.Asset
	switch {
	case name == "all":
		assets = snap.Merged(s.searchAssets())
	case name == "gainers":
		n := topGainersCount
		if v, err := strconv.Atoi(c.Query("n")); err == nil && v > 0 {
			n = v
		}
		assets = aggregate.TopGainers(gainerPool(snap), n)
	case slices.Contains(aggregate.DatasetNames, name):
		assets = snap.Get(name)
	default:
		writeError(c, http.StatusNotFound, "unknown dataset "+name)
		return
	}

	msg := snap.Errors[name]
	c.JSON(http.StatusOK, DatasetResponse{
		Name:    name,
		Version: snap.Version,
		Assets:  aggregate.Sort(assets, field, dir),
		Error:   msg,
		Stale:   msg != "",
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	snap, published := s.Orchestrator.Refresh(c.Request.Context())
	if s.Search != nil && published {
		s.Search.Rerun()
	}
	c.JSON(http.StatusOK, RefreshResponse{Published: published, Version: snap.Version, Cycle: snap.Cycle})
}

// searchAssets returns the latest search results, which rank between the
// tracked datasets and trending coins in merged views.
func (s *Server) searchAssets() []domain.Asset {
	if s.Search == nil {
		return nil
	}
	return s.Search.Results().Results
}

// lookupAsset finds an asset by ID across every dataset and search result.
func (s *Server) lookupAsset(id string) (domain.Asset, bool) {
	merged := s.Orchestrator.Snapshot().Merged(s.searchAssets())
	a, ok := aggregate.Index(merged)[id]
	return a, ok
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	results := s.Search.Evaluate(c.Request.Context(), q)
	c.JSON(http.StatusOK, search.State{Query: q, Results: results, Active: strings.TrimSpace(q) != ""})
}

func (s *Server) handleSearchUpdate(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s.Search.Update(req.Query)
	c.JSON(http.StatusAccepted, s.Search.Results())
}

func (s *Server) handleSearchClear(c *gin.Context) {
	s.Search.Clear()
	c.JSON(http.StatusOK, s.Search.Results())
}

func (s *Server) handleSearchResults(c *gin.Context) {
	c.JSON(http.StatusOK, s.Search.Results())
}

// ---------------------------------------------------------------------------
// Watchlist
// ---------------------------------------------------------------------------

func (s *Server) watchlistResponse() WatchlistResponse {
	ids := s.State.Watchlist()
	merged := s.Orchestrator.Snapshot().Merged(s.searchAssets())
	return WatchlistResponse{IDs: ids, Assets: aggregate.WatchlistAssets(merged, ids)}
}

func (s *Server) handleGetWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, s.watchlistResponse())
}

func (s *Server) handleAddWatchlist(c *gin.Context) {
	s.setWatched(c, true)
}

func (s *Server) handleRemoveWatchlist(c *gin.Context) {
	s.setWatched(c, false)
}

// setWatched toggles only when the current membership differs, so PUT and
// DELETE are idempotent.
func (s *Server) setWatched(c *gin.Context, want bool) {
	id := c.Param("id")
	if s.State.IsWatched(id) != want {
		if _, err := s.State.ToggleWatchlist(id); err != nil {
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, s.watchlistResponse())
}

// ---------------------------------------------------------------------------
// Asset detail
// ---------------------------------------------------------------------------

func (s *Server) handleTechnicals(c *gin.Context) {
	a, ok := s.lookupAsset(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "asset not found")
		return
	}
	series := s.Series.Resolve(c.Request.Context(), a)
	resp := TechnicalsResponse{AssetID: a.ID, Series: series}
	if tech, ok := indicator.Compute(series.Points); ok {
		rsi, sma := tech.RSI, tech.SMA
		rsiD, smaD := indicator.RoundRSI(rsi), indicator.RoundSMA(sma)
		resp.Available = true
		resp.RSI, resp.SMA = &rsi, &sma
		resp.RSIDisplay, resp.SMADisplay = &rsiD, &smaD
		resp.Signal = indicator.Signal(rsi)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInsight(c *gin.Context) {
	a, ok := s.lookupAsset(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "asset not found")
		return
	}
	c.JSON(http.StatusOK, TextResponse{Text: s.Insights.AnalyzeAsset(c.Request.Context(), a)})
}

func (s *Server) handleOutlook(c *gin.Context) {
	c.JSON(http.StatusOK, TextResponse{Text: s.Insights.MarketOutlook(c.Request.Context())})
}

// handleNews serves one category. A failing provider yields an empty list
// with the error attached, not an error status.
func (s *Server) handleNews(c *gin.Context) {
	category := c.DefaultQuery("category", news.CategoryStocks)
	switch category {
	case news.CategoryStocks, news.CategoryCrypto, news.CategoryRSS:
	default:
		writeError(c, http.StatusBadRequest, "unknown news category "+category)
		return
	}
	articles, err := s.News.Fetch(c.Request.Context(), category)
	resp := NewsResponse{Category: category, Articles: articles}
	if resp.Articles == nil {
		resp.Articles = []domain.NewsArticle{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

func (s *Server) handleGetPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, PortfolioResponse{Address: s.State.WalletAddress(), Portfolio: s.Wallet.Portfolio()})
}

// handleLoadPortfolio values the posted address, or reloads the saved one
// when the body has no address.
func (s *Server) handleLoadPortfolio(c *gin.Context) {
	var req PortfolioRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var (
		p   *domain.WalletPortfolio
		err error
	)
	if req.Address == "" {
		p, err = s.Wallet.Reload(c.Request.Context())
	} else {
		p, err = s.Wallet.Load(c.Request.Context(), req.Address)
	}
	switch {
	case errors.Is(err, wallet.ErrInvalidAddress):
		writeError(c, http.StatusBadRequest, wallet.ErrInvalidAddress.Error())
		return
	case errors.Is(err, wallet.ErrWalletUnavailable):
		writeError(c, http.StatusBadGateway, wallet.ErrWalletUnavailable.Error())
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, PortfolioResponse{Address: s.State.WalletAddress(), Portfolio: p})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.Wallet.Disconnect(); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Settings and session
// ---------------------------------------------------------------------------

func (s *Server) settingsResponse() SettingsResponse {
	d := s.Orchestrator.Interval()
	return SettingsResponse{
		Settings:         s.State.Settings(),
		User:             s.State.User(),
		IntervalOptions:  state.RefreshIntervalOptions,
		CurrentInterval:  d.String(),
		RefreshScheduled: d > 0,
	}
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settingsResponse())
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Theme != nil {
		if err := s.State.SetTheme(*req.Theme); err != nil {
			writeError(c, statusFor(err), err.Error())
			return
		}
	}
	if req.RefreshInterval != nil {
		if err := s.State.SetRefreshInterval(*req.RefreshInterval); err != nil {
			writeError(c, statusFor(err), err.Error())
			return
		}
	}
	if req.TutorialCompleted != nil && *req.TutorialCompleted {
		if err := s.State.CompleteTutorial(); err != nil {
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, s.settingsResponse())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrInvalidTheme),
		errors.Is(err, state.ErrInvalidInterval),
		errors.Is(err, state.ErrInvalidLogin),
		errors.Is(err, alerts.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, alerts.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.State.Login(req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "show_tutorial": !s.State.TutorialCompleted()})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.State.Logout(); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

func (s *Server) handleListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, AlertsResponse{Alerts: s.Alerts.List(c.Query("asset_id"))})
}

func (s *Server) handleReachedAlerts(c *gin.Context) {
	merged := s.Orchestrator.Snapshot().Merged(s.searchAssets())
	c.JSON(http.StatusOK, AlertsResponse{Alerts: s.Alerts.Reached(merged)})
}

func (s *Server) handleAddAlert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	a, ok := s.lookupAsset(req.AssetID)
	if !ok {
		writeError(c, http.StatusNotFound, "asset not found")
		return
	}
	alert, err := s.Alerts.Add(a, req.rawPrice())
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (s *Server) handleRemoveAlert(c *gin.Context) {
	if err := s.Alerts.Remove(c.Param("id")); err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
