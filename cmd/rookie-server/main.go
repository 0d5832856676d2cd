package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"rookie/internal/aggregate"
	"rookie/internal/alerts"
	"rookie/internal/config"
	"rookie/internal/domain"
	"rookie/internal/httpapi"
	"rookie/internal/indicator"
	"rookie/internal/insight"
	"rookie/internal/market"
	"rookie/internal/news"
	"rookie/internal/rpc"
	"rookie/internal/search"
	"rookie/internal/state"
	"rookie/internal/store"
	"rookie/internal/util"
	"rookie/internal/wallet"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLoggerTo(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	if util.ParseLevel(cfg.Logging.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := "config/rookie.yaml"
	if p := os.Getenv("ROOKIE_CONFIG"); p != "" {
		path = p
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openKV(cfg *config.Config) (store.KV, error) {
	switch cfg.State.Backend {
	case "redis":
		return store.NewRedisKV(cfg.Redis)
	case "sqlite", "":
		return store.NewSQLiteKV(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// State.
	kv, err := openKV(cfg)
	if err != nil {
		return fmt.Errorf("opening %s state backend: %w", cfg.State.Backend, err)
	}
	defer kv.Close()

	st, err := state.Open(ctx, kv, logger)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	// Market sources.
	transport := market.NewTransport(cfg.HTTP, logger)
	mc := market.NewClient(transport, cfg, logger)
	if bars := market.NewAlpacaBars(cfg.Alpaca); bars != nil {
		mc.SetBarSource(bars)
		logger.Info("alpaca daily bars enabled")
	}

	// A saved preference wins over the configured default.
	interval := cfg.Refresh.Interval
	if ok, _ := st.Get(state.KeyRefreshInterval, new(int64)); ok {
		interval = st.RefreshInterval()
	}
	orch := aggregate.New(aggregate.MarketDatasets(mc, cfg.Markets), interval, logger)

	var history store.PriceHistory
	if cfg.Storage.HistoryEnabled {
		ph := store.NewParquetHistory(cfg.Storage.DataDir)
		history = ph
		go aggregate.RecordHistory(ctx, orch, ph, logger)
	}

	resolver := search.NewResolver(mc, func() []domain.Asset { return orch.Snapshot().Searchable() }, cfg.Search.Debounce, logger)
	go rerunSearch(ctx, orch, resolver)
	go st.OnRefreshInterval(ctx, orch.SetInterval)

	gemini, err := insight.NewClient(ctx, cfg.Gemini, cfg.HTTP.Timeout, logger)
	if err != nil {
		return err
	}
	if !gemini.Available() {
		logger.Warn("gemini api key not set, insights disabled")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Orchestrator: orch,
		Search:       resolver,
		Wallet:       wallet.NewValuator(wallet.NewMoralis(transport, cfg.Moralis, logger), mc, st, logger),
		State:        st,
		Alerts:       alerts.NewService(st),
		Series:       indicator.NewSeriesResolver(history, mc, logger),
		News:         news.NewFetcher(transport, cfg, logger),
		Insights:     gemini,
	}, cfg.Server.CORSOrigins, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 3)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var gs *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("grpc listen %s: %w", addr, err)
		}
		gs = grpc.NewServer()
		rpc.NewServer(orch, logger).Register(gs)
		go func() {
			logger.Info("grpc server listening", "addr", addr)
			if err := gs.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("orchestrator: %w", err)
		}
	}()

	// Restore the saved wallet in the background so startup is not blocked
	// on Moralis.
	go func() {
		if _, err := srv.Wallet.Reload(ctx); err != nil {
			logger.Warn("restoring saved wallet failed", "error", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if gs != nil {
		gs.GracefulStop()
	}
	return runErr
}

// rerunSearch re-evaluates the active search whenever a new snapshot is
// published.
func rerunSearch(ctx context.Context, orch *aggregate.Orchestrator, r *search.Resolver) {
	id, ch := orch.Subscribe(1)
	defer orch.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			r.Rerun()
		}
	}
}
