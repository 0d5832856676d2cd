package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "rookie-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "STATE_BACKEND", "COINGECKO_API_KEY", "FMP_API_KEY",
		"MORALIS_API_KEY", "YAPIKREDI_BASE_URL", "API_KEY", "GEMINI_API_KEY", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "REFRESH_INTERVAL", "LOG_LEVEL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
storage:
  data_dir: "/tmp/rookie/data"
  sqlite_path: "/tmp/rookie/rookie.db"
  history_enabled: true
state:
  backend: "redis"
server:
  host: "0.0.0.0"
  port: 9000
  grpc_port: 9090
logging:
  level: "debug"
  format: "json"
http:
  timeout: 3s
  max_attempts: 4
coingecko:
  api_key: "cg-key"
  rate_limit_per_min: 10
fmp:
  api_key: "fmp-key"
markets:
  crypto_ids: "bitcoin,ethereum"
  nasdaq: "AAPL"
news:
  rss_feeds:
    - "https://example.com/feed.xml"
refresh:
  interval: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/rookie/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/rookie/data")
	}
	if !cfg.Storage.HistoryEnabled {
		t.Error("Storage.HistoryEnabled = false, want true")
	}
	if cfg.State.Backend != "redis" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "redis")
	}

	// -- Server --
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 9090)
	}

	// -- HTTP --
	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("HTTP.Timeout = %v, want %v", cfg.HTTP.Timeout, 3*time.Second)
	}
	if cfg.HTTP.MaxAttempts != 4 {
		t.Errorf("HTTP.MaxAttempts = %d, want %d", cfg.HTTP.MaxAttempts, 4)
	}

	// -- Providers --
	if cfg.CoinGecko.APIKey != "cg-key" {
		t.Errorf("CoinGecko.APIKey = %q, want %q", cfg.CoinGecko.APIKey, "cg-key")
	}
	if cfg.CoinGecko.RateLimitPerMin != 10 {
		t.Errorf("CoinGecko.RateLimitPerMin = %d, want %d", cfg.CoinGecko.RateLimitPerMin, 10)
	}
	if cfg.CoinGecko.BaseURL != "https://api.coingecko.com/api/v3" {
		t.Errorf("CoinGecko.BaseURL = %q, want default", cfg.CoinGecko.BaseURL)
	}

	// -- Markets --
	if cfg.Markets.CryptoIDs != "bitcoin,ethereum" {
		t.Errorf("Markets.CryptoIDs = %q, want %q", cfg.Markets.CryptoIDs, "bitcoin,ethereum")
	}
	if cfg.Markets.Nasdaq != "AAPL" {
		t.Errorf("Markets.Nasdaq = %q, want %q", cfg.Markets.Nasdaq, "AAPL")
	}
	if cfg.Markets.BIST != BISTSymbols {
		t.Errorf("Markets.BIST = %q, want the default BIST list", cfg.Markets.BIST)
	}

	// -- News / Refresh --
	if len(cfg.News.RSSFeeds) != 1 {
		t.Fatalf("News.RSSFeeds has %d entries, want 1", len(cfg.News.RSSFeeds))
	}
	if cfg.Refresh.Interval != 30*time.Second {
		t.Errorf("Refresh.Interval = %v, want %v", cfg.Refresh.Interval, 30*time.Second)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.State.Backend != "sqlite" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "sqlite")
	}
	if cfg.Refresh.Interval != time.Minute {
		t.Errorf("Refresh.Interval = %v, want %v", cfg.Refresh.Interval, time.Minute)
	}
	if cfg.Search.Debounce != 500*time.Millisecond {
		t.Errorf("Search.Debounce = %v, want %v", cfg.Search.Debounce, 500*time.Millisecond)
	}
	if cfg.Markets.CryptoIDs != "" {
		t.Errorf("Markets.CryptoIDs = %q, want empty (top by market cap)", cfg.Markets.CryptoIDs)
	}
	if cfg.News.Limit != 20 {
		t.Errorf("News.Limit = %d, want %d", cfg.News.Limit, 20)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
fmp:
  api_key: "yaml-key"
moralis:
  api_key: "yaml-moralis"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("FMP_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("API_KEY", "legacy-gemini")
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("REFRESH_INTERVAL", "-1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.FMP.APIKey != "env-key" {
		t.Errorf("FMP.APIKey = %q, want %q (env override)", cfg.FMP.APIKey, "env-key")
	}
	// moralis key should remain from YAML since no env override was set.
	if cfg.Moralis.APIKey != "yaml-moralis" {
		t.Errorf("Moralis.APIKey = %q, want %q (from YAML)", cfg.Moralis.APIKey, "yaml-moralis")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Gemini.APIKey != "gemini" {
		t.Errorf("Gemini.APIKey = %q, want %q (GEMINI_API_KEY wins)", cfg.Gemini.APIKey, "gemini")
	}
	if cfg.Refresh.Interval != -time.Second {
		t.Errorf("Refresh.Interval = %v, want %v", cfg.Refresh.Interval, -time.Second)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/rookie.yaml"); err == nil {
		t.Fatal("Load() of a missing file returned nil error")
	}
}
