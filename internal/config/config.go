package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the rookie tracker.
type Config struct {
	Storage   Storage       `yaml:"storage"`
	State     StateConfig   `yaml:"state"`
	Server    Server        `yaml:"server"`
	Logging   Logging       `yaml:"logging"`
	HTTP      HTTPClient    `yaml:"http"`
	CoinGecko Provider      `yaml:"coingecko"`
	FMP       Provider      `yaml:"fmp"`
	YapiKredi Provider      `yaml:"yapikredi"`
	Moralis   Provider      `yaml:"moralis"`
	Gemini    GeminiConfig  `yaml:"gemini"`
	Alpaca    Alpaca        `yaml:"alpaca"`
	Redis     Redis         `yaml:"redis"`
	Markets   MarketsConfig `yaml:"markets"`
	News      NewsConfig    `yaml:"news"`
	Refresh   RefreshConfig `yaml:"refresh"`
	Search    SearchConfig  `yaml:"search"`
}

// Storage holds paths for local persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`

	// HistoryEnabled turns on the Parquet price-history archive under DataDir.
	HistoryEnabled bool `yaml:"history_enabled"`
}

// StateConfig selects the key-value backend behind the state store.
type StateConfig struct {
	Backend string `yaml:"backend"` // "sqlite" (default) or "redis"
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`

	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPClient configures the shared outbound HTTP client.
type HTTPClient struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Provider holds the endpoint, credential and request budget for one
// third-party API.
type Provider struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// GeminiConfig configures the insight text generator.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	Model      string `yaml:"model"`
}

// Alpaca holds credentials for the optional equity history source.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Redis configures the optional redis state backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MarketsConfig lists the tracked instruments per dataset. Symbol lists are
// comma-joined as the quote provider expects them. An empty CryptoIDs
// fetches the top coins by market cap.
type MarketsConfig struct {
	CryptoIDs   string `yaml:"crypto_ids"`
	Nasdaq      string `yaml:"nasdaq"`
	NYSE        string `yaml:"nyse"`
	BIST        string `yaml:"bist"`
	PennyStocks string `yaml:"penny_stocks"`
}

// NewsConfig configures news sources.
type NewsConfig struct {
	Limit    int      `yaml:"limit"`
	RSSFeeds []string `yaml:"rss_feeds"`
}

// RefreshConfig controls the polling cadence. Zero selects the default of one
// minute; a negative interval disables recurring refresh.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SearchConfig controls the search resolver.
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a configuration with every default applied and env
// overrides honoured, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.FMP.APIKey = v
	}
	if v := os.Getenv("MORALIS_API_KEY"); v != "" {
		cfg.Moralis.APIKey = v
	}
	if v := os.Getenv("YAPIKREDI_BASE_URL"); v != "" {
		cfg.YapiKredi.BaseURL = v
	}

	// API_KEY is the name the original web client read the Gemini key from.
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Interval = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/rookie.db"
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "sqlite"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}
	if cfg.HTTP.MaxAttempts == 0 {
		cfg.HTTP.MaxAttempts = 2
	}
	if cfg.HTTP.RetryBackoff == 0 {
		cfg.HTTP.RetryBackoff = 500 * time.Millisecond
	}

	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.CoinGecko.RateLimitPerMin == 0 {
		cfg.CoinGecko.RateLimitPerMin = 30
	}
	if cfg.FMP.BaseURL == "" {
		cfg.FMP.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if cfg.FMP.RateLimitPerMin == 0 {
		cfg.FMP.RateLimitPerMin = 300
	}
	if cfg.YapiKredi.BaseURL == "" {
		cfg.YapiKredi.BaseURL = "https://api.yapikredi.com.tr/api/stockmarket/v1"
	}
	if cfg.Moralis.BaseURL == "" {
		cfg.Moralis.BaseURL = "https://deep-index.moralis.io/api/v2.2"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/"
	}
	if cfg.Gemini.APIVersion == "" {
		cfg.Gemini.APIVersion = "v1beta"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "rookie:"
	}

	if cfg.Markets.Nasdaq == "" {
		cfg.Markets.Nasdaq = NasdaqSymbols
	}
	if cfg.Markets.NYSE == "" {
		cfg.Markets.NYSE = NYSESymbols
	}
	if cfg.Markets.BIST == "" {
		cfg.Markets.BIST = BISTSymbols
	}
	if cfg.Markets.PennyStocks == "" {
		cfg.Markets.PennyStocks = PennyStocks
	}

	if cfg.News.Limit == 0 {
		cfg.News.Limit = 20
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 60 * time.Second
	}
	if cfg.Search.Debounce == 0 {
		cfg.Search.Debounce = 500 * time.Millisecond
	}
}
