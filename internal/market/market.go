package market

import (
	"log/slog"
	"net/url"
	"strings"

	"rookie/internal/config"
	"rookie/internal/domain"
)

// Client fetches and normalizes market data. Every Fetch method logs its own
// failures and returns an empty, non-nil slice together with the error, so
// callers that only look at the slice see "no data".
type Client struct {
	transport *Transport
	coingecko config.Provider
	fmp       config.Provider
	yapikredi config.Provider
	bist      string
	bars      BarSource
	log       *slog.Logger
}

// NewClient creates a Client over t and installs the provider rate limits
// from cfg.
func NewClient(t *Transport, cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	t.SetRateLimit(ProviderCoinGecko, cfg.CoinGecko.RateLimitPerMin)
	t.SetRateLimit(ProviderFMP, cfg.FMP.RateLimitPerMin)
	t.SetRateLimit(ProviderYapiKredi, cfg.YapiKredi.RateLimitPerMin)

	bist := cfg.Markets.BIST
	if bist == "" {
		bist = config.BISTSymbols
	}
	return &Client{
		transport: t,
		coingecko: cfg.CoinGecko,
		fmp:       cfg.FMP,
		yapikredi: cfg.YapiKredi,
		bist:      bist,
		log:       logger.With("component", "market"),
	}
}

// SetBarSource installs an optional daily-bar source used by History when
// the FMP chart is empty.
func (c *Client) SetBarSource(b BarSource) { c.bars = b }

// Transport returns the underlying transport for sibling fetchers.
func (c *Client) Transport() *Transport { return c.transport }

func (c *Client) coingeckoURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.coingecko.APIKey != "" {
		q.Set("x_cg_demo_api_key", c.coingecko.APIKey)
	}
	return joinURL(c.coingecko.BaseURL, path, q)
}

func (c *Client) fmpURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.fmp.APIKey != "" {
		q.Set("apikey", c.fmp.APIKey)
	}
	return joinURL(c.fmp.BaseURL, path, q)
}

func joinURL(base, path string, q url.Values) string {
	u := strings.TrimRight(base, "/") + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func emptyAssets() []domain.Asset { return []domain.Asset{} }
