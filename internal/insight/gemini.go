// Package insight generates short analyst-style texts for assets and the
// market with the Gemini API. Every failure degrades to a fixed message;
// nothing is cached or retried.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"rookie/internal/config"
	"rookie/internal/domain"
	"rookie/internal/market"
)

// Fixed replies.
const (
	AnalysisNoKey  = "AI Analysis Unavailable: API Key missing."
	AnalysisEmpty  = "Analysis could not be generated."
	AnalysisFailed = "AI Analysis temporarily unavailable."
	OutlookNoKey   = "Market Outlook Unavailable."
	OutlookEmpty   = "No outlook available."
	OutlookFailed  = "Market outlook unavailable."
)

const outlookPrompt = "Give me a very brief, bulleted global financial market outlook for today (Crypto, US Tech Stocks, Emerging Markets). Maximum 3 bullets."

const analysisPrompt = `You are a senior financial analyst. Provide a concise, professional investment summary for the following asset.
Focus on price action, volatility, and general market sentiment. Keep it under 100 words.

Asset: %s (%s)
Price: $%s
24h Change: %s%%
Type: %s`

// Client calls Gemini generateContent once per request.
type Client struct {
	api   *genai.Client // nil without an API key
	model string
	log   *slog.Logger
}

// NewClient creates a Client. Without an API key it makes no requests and
// every call returns the "unavailable" reply.
func NewClient(ctx context.Context, cfg config.GeminiConfig, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{model: cfg.Model, log: logger.With("component", "insight")}
	if cfg.APIKey == "" {
		return c, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	c.api = gc
	return c, nil
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool { return c.api != nil }

// AnalyzeAsset returns a short investment summary for a.
func (c *Client) AnalyzeAsset(ctx context.Context, a domain.Asset) string {
	if !c.Available() {
		return AnalysisNoKey
	}
	prompt := fmt.Sprintf(analysisPrompt,
		a.Name, a.Symbol,
		strconv.FormatFloat(a.CurrentPrice, 'f', -1, 64),
		strconv.FormatFloat(a.PriceChangePercent24h, 'f', -1, 64),
		a.Class,
	)
	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.log.Warn("asset analysis failed", "source", market.ProviderGemini, "asset", a.ID, "error", err)
		return AnalysisFailed
	}
	if text == "" {
		return AnalysisEmpty
	}
	return text
}

// MarketOutlook returns a brief bulleted outlook.
func (c *Client) MarketOutlook(ctx context.Context) string {
	if !c.Available() {
		return OutlookNoKey
	}
	text, err := c.generate(ctx, outlookPrompt)
	if err != nil {
		c.log.Warn("market outlook failed", "source", market.ProviderGemini, "error", err)
		return OutlookFailed
	}
	if text == "" {
		return OutlookEmpty
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
