// Package market fetches crypto and equity data from CoinGecko, Financial
// Modeling Prep, Yapi Kredi and Alpaca and normalizes it into domain.Asset
// records.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"rookie/internal/config"
	"rookie/internal/util"
)

// Provider names used for rate limiting and log attributes.
const (
	ProviderCoinGecko = "coingecko"
	ProviderFMP       = "fmp"
	ProviderYapiKredi = "yapikredi"
	ProviderMoralis   = "moralis"
	ProviderGemini    = "gemini"
	ProviderRSS       = "rss"
)

const maxBodyBytes = 8 << 20

// StatusError reports a non-2xx response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

// Transport is the outbound HTTP layer shared by every fetcher. Requests
// are rate limited per provider, and transport errors and 5xx responses are
// retried with exponential backoff.
type Transport struct {
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	limiters map[string]*util.RateLimiter
}

// NewTransport creates a Transport from the http section of the config.
func NewTransport(cfg config.HTTPClient, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		log:         logger.With("component", "transport"),
		limiters:    make(map[string]*util.RateLimiter),
	}
}

// SetRateLimit installs a per-minute budget for provider. A non-positive
// value removes the limit.
func (t *Transport) SetRateLimit(provider string, perMinute int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if perMinute <= 0 {
		delete(t.limiters, provider)
		return
	}
	t.limiters[provider] = util.NewRateLimiter(perMinute)
}

func (t *Transport) limiter(provider string) *util.RateLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limiters[provider]
}

// Get performs a GET request and returns the response body of a 2xx reply.
func (t *Transport) Get(ctx context.Context, provider, url string, header http.Header) ([]byte, error) {
	return t.Do(ctx, provider, http.MethodGet, url, header, nil)
}

// Do performs a request with an optional body. The body is re-sent on each
// retry attempt.
func (t *Transport) Do(ctx context.Context, provider, method, url string, header http.Header, body []byte) ([]byte, error) {
	var out []byte
	err := util.Retry(ctx, t.maxAttempts, t.backoff, func() error {
		if err := t.limiter(provider).Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return util.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			t.log.Debug("request failed, retrying", "provider", provider, "error", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &StatusError{Provider: provider, Code: resp.StatusCode, Body: truncate(string(data), 200)}
			if resp.StatusCode >= 500 {
				return serr
			}
			return util.Permanent(serr)
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetJSON performs a GET request and decodes the JSON reply into v.
func (t *Transport) GetJSON(ctx context.Context, provider, url string, header http.Header, v any) error {
	data, err := t.Get(ctx, provider, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
