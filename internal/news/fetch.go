// Package news provides market news fetching from multiple sources:
// FMP stock news, CoinGecko crypto news, and configured RSS feeds.
package news

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"rookie/internal/config"
	"rookie/internal/domain"
	"rookie/internal/market"
)

// Categories accepted by Fetch.
const (
	CategoryStocks = "stocks"
	CategoryCrypto = "crypto"
	CategoryRSS    = "rss"
)

const (
	cryptoFallbackImage = "https://assets.coingecko.com/coins/images/1/large/bitcoin.png"
	cryptoFallbackSite  = "Crypto News"
	cryptoSymbol        = "CRYPTO"
)

// Fetcher fetches news articles. Like the market fetchers, every method logs
// its failure and returns an empty, non-nil slice alongside the error.
type Fetcher struct {
	transport *market.Transport
	fmp       config.Provider
	coingecko config.Provider
	limit     int
	feeds     []string
	now       func() time.Time
	log       *slog.Logger
}

// NewFetcher creates a Fetcher over t.
func NewFetcher(t *market.Transport, cfg *config.Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.News.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Fetcher{
		transport: t,
		fmp:       cfg.FMP,
		coingecko: cfg.CoinGecko,
		limit:     limit,
		feeds:     validFeeds(cfg.News.RSSFeeds),
		now:       time.Now,
		log:       logger.With("component", "news"),
	}
}

func validFeeds(feeds []string) []string {
	out := make([]string, 0, len(feeds))
	for _, f := range feeds {
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			out = append(out, f)
		}
	}
	return out
}

// Fetch dispatches on category. Unknown categories return an error.
func (f *Fetcher) Fetch(ctx context.Context, category string) ([]domain.NewsArticle, error) {
	switch strings.ToLower(category) {
	case "", CategoryStocks:
		return f.FetchMarketNews(ctx)
	case CategoryCrypto:
		return f.FetchCryptoNews(ctx)
	case CategoryRSS:
		return f.FetchRSS(ctx)
	default:
		return []domain.NewsArticle{}, fmt.Errorf("unknown news category %q", category)
	}
}

// --- FMP ---

type fmpArticle struct {
	Title         string `json:"title"`
	Image         string `json:"image"`
	Site          string `json:"site"`
	Text          string `json:"text"`
	URL           string `json:"url"`
	PublishedDate string `json:"publishedDate"`
	Symbol        string `json:"symbol"`
}

// FetchMarketNews fetches general stock market news from FMP.
func (f *Fetcher) FetchMarketNews(ctx context.Context) ([]domain.NewsArticle, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.limit))
	if f.fmp.APIKey != "" {
		q.Set("apikey", f.fmp.APIKey)
	}
	u := strings.TrimRight(f.fmp.BaseURL, "/") + "/stock_news?" + q.Encode()

	var items []fmpArticle
	if err := f.transport.GetJSON(ctx, market.ProviderFMP, u, nil, &items); err != nil {
		f.log.Error("stock news fetch failed", "source", "news", "error", err)
		return []domain.NewsArticle{}, err
	}

	articles := make([]domain.NewsArticle, 0, len(items))
	for _, it := range items {
		articles = append(articles, domain.NewsArticle{
			Title:         it.Title,
			ImageURL:      it.Image,
			Site:          it.Site,
			Body:          it.Text,
			URL:           it.URL,
			PublishedAt:   it.PublishedDate,
			RelatedSymbol: it.Symbol,
		})
	}
	return articles, nil
}

// --- CoinGecko ---

type coingeckoNews struct {
	Data []struct {
		Title        string        `json:"title"`
		Description  string        `json:"description"`
		URL          string        `json:"url"`
		Thumb2x      string        `json:"thumb_2x"`
		NewsSiteLong string        `json:"news_site_long"`
		UpdatedAt    market.Number `json:"updated_at"`
	} `json:"data"`
}

// FetchCryptoNews fetches crypto news from CoinGecko.
func (f *Fetcher) FetchCryptoNews(ctx context.Context) ([]domain.NewsArticle, error) {
	u := strings.TrimRight(f.coingecko.BaseURL, "/") + "/news"
	if f.coingecko.APIKey != "" {
		u += "?x_cg_demo_api_key=" + url.QueryEscape(f.coingecko.APIKey)
	}

	var resp coingeckoNews
	if err := f.transport.GetJSON(ctx, market.ProviderCoinGecko, u, nil, &resp); err != nil {
		f.log.Error("crypto news fetch failed", "source", "news", "error", err)
		return []domain.NewsArticle{}, err
	}

	articles := make([]domain.NewsArticle, 0, len(resp.Data))
	for _, it := range resp.Data {
		published := f.now()
		if it.UpdatedAt > 0 {
			published = time.Unix(int64(it.UpdatedAt), 0)
		}
		articles = append(articles, domain.NewsArticle{
			Title:         it.Title,
			ImageURL:      orDefault(it.Thumb2x, cryptoFallbackImage),
			Site:          orDefault(it.NewsSiteLong, cryptoFallbackSite),
			Body:          it.Description,
			URL:           it.URL,
			PublishedAt:   published.UTC().Format(time.RFC3339),
			RelatedSymbol: cryptoSymbol,
		})
	}
	return articles, nil
}

// --- RSS ---

// FetchRSS fetches every configured feed concurrently. A failing feed is
// logged and skipped; the error is returned only when every feed failed.
func (f *Fetcher) FetchRSS(ctx context.Context) ([]domain.NewsArticle, error) {
	if len(f.feeds) == 0 {
		return []domain.NewsArticle{}, nil
	}

	results := make([][]domain.NewsArticle, len(f.feeds))
	errs := make([]error, len(f.feeds))
	var wg sync.WaitGroup
	for i, feedURL := range f.feeds {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()
			results[i], errs[i] = f.fetchFeed(ctx, feedURL)
			if errs[i] != nil {
				f.log.Warn("rss feed failed", "source", "rss", "feed", feedURL, "error", errs[i])
			}
		}(i, feedURL)
	}
	wg.Wait()

	articles := []domain.NewsArticle{}
	var lastErr error
	failed := 0
	for i := range f.feeds {
		if errs[i] != nil {
			failed++
			lastErr = errs[i]
			continue
		}
		articles = append(articles, results[i]...)
	}
	if failed == len(f.feeds) {
		return articles, lastErr
	}
	if len(articles) > f.limit {
		articles = articles[:f.limit]
	}
	return articles, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) ([]domain.NewsArticle, error) {
	data, err := f.transport.Get(ctx, market.ProviderRSS, feedURL, nil)
	if err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	articles := make([]domain.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		published := ""
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		image := ""
		if item.Image != nil {
			image = item.Image.URL
		}
		articles = append(articles, domain.NewsArticle{
			Title:       strings.TrimSpace(item.Title),
			ImageURL:    image,
			Site:        feed.Title,
			Body:        StripHTML(item.Description),
			URL:         item.Link,
			PublishedAt: published,
		})
	}
	return articles, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// --- HTML helpers ---

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags and normalizes whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
