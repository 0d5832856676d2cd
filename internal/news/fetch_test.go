package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rookie/internal/config"
	"rookie/internal/market"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Markets Daily</title>
<item><title> Stocks rally </title><link>https://example.com/a</link>
<description>&lt;p&gt;Tech &lt;b&gt;leads&lt;/b&gt; gains&lt;/p&gt;</description>
<pubDate>Tue, 02 Jan 2024 15:04:05 +0000</pubDate></item>
</channel></rss>`

func newTestFetcher(t *testing.T, h http.Handler, feeds ...string) (*Fetcher, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		HTTP:      config.HTTPClient{Timeout: 2 * time.Second, MaxAttempts: 1},
		FMP:       config.Provider{BaseURL: srv.URL, APIKey: "k"},
		CoinGecko: config.Provider{BaseURL: srv.URL},
		News:      config.NewsConfig{Limit: 5, RSSFeeds: feeds},
	}
	f := NewFetcher(market.NewTransport(cfg.HTTP, nil), cfg, nil)
	f.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return f, srv.URL
}

func TestFetchMarketNews(t *testing.T) {
	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock_news" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `[{"title":"Apple beats","site":"Reuters","text":"body","url":"u","publishedDate":"2024-01-02 10:00:00","symbol":"AAPL"}]`)
	}))

	articles, err := f.Fetch(context.Background(), CategoryStocks)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if a := articles[0]; a.RelatedSymbol != "AAPL" || a.Body != "body" || a.PublishedAt != "2024-01-02 10:00:00" {
		t.Errorf("article = %+v", a)
	}
}

func TestFetchCryptoNewsFallbacks(t *testing.T) {
	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"title":"BTC up","url":"u1","updated_at":1704207845},
			{"title":"ETH flat","url":"u2","thumb_2x":"img","news_site_long":"CoinDesk"}
		]}`)
	}))

	articles, err := f.FetchCryptoNews(context.Background())
	if err != nil {
		t.Fatalf("FetchCryptoNews: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	first := articles[0]
	if first.ImageURL != cryptoFallbackImage || first.Site != "Crypto News" || first.RelatedSymbol != "CRYPTO" {
		t.Errorf("fallbacks not applied: %+v", first)
	}
	if first.PublishedAt != "2024-01-02T15:04:05Z" {
		t.Errorf("PublishedAt = %q, want 2024-01-02T15:04:05Z", first.PublishedAt)
	}
	if second := articles[1]; second.PublishedAt != "2024-05-01T00:00:00Z" || second.Site != "CoinDesk" {
		t.Errorf("second = %+v, want now timestamp and provider site", second)
	}
}

func TestFetchFailureReturnsEmpty(t *testing.T) {
	f, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for _, cat := range []string{CategoryStocks, CategoryCrypto} {
		articles, err := f.Fetch(context.Background(), cat)
		if err == nil {
			t.Errorf("%s: expected error", cat)
		}
		if articles == nil || len(articles) != 0 {
			t.Errorf("%s: articles = %v, want empty non-nil", cat, articles)
		}
	}
}

func TestFetchUnknownCategory(t *testing.T) {
	f, _ := newTestFetcher(t, http.NotFoundHandler())
	if _, err := f.Fetch(context.Background(), "forex"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestFetchRSS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRSS)
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &config.Config{
		HTTP: config.HTTPClient{Timeout: 2 * time.Second, MaxAttempts: 1},
		News: config.NewsConfig{RSSFeeds: []string{srv.URL + "/feed.xml", srv.URL + "/broken.xml", "ftp://skipped"}},
	}
	f := NewFetcher(market.NewTransport(cfg.HTTP, nil), cfg, nil)
	if len(f.feeds) != 2 {
		t.Fatalf("feeds = %v, want non-http feeds dropped", f.feeds)
	}

	articles, err := f.FetchRSS(context.Background())
	if err != nil {
		t.Fatalf("FetchRSS: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	a := articles[0]
	if a.Title != "Stocks rally" || a.Site != "Markets Daily" || a.Body != "Tech leads gains" {
		t.Errorf("article = %+v", a)
	}
	if a.PublishedAt != "2024-01-02T15:04:05Z" {
		t.Errorf("PublishedAt = %q", a.PublishedAt)
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<p>Hello&amp;  <i>world</i></p>")
	if got != "Hello& world" {
		t.Errorf("StripHTML = %q, want %q", got, "Hello& world")
	}
}
