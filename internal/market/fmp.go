package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"rookie/internal/domain"
)

// ErrProviderMessage is returned when FMP answers 200 with an error object.
var ErrProviderMessage = errors.New("provider returned an error message")

type fmpQuote struct {
	Symbol            Text   `json:"symbol"`
	Name              Text   `json:"name"`
	Price             Number `json:"price"`
	ChangesPercentage Number `json:"changesPercentage"`
	MarketCap         Number `json:"marketCap"`
	Volume            Number `json:"volume"`
}

// FMPImageURL returns the logo URL FMP serves for a ticker.
func FMPImageURL(symbol string) string {
	return "https://financialmodelingprep.com/image-stock/" + symbol + ".png"
}

// FetchQuotes returns FMP quotes for a comma-separated symbol list.
func (c *Client) FetchQuotes(ctx context.Context, symbols string) ([]domain.Asset, error) {
	return c.fetchQuotes(ctx, "quotes", symbols)
}

func (c *Client) fetchQuotes(ctx context.Context, source, symbols string) ([]domain.Asset, error) {
	symbols = strings.TrimSpace(symbols)
	if symbols == "" {
		return emptyAssets(), nil
	}

	data, err := c.transport.Get(ctx, ProviderFMP, c.fmpURL("/quote/"+escapeSymbols(symbols), nil), nil)
	if err != nil {
		c.log.Error("quote fetch failed", "source", source, "error", err)
		return emptyAssets(), err
	}

	var quotes []fmpQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		err = fmpShapeError(data, err)
		c.log.Error("quote fetch returned unexpected shape", "source", source, "error", err)
		return emptyAssets(), err
	}

	assets := make([]domain.Asset, 0, len(quotes))
	for _, q := range quotes {
		sym := q.Symbol.String()
		assets = append(assets, domain.Asset{
			ID:                    sym,
			Symbol:                strings.ToUpper(sym),
			Name:                  firstText(q.Name, q.Symbol),
			CurrentPrice:          nonNegative(q.Price.Float()),
			PriceChangePercent24h: q.ChangesPercentage.Float(),
			MarketCap:             nonNegative(q.MarketCap.Float()),
			Volume:                nonNegative(q.Volume.Float()),
			ImageURL:              FMPImageURL(sym),
			Sparkline:             []float64{},
			Class:                 domain.AssetClassStock,
		})
	}
	return assets, nil
}

func escapeSymbols(symbols string) string {
	parts := strings.Split(symbols, ",")
	for i, p := range parts {
		parts[i] = url.PathEscape(strings.TrimSpace(p))
	}
	return strings.Join(parts, ",")
}

// fmpShapeError distinguishes FMP's {"Error Message": "..."} reply from any
// other non-array body.
func fmpShapeError(data []byte, decodeErr error) error {
	var obj map[string]any
	if json.Unmarshal(data, &obj) == nil {
		if msg, ok := obj["Error Message"]; ok {
			return fmt.Errorf("%w: %v", ErrProviderMessage, msg)
		}
	}
	return fmt.Errorf("fmp: non-array response: %w", decodeErr)
}

type fmpBar struct {
	Date  string `json:"date"`
	Close Number `json:"close"`
}

// FetchChart returns hourly closes for symbol ordered oldest to newest.
func (c *Client) FetchChart(ctx context.Context, symbol string) ([]float64, error) {
	var bars []fmpBar
	path := "/historical-chart/1hour/" + url.PathEscape(strings.ToUpper(symbol))
	if err := c.transport.GetJSON(ctx, ProviderFMP, c.fmpURL(path, nil), nil, &bars); err != nil {
		c.log.Warn("chart fetch failed", "source", "chart", "symbol", symbol, "error", err)
		return []float64{}, err
	}

	// FMP lists newest first; "2006-01-02 15:04:05" sorts lexically.
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close.Float())
		}
	}
	return closes, nil
}
