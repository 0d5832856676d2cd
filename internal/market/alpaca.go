package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"rookie/internal/config"
)

// BarSource returns daily closes for an equity, oldest first.
type BarSource interface {
	DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error)
}

// AlpacaBars reads daily bars from the Alpaca market-data API.
type AlpacaBars struct {
	client *marketdata.Client
	now    func() time.Time
}

var _ BarSource = (*AlpacaBars)(nil)

// NewAlpacaBars returns nil when no credentials are configured.
func NewAlpacaBars(cfg config.Alpaca) *AlpacaBars {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return &AlpacaBars{client: marketdata.NewClient(opts), now: time.Now}
}

// DailyCloses fetches roughly days calendar days of IEX daily bars.
func (a *AlpacaBars) DailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	end := a.now()
	bars, err := a.client.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.AddDate(0, 0, -days),
		End:       end,
		Feed:      "iex",
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		closes = append(closes, b.Close)
	}
	return closes, nil
}

// History returns a real equity price series: FMP hourly closes, then
// Alpaca daily closes when FMP has nothing. The result may be empty.
func (c *Client) History(ctx context.Context, symbol string) []float64 {
	closes, _ := c.FetchChart(ctx, symbol)
	if len(closes) > 0 || c.bars == nil {
		return closes
	}
	closes, err := c.bars.DailyCloses(ctx, symbol, 45)
	if err != nil {
		c.log.Warn("alpaca bars failed", "source", "chart", "symbol", symbol, "error", err)
		return []float64{}
	}
	return closes
}
