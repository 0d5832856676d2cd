package market

import (
	"context"
	"encoding/json"
	"errors"

	"rookie/internal/domain"
)

var errBISTShape = errors.New("yapikredi: response is neither an array nor an object with a data array")

type bistRow struct {
	Symbol        Text   `json:"symbol"`
	Code          Text   `json:"code"`
	Name          Text   `json:"name"`
	Description   Text   `json:"description"`
	LastPrice     Number `json:"lastPrice"`
	Price         Number `json:"price"`
	ChangePercent Number `json:"changePercent"`
	DailyChange   Number `json:"dailyChange"`
	MarketCap     Number `json:"marketCap"`
	Volume        Number `json:"volume"`
}

// FetchBIST returns Borsa Istanbul quotes from Yapi Kredi. Any failure of
// the primary source falls back to FMP quotes for the configured BIST list.
// A valid but empty primary reply is accepted as is.
func (c *Client) FetchBIST(ctx context.Context) ([]domain.Asset, error) {
	assets, err := c.fetchYapiKredi(ctx)
	if err == nil {
		return assets, nil
	}
	c.log.Warn("yapikredi failed, falling back to fmp", "source", "bist", "error", err)
	return c.fetchQuotes(ctx, "bist", c.bist)
}

func (c *Client) fetchYapiKredi(ctx context.Context) ([]domain.Asset, error) {
	data, err := c.transport.Get(ctx, ProviderYapiKredi, joinURL(c.yapikredi.BaseURL, "/stocks/list", nil), nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeBISTRows(data)
	if err != nil {
		return nil, err
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, r := range rows {
		sym := firstText(r.Symbol, r.Code)
		assets = append(assets, domain.Asset{
			ID:                    sym,
			Symbol:                sym,
			Name:                  firstText(r.Name, r.Description, r.Symbol),
			CurrentPrice:          nonNegative(firstNonZero(r.LastPrice, r.Price)),
			PriceChangePercent24h: firstNonZero(r.ChangePercent, r.DailyChange),
			MarketCap:             nonNegative(r.MarketCap.Float()),
			Volume:                nonNegative(r.Volume.Float()),
			Sparkline:             []float64{},
			Class:                 domain.AssetClassStock,
		})
	}
	return assets, nil
}

func decodeBISTRows(data []byte) ([]bistRow, error) {
	var rows []bistRow
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var wrapped struct {
		Data *[]bistRow `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Data == nil {
		return nil, errBISTShape
	}
	return *wrapped.Data, nil
}
