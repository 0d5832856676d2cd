package market

import (
	"context"
	"net/url"
	"strings"

	"rookie/internal/domain"
)

type sparkline struct {
	Price []Number `json:"price"`
}

type coinMarket struct {
	ID                       Text               `json:"id"`
	Symbol                   Text               `json:"symbol"`
	Name                     Text               `json:"name"`
	Image                    Text               `json:"image"`
	CurrentPrice             Number             `json:"current_price"`
	MarketCap                Number             `json:"market_cap"`
	TotalVolume              Number             `json:"total_volume"`
	PriceChangePercentage24h Number             `json:"price_change_percentage_24h"`
	SparklineIn7d            Lenient[sparkline] `json:"sparkline_in_7d"`
}

// FetchCrypto returns the CoinGecko market list. An empty ids returns the
// top coins by market cap.
func (c *Client) FetchCrypto(ctx context.Context, ids string) ([]domain.Asset, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", "250")
	q.Set("page", "1")
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "24h")
	if strings.TrimSpace(ids) != "" {
		q.Set("ids", ids)
	}

	var coins []Lenient[coinMarket]
	if err := c.transport.GetJSON(ctx, ProviderCoinGecko, c.coingeckoURL("/coins/markets", q), nil, &coins); err != nil {
		c.log.Error("crypto fetch failed", "source", "crypto", "error", err)
		return emptyAssets(), err
	}

	assets := make([]domain.Asset, 0, len(coins))
	for _, entry := range coins {
		if !entry.OK {
			continue
		}
		coin := entry.V
		spark := floats(coin.SparklineIn7d.V.Price)
		assets = append(assets, domain.Asset{
			ID:                    coin.ID.String(),
			Symbol:                strings.ToUpper(coin.Symbol.String()),
			Name:                  coin.Name.String(),
			CurrentPrice:          nonNegative(coin.CurrentPrice.Float()),
			PriceChangePercent24h: coin.PriceChangePercentage24h.Float(),
			MarketCap:             nonNegative(coin.MarketCap.Float()),
			Volume:                nonNegative(coin.TotalVolume.Float()),
			ImageURL:              coin.Image.String(),
			Sparkline:             spark,
			Class:                 domain.AssetClassCrypto,
		})
	}
	return assets, nil
}

type usdValue struct {
	USD Number `json:"usd"`
}

type trendingData struct {
	Price                    LooseNumber       `json:"price"`
	MarketCap                LooseNumber       `json:"market_cap"`
	PriceChangePercentage24h Lenient[usdValue] `json:"price_change_percentage_24h"`
}

type trendingItem struct {
	ID     Text                  `json:"id"`
	Symbol Text                  `json:"symbol"`
	Name   Text                  `json:"name"`
	Large  Text                  `json:"large"`
	Thumb  Text                  `json:"thumb"`
	Data   Lenient[trendingData] `json:"data"`
}

type trendingResponse struct {
	Coins []struct {
		Item Lenient[trendingItem] `json:"item"`
	} `json:"coins"`
}

// FetchTrending returns CoinGecko's trending coins. Prices and market caps
// may arrive as currency strings; volume is not provided and is always 0.
func (c *Client) FetchTrending(ctx context.Context) ([]domain.Asset, error) {
	var resp trendingResponse
	if err := c.transport.GetJSON(ctx, ProviderCoinGecko, c.coingeckoURL("/search/trending", nil), nil, &resp); err != nil {
		c.log.Error("trending fetch failed", "source", "trending", "error", err)
		return emptyAssets(), err
	}

	assets := make([]domain.Asset, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		if !coin.Item.OK {
			continue
		}
		item, data := coin.Item.V, coin.Item.V.Data.V
		assets = append(assets, domain.Asset{
			ID:                    item.ID.String(),
			Symbol:                item.Symbol.String(),
			Name:                  item.Name.String(),
			CurrentPrice:          nonNegative(data.Price.Float()),
			PriceChangePercent24h: data.PriceChangePercentage24h.V.USD.Float(),
			MarketCap:             nonNegative(data.MarketCap.Float()),
			ImageURL:              firstText(item.Large, item.Thumb),
			Sparkline:             []float64{},
			Class:                 domain.AssetClassCrypto,
		})
	}
	return assets, nil
}

// TokenPrice is a USD spot price and market cap. Zero means unknown.
type TokenPrice struct {
	Price     float64
	MarketCap float64
}

type simplePrice struct {
	USD          Number `json:"usd"`
	USDMarketCap Number `json:"usd_market_cap"`
}

// FetchEthereumPrice returns the ETH spot price and market cap.
func (c *Client) FetchEthereumPrice(ctx context.Context) (TokenPrice, error) {
	q := url.Values{}
	q.Set("ids", "ethereum")
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")

	var resp map[string]simplePrice
	if err := c.transport.GetJSON(ctx, ProviderCoinGecko, c.coingeckoURL("/simple/price", q), nil, &resp); err != nil {
		c.log.Error("ethereum price fetch failed", "source", "prices", "error", err)
		return TokenPrice{}, err
	}
	eth := resp["ethereum"]
	return TokenPrice{Price: eth.USD.Float(), MarketCap: eth.USDMarketCap.Float()}, nil
}

// FetchTokenPrices returns Ethereum token prices keyed by lowercase contract
// address. An empty address list returns an empty map without a request.
func (c *Client) FetchTokenPrices(ctx context.Context, addresses []string) (map[string]TokenPrice, error) {
	out := make(map[string]TokenPrice)
	if len(addresses) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("contract_addresses", strings.Join(addresses, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")

	var resp map[string]*simplePrice
	if err := c.transport.GetJSON(ctx, ProviderCoinGecko, c.coingeckoURL("/simple/token_price/ethereum", q), nil, &resp); err != nil {
		c.log.Error("token price fetch failed", "source", "prices", "count", len(addresses), "error", err)
		return out, err
	}
	for addr, p := range resp {
		if p == nil {
			continue
		}
		out[strings.ToLower(addr)] = TokenPrice{Price: p.USD.Float(), MarketCap: p.USDMarketCap.Float()}
	}
	return out, nil
}
