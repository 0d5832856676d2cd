// Package domain defines the canonical records shared by every rookie
// component: assets, wallet holdings, news articles and price alerts.
package domain

import "time"

// AssetClass distinguishes crypto coins from equities.
type AssetClass string

const (
	AssetClassCrypto AssetClass = "CRYPTO"
	AssetClassStock  AssetClass = "STOCK"
)

// NativeAddress is the contract-address sentinel used for the chain's native
// currency (ETH on Ethereum mainnet).
const NativeAddress = "0x0000000000000000000000000000000000000000"

// Asset is the canonical tradable-instrument record. Numeric fields are
// always finite; 0 means unknown.
type Asset struct {
	ID                    string     `json:"id"`
	Symbol                string     `json:"symbol"`
	Name                  string     `json:"name"`
	CurrentPrice          float64    `json:"current_price"`
	PriceChangePercent24h float64    `json:"price_change_percentage_24h"`
	MarketCap             float64    `json:"market_cap"`
	Volume                float64    `json:"volume"`
	ImageURL              string     `json:"image,omitempty"`
	Sparkline             []float64  `json:"sparkline"`
	Class                 AssetClass `json:"type"`
}

// WalletAsset is a single token or native-currency holding.
type WalletAsset struct {
	ContractAddress string  `json:"token_address"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	Decimals        int     `json:"decimals"`
	Balance         string  `json:"balance"` // human units, 4 decimal places
	LogoURL         string  `json:"logo,omitempty"`
	PossibleSpam    bool    `json:"possible_spam,omitempty"`
	PriceUSD        float64 `json:"price_usd"`
	ValueUSD        float64 `json:"value_usd"`
	MarketCapUSD    float64 `json:"market_cap_usd"`
}

// WalletPortfolio is one wallet's holdings snapshot.
type WalletPortfolio struct {
	Address                string        `json:"address"`
	NativeBalanceRaw       string        `json:"native_balance"`           // wei
	NativeBalanceFormatted float64       `json:"native_balance_formatted"` // ETH
	TotalNetWorthUSD       float64       `json:"total_net_worth"`
	Assets                 []WalletAsset `json:"assets"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// NewsArticle is one headline from a news source. Duplicates across
// refreshes are possible.
type NewsArticle struct {
	Title         string `json:"title"`
	ImageURL      string `json:"image"`
	Site          string `json:"site"`
	Body          string `json:"text"`
	URL           string `json:"url"`
	PublishedAt   string `json:"published_date"`
	RelatedSymbol string `json:"symbol"`
}

// AlertDirection records which side of the creation-time price a target
// sits on.
type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// Alert is a user-defined price target for one asset.
type Alert struct {
	ID          string         `json:"id"`
	AssetID     string         `json:"asset_id"`
	Symbol      string         `json:"symbol"`
	TargetPrice float64        `json:"target_price"`
	Direction   AlertDirection `json:"direction"`
	CreatedAt   time.Time      `json:"created_at"`
}

// User is the locally persisted mock login record.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
