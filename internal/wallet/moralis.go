// Package wallet reads Ethereum wallet balances from Moralis and values them
// with CoinGecko prices.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"rookie/internal/config"
	"rookie/internal/domain"
	"rookie/internal/market"
)

const (
	mainnetChain = "0x1"
	ethLogo      = "https://assets.coingecko.com/coins/images/279/small/ethereum.png"
)

// Holdings is the raw balance sheet of one wallet, native currency first.
type Holdings struct {
	NativeBalanceRaw string
	NativeBalanceETH float64
	Assets           []domain.WalletAsset
}

// BalanceSource returns the holdings of a wallet address.
type BalanceSource interface {
	Balances(ctx context.Context, address string) (*Holdings, error)
}

// Moralis reads balances from the Moralis EVM API.
type Moralis struct {
	transport *market.Transport
	provider  config.Provider
	log       *slog.Logger
}

var _ BalanceSource = (*Moralis)(nil)

// NewMoralis creates a Moralis balance source.
func NewMoralis(t *market.Transport, p config.Provider, logger *slog.Logger) *Moralis {
	if logger == nil {
		logger = slog.Default()
	}
	t.SetRateLimit(market.ProviderMoralis, p.RateLimitPerMin)
	return &Moralis{transport: t, provider: p, log: logger.With("component", "moralis")}
}

type moralisToken struct {
	TokenAddress market.Text          `json:"token_address"`
	Name         market.Text          `json:"name"`
	Symbol       market.Text          `json:"symbol"`
	Logo         market.Text          `json:"logo"`
	Thumbnail    market.Text          `json:"thumbnail"`
	Decimals     market.LooseNumber   `json:"decimals"`
	Balance      market.Text          `json:"balance"`
	PossibleSpam market.Lenient[bool] `json:"possible_spam"`
}

// Balances fetches the native balance and ERC20 balances of address.
func (m *Moralis) Balances(ctx context.Context, address string) (*Holdings, error) {
	header := http.Header{}
	header.Set("X-API-Key", m.provider.APIKey)
	base := strings.TrimRight(m.provider.BaseURL, "/") + "/" + url.PathEscape(address)

	var native struct {
		Balance market.Text `json:"balance"`
	}
	if err := m.transport.GetJSON(ctx, market.ProviderMoralis, base+"/balance?chain="+mainnetChain, header, &native); err != nil {
		m.log.Error("native balance fetch failed", "source", "wallet", "error", err)
		return nil, fmt.Errorf("native balance: %w", err)
	}

	var tokens []market.Lenient[moralisToken]
	if err := m.transport.GetJSON(ctx, market.ProviderMoralis, base+"/erc20?chain="+mainnetChain+"&exclude_spam=true", header, &tokens); err != nil {
		m.log.Error("erc20 balance fetch failed", "source", "wallet", "error", err)
		return nil, fmt.Errorf("erc20 balances: %w", err)
	}

	wei := native.Balance.String()
	if wei == "" {
		wei = "0"
	}
	eth := scale(wei, 18)

	h := &Holdings{
		NativeBalanceRaw: wei,
		NativeBalanceETH: eth.InexactFloat64(),
		Assets:           make([]domain.WalletAsset, 0, len(tokens)+1),
	}
	h.Assets = append(h.Assets, domain.WalletAsset{
		ContractAddress: domain.NativeAddress,
		Name:            "Ethereum",
		Symbol:          "ETH",
		Decimals:        18,
		Balance:         eth.StringFixed(4),
		LogoURL:         ethLogo,
	})
	for _, entry := range tokens {
		if !entry.OK {
			continue
		}
		tok := entry.V
		dec := int(tok.Decimals.Float())
		logo := tok.Logo.String()
		if logo == "" {
			logo = tok.Thumbnail.String()
		}
		h.Assets = append(h.Assets, domain.WalletAsset{
			ContractAddress: tok.TokenAddress.String(),
			Name:            tok.Name.String(),
			Symbol:          tok.Symbol.String(),
			Decimals:        dec,
			Balance:         scale(tok.Balance.String(), dec).StringFixed(4),
			LogoURL:         logo,
			PossibleSpam:    tok.PossibleSpam.V,
		})
	}
	return h, nil
}

// scale converts a smallest-unit integer string to human units. Unparseable
// input yields zero.
func scale(raw string, decimals int) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(int32(-decimals))
}
