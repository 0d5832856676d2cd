package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"rookie/internal/domain"
	"rookie/internal/market"
)

var (
	// ErrInvalidAddress is returned for input that is not a 0x-prefixed
	// 40-hex-digit address. No request is made.
	ErrInvalidAddress = errors.New("invalid Ethereum address: want 0x followed by 40 hex digits")

	// ErrWalletUnavailable is returned when balances cannot be fetched.
	ErrWalletUnavailable = errors.New("could not fetch wallet data, check the address or API availability")
)

// PriceSource supplies USD prices for the native currency and for tokens
// keyed by lowercase contract address.
type PriceSource interface {
	FetchEthereumPrice(ctx context.Context) (market.TokenPrice, error)
	FetchTokenPrices(ctx context.Context, addresses []string) (map[string]market.TokenPrice, error)
}

// AddressStore persists the last valued wallet address.
type AddressStore interface {
	WalletAddress() string
	SetWalletAddress(address string) error
	ClearWalletAddress() error
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// IsNative reports whether a holding is the chain's native currency.
func IsNative(a domain.WalletAsset) bool {
	return isZeroAddress(a.ContractAddress) || a.Symbol == "ETH"
}

func isZeroAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) == (common.Address{})
}

// Valuator joins wallet balances with spot prices. It holds at most one
// portfolio, replaced wholesale on every successful load.
type Valuator struct {
	balances BalanceSource
	prices   PriceSource
	store    AddressStore
	now      func() time.Time
	log      *slog.Logger

	mu        sync.Mutex
	seq       uint64
	portfolio *domain.WalletPortfolio
}

// NewValuator creates a Valuator. store may be nil, in which case the
// address is not persisted.
func NewValuator(b BalanceSource, p PriceSource, store AddressStore, logger *slog.Logger) *Valuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Valuator{
		balances: b,
		prices:   p,
		store:    store,
		now:      time.Now,
		log:      logger.With("component", "valuator"),
	}
}

// Portfolio returns the current portfolio, or nil when none is loaded.
func (v *Valuator) Portfolio() *domain.WalletPortfolio {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.portfolio == nil {
		return nil
	}
	p := *v.portfolio
	p.Assets = append([]domain.WalletAsset(nil), v.portfolio.Assets...)
	return &p
}

// Load values the wallet at address and replaces the current portfolio. On
// failure the previous portfolio is left untouched. When loads overlap only
// the most recently started one is published.
func (v *Valuator) Load(ctx context.Context, address string) (*domain.WalletPortfolio, error) {
	address = strings.TrimSpace(address)
	if !ValidAddress(address) {
		return nil, ErrInvalidAddress
	}

	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.mu.Unlock()

	h, err := v.balances.Balances(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWalletUnavailable, err)
	}

	p := v.value(ctx, address, h)

	v.mu.Lock()
	if seq != v.seq {
		v.mu.Unlock()
		v.log.Debug("discarding superseded wallet load", "address", address)
		return p, nil
	}
	v.portfolio = p
	v.mu.Unlock()

	if v.store != nil {
		if err := v.store.SetWalletAddress(address); err != nil {
			v.log.Warn("failed to persist wallet address", "error", err)
		}
	}
	v.log.Info("wallet valued", "address", address, "assets", len(p.Assets), "total_usd", p.TotalNetWorthUSD)
	return p, nil
}

// Reload values the persisted address. It returns nil without error when no
// address is stored.
func (v *Valuator) Reload(ctx context.Context) (*domain.WalletPortfolio, error) {
	if v.store == nil {
		return nil, nil
	}
	addr := v.store.WalletAddress()
	if addr == "" {
		return nil, nil
	}
	return v.Load(ctx, addr)
}

// Disconnect forgets the persisted address and the in-memory portfolio.
func (v *Valuator) Disconnect() error {
	v.mu.Lock()
	v.seq++
	v.portfolio = nil
	v.mu.Unlock()
	if v.store == nil {
		return nil
	}
	return v.store.ClearWalletAddress()
}

func (v *Valuator) value(ctx context.Context, address string, h *Holdings) *domain.WalletPortfolio {
	var tokenAddrs []string
	for _, a := range h.Assets {
		if !IsNative(a) && a.ContractAddress != "" {
			tokenAddrs = append(tokenAddrs, strings.ToLower(a.ContractAddress))
		}
	}

	// Price failures degrade to zero prices; the fetchers log them.
	var (
		eth    market.TokenPrice
		tokens map[string]market.TokenPrice
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		eth, err = v.prices.FetchEthereumPrice(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		tokens, err = v.prices.FetchTokenPrices(ctx, tokenAddrs)
		return err
	})
	if err := g.Wait(); err != nil {
		v.log.Warn("price join incomplete", "address", address, "error", err)
	}

	assets := make([]domain.WalletAsset, len(h.Assets))
	total := 0.0
	for i, a := range h.Assets {
		var price market.TokenPrice
		if IsNative(a) {
			price = eth
		} else if tokens != nil {
			price = tokens[strings.ToLower(a.ContractAddress)]
		}
		a.PriceUSD = price.Price
		a.MarketCapUSD = price.MarketCap

		bal, err := strconv.ParseFloat(a.Balance, 64)
		val := bal * price.Price
		if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
			val = 0
		} else {
			total += val
		}
		a.ValueUSD = val
		assets[i] = a
	}
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].ValueUSD > assets[j].ValueUSD })

	return &domain.WalletPortfolio{
		Address:                address,
		NativeBalanceRaw:       h.NativeBalanceRaw,
		NativeBalanceFormatted: h.NativeBalanceETH,
		TotalNetWorthUSD:       total,
		Assets:                 assets,
		UpdatedAt:              v.now(),
	}
}
