package indicator

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"rookie/internal/domain"
	"rookie/internal/store"
)

// Series sources.
const (
	SourceSparkline = "sparkline"
	SourceHistory   = "history"
	SourceChart     = "chart"
	SourceSynthetic = "synthetic"
)

// syntheticPoints is the length of the filler series.
const syntheticPoints = 24

// Series is a price series with its provenance. Synthetic series are
// display filler with no analytical meaning.
type Series struct {
	Points    []float64 `json:"points"`
	Source    string    `json:"source"`
	Synthetic bool      `json:"synthetic"`
}

// EquityHistory loads a real price series for an equity symbol, oldest
// first. It returns an empty series when none is available.
type EquityHistory interface {
	History(ctx context.Context, symbol string) []float64
}

// SeriesResolver picks the best available price series for an asset.
type SeriesResolver struct {
	history store.PriceHistory
	equity  EquityHistory
	rand    func() float64
	log     *slog.Logger
}

// NewSeriesResolver creates a SeriesResolver. Either source may be nil.
func NewSeriesResolver(history store.PriceHistory, equity EquityHistory, logger *slog.Logger) *SeriesResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesResolver{
		history: history,
		equity:  equity,
		rand:    rand.Float64,
		log:     logger.With("component", "series"),
	}
}

// Resolve tries, in order: the asset's sparkline, the recorded price
// history (when it holds at least Period points), the equity chart, and
// finally a synthetic 24-point random walk ending at the current price.
func (r *SeriesResolver) Resolve(ctx context.Context, a domain.Asset) Series {
	if len(a.Sparkline) > 0 {
		return Series{Points: a.Sparkline, Source: SourceSparkline}
	}

	if r.history != nil {
		pts, err := r.history.ReadSeries(ctx, a.ID, 0)
		if err != nil {
			r.log.Warn("reading price history failed", "asset", a.ID, "error", err)
		} else if len(pts) >= Period {
			return Series{Points: pts, Source: SourceHistory}
		}
	}

	if r.equity != nil && a.Class == domain.AssetClassStock {
		if pts := r.equity.History(ctx, a.Symbol); len(pts) > 0 {
			return Series{Points: pts, Source: SourceChart}
		}
	}

	return Series{Points: r.synthesize(a.CurrentPrice), Source: SourceSynthetic, Synthetic: true}
}

// synthesize walks backwards from price, moving up to 1% per step.
func (r *SeriesResolver) synthesize(price float64) []float64 {
	if price <= 0 {
		price = 10
	}
	pts := make([]float64, syntheticPoints)
	for i := syntheticPoints - 1; i >= 0; i-- {
		pts[i] = price
		price *= 1 - (r.rand()*0.02 - 0.01)
	}
	return pts
}
