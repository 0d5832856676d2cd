package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"rookie/internal/domain"
)

// SortField selects the column a market table is ordered by.
type SortField string

const (
	SortNone   SortField = ""
	SortName   SortField = "name"
	SortPrice  SortField = "price"
	SortChange SortField = "change"
	SortMcap   SortField = "mcap"
)

// SortDir is ascending or descending.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// ParseSort validates query-string sort parameters. An empty direction
// means descending.
func ParseSort(field, dir string) (SortField, SortDir, error) {
	f := SortField(strings.ToLower(field))
	switch f {
	case SortNone, SortName, SortPrice, SortChange, SortMcap:
	default:
		return "", "", fmt.Errorf("unknown sort field %q", field)
	}
	d := SortDir(strings.ToLower(dir))
	switch d {
	case "":
		d = Desc
	case Asc, Desc:
	default:
		return "", "", fmt.Errorf("unknown sort direction %q", dir)
	}
	return f, d, nil
}

// Sort returns a sorted copy of assets. Ties keep their input order.
// SortNone returns the input order unchanged. Name sorting compares
// symbols case-insensitively.
func Sort(assets []domain.Asset, field SortField, dir SortDir) []domain.Asset {
	out := append([]domain.Asset(nil), assets...)
	if field == SortNone {
		return out
	}

	less := func(a, b domain.Asset) bool {
		switch field {
		case SortName:
			return strings.ToLower(a.Symbol) < strings.ToLower(b.Symbol)
		case SortPrice:
			return a.CurrentPrice < b.CurrentPrice
		case SortChange:
			return a.PriceChangePercent24h < b.PriceChangePercent24h
		default:
			return a.MarketCap < b.MarketCap
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Asc {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// TopGainers returns the n assets with the highest 24h change.
func TopGainers(assets []domain.Asset, n int) []domain.Asset {
	sorted := Sort(assets, SortChange, Desc)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// WatchlistAssets filters merged to the watched IDs, keeping merged order.
// IDs with no matching asset are skipped.
func WatchlistAssets(merged []domain.Asset, watchlist []string) []domain.Asset {
	watched := make(map[string]struct{}, len(watchlist))
	for _, id := range watchlist {
		watched[id] = struct{}{}
	}
	out := make([]domain.Asset, 0, len(watchlist))
	for _, a := range merged {
		if _, ok := watched[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}
