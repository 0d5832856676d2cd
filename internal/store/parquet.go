package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"rookie/internal/domain"
)

// Compile-time interface check.
var _ PriceHistory = (*ParquetHistory)(nil)

// ParquetHistory implements PriceHistory using Parquet files on disk, one
// file per asset per month.
type ParquetHistory struct {
	DataDir string

	// MaxMonths bounds how far back ReadSeries looks.
	MaxMonths int

	now func() time.Time
	mu  sync.Mutex
}

// NewParquetHistory creates a ParquetHistory rooted at the given data
// directory.
func NewParquetHistory(dataDir string) *ParquetHistory {
	return &ParquetHistory{DataDir: dataDir, MaxMonths: 3, now: time.Now}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// PriceRecord is the Parquet schema for one observed price.
type PriceRecord struct {
	AssetID   string  `parquet:"asset_id"`
	Class     string  `parquet:"class"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
}

// AppendPrices writes one record per asset with a positive price, merged
// into <DataDir>/history/<ASSET>/<YYYY-MM>.parquet. Re-recording the same
// asset and timestamp replaces the earlier value.
func (h *ParquetHistory) AppendPrices(_ context.Context, at time.Time, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	at = at.UTC()
	ts := at.UnixMilli()

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a.ID == "" || a.CurrentPrice <= 0 || seen[a.ID] {
			continue
		}
		seen[a.ID] = true

		path := h.historyPath(a.ID, at)
		existing, _ := readParquetFile[PriceRecord](path)
		merged := mergePriceRecords(existing, []PriceRecord{{
			AssetID:   a.ID,
			Class:     string(a.Class),
			Timestamp: ts,
			Price:     a.CurrentPrice,
		}})
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing history for %s: %w", a.ID, err)
		}
	}
	return nil
}

// ReadSeries reads the current month and up to MaxMonths-1 earlier months
// and returns the last limit prices, oldest first. Missing files yield an
// empty series.
func (h *ParquetHistory) ReadSeries(_ context.Context, assetID string, limit int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	months := h.MaxMonths
	if months < 1 {
		months = 1
	}
	clock := h.now
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var records []PriceRecord
	for i := months - 1; i >= 0; i-- {
		recs, err := readParquetFile[PriceRecord](h.historyPath(assetID, first.AddDate(0, -i, 0)))
		if err != nil {
			// No file for this month.
			continue
		}
		records = append(records, recs...)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	series := make([]float64, len(records))
	for i, r := range records {
		series[i] = r.Price
	}
	return series, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// historyPath returns the filesystem path for a history Parquet file.
// Layout: <dataDir>/history/<asset>/<YYYY-MM>.parquet
func (h *ParquetHistory) historyPath(assetID string, t time.Time) string {
	dir := unsafePathChars.ReplaceAllString(assetID, "_")
	return filepath.Join(h.DataDir, "history", dir, t.Format("2006-01")+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergePriceRecords deduplicates price records by (asset, timestamp),
// preferring new records over existing ones.
func mergePriceRecords(existing, incoming []PriceRecord) []PriceRecord {
	type key struct {
		asset string
		ts    int64
	}
	seen := make(map[key]PriceRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.AssetID, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.AssetID, r.Timestamp}] = r
	}

	merged := make([]PriceRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
