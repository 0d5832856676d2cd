package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rookie/internal/domain"
)

func TestHistoryPath(t *testing.T) {
	h := NewParquetHistory("/data")
	ts := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	got := h.historyPath("THYAO.IS", ts)
	want := filepath.Join("/data", "history", "THYAO.IS", "2024-06.parquet")
	if got != want {
		t.Errorf("historyPath mismatch:\n  got  %s\n  want %s", got, want)
	}

	// Path separators in IDs must not escape the history directory.
	got = h.historyPath("../evil/id", ts)
	want = filepath.Join("/data", "history", ".._evil_id", "2024-06.parquet")
	if got != want {
		t.Errorf("historyPath(unsafe) = %s, want %s", got, want)
	}
}

func TestParquetHistoryAppendRead(t *testing.T) {
	dir := t.TempDir()
	h := NewParquetHistory(dir)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	ctx := context.Background()

	// One write in the previous month, three in the current one.
	writes := []struct {
		at    time.Time
		price float64
	}{
		{time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 3},
		{time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 4},
	}
	for _, w := range writes {
		assets := []domain.Asset{
			{ID: "bitcoin", CurrentPrice: w.price, Class: domain.AssetClassCrypto},
			{ID: "zero", CurrentPrice: 0},
		}
		if err := h.AppendPrices(ctx, w.at, assets); err != nil {
			t.Fatalf("AppendPrices: %v", err)
		}
	}

	series, err := h.ReadSeries(ctx, "bitcoin", 0)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	want := []float64{1, 2, 3, 4}
	if len(series) != len(want) {
		t.Fatalf("series = %v, want %v", series, want)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Errorf("series[%d] = %v, want %v", i, series[i], want[i])
		}
	}

	last2, _ := h.ReadSeries(ctx, "bitcoin", 2)
	if len(last2) != 2 || last2[0] != 3 || last2[1] != 4 {
		t.Errorf("ReadSeries(limit=2) = %v, want [3 4]", last2)
	}

	if s, _ := h.ReadSeries(ctx, "zero", 0); len(s) != 0 {
		t.Errorf("zero-priced asset recorded: %v", s)
	}
}

func TestParquetHistoryReplacesSameTimestamp(t *testing.T) {
	h := NewParquetHistory(t.TempDir())
	at := time.Now().UTC()
	ctx := context.Background()

	_ = h.AppendPrices(ctx, at, []domain.Asset{{ID: "AAPL", CurrentPrice: 100}})
	_ = h.AppendPrices(ctx, at, []domain.Asset{{ID: "AAPL", CurrentPrice: 101}})

	series, err := h.ReadSeries(ctx, "AAPL", 0)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(series) != 1 || series[0] != 101 {
		t.Errorf("series = %v, want [101]", series)
	}
}

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if err := kv.Put(ctx, "theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put(ctx, "theme", []byte(`"light"`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if err := kv.Put(ctx, "watchlist", []byte(`["bitcoin"]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	all, err := kv.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if string(all["theme"]) != `"light"` {
		t.Errorf("theme = %s, want \"light\"", all["theme"])
	}
	if len(all) != 2 {
		t.Errorf("got %d keys, want 2", len(all))
	}

	if err := kv.Delete(ctx, "theme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := kv.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
	all, _ = kv.LoadAll(ctx)
	if _, ok := all["theme"]; ok {
		t.Error("theme still present after Delete")
	}
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rookie.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	testKV(t, kv)
	if err := kv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Data survives reopening.
	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	all, err := kv.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if string(all["watchlist"]) != `["bitcoin"]` {
		t.Errorf("watchlist after reopen = %s", all["watchlist"])
	}
}
