// Package store defines storage interfaces for persisted user state and
// recorded price history, with SQLite, Redis, in-memory and Parquet
// implementations.
package store

import (
	"context"
	"time"

	"rookie/internal/domain"
)

// KV persists opaque values by key. Values are JSON documents owned by the
// state layer.
type KV interface {
	// LoadAll returns every stored key and value.
	LoadAll(ctx context.Context) (map[string][]byte, error)

	// Put inserts or replaces one value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// PriceHistory records observed prices and returns them as series.
type PriceHistory interface {
	// AppendPrices records the current price of every asset at time at.
	AppendPrices(ctx context.Context, at time.Time, assets []domain.Asset) error

	// ReadSeries returns up to limit most recent prices for assetID,
	// oldest first.
	ReadSeries(ctx context.Context, assetID string, limit int) ([]float64, error)
}
