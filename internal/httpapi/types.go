// Package httpapi serves the rookie dashboard JSON API over gin.
package httpapi

import (
	"encoding/json"
	"strings"
	"time"

	"rookie/internal/domain"
	"rookie/internal/indicator"
	"rookie/internal/state"
)

// SnapshotResponse is the full published market snapshot.
type SnapshotResponse struct {
	Version   uint64                    `json:"version"`
	Cycle     uint64                    `json:"cycle"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Loading   bool                      `json:"loading"`
	Datasets  map[string][]domain.Asset `json:"datasets"`
	Errors    map[string]string         `json:"errors,omitempty"`
	Gainers   []domain.Asset            `json:"top_gainers"`
}

// DatasetResponse is one dataset view. Error is the latest failure of a named
// dataset's source; Assets then hold the last good result.
type DatasetResponse struct {
	Name    string         `json:"name"`
	Version uint64         `json:"version"`
	Assets  []domain.Asset `json:"assets"`
	Error   string         `json:"error,omitempty"`
	Stale   bool           `json:"stale,omitempty"`
}

type RefreshResponse struct {
	Published bool   `json:"published"`
	Version   uint64 `json:"version"`
	Cycle     uint64 `json:"cycle"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type WatchlistResponse struct {
	IDs    []string       `json:"ids"`
	Assets []domain.Asset `json:"assets"`
}

// TechnicalsResponse carries indicator values and the series they were
// computed on. RSI and SMA are nil when the series is too short.
type TechnicalsResponse struct {
	AssetID    string           `json:"asset_id"`
	Series     indicator.Series `json:"series"`
	Available  bool             `json:"available"`
	RSI        *float64         `json:"rsi,omitempty"`
	SMA        *float64         `json:"sma,omitempty"`
	RSIDisplay *float64         `json:"rsi_display,omitempty"`
	SMADisplay *float64         `json:"sma_display,omitempty"`
	Signal     string           `json:"signal,omitempty"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type NewsResponse struct {
	Category string               `json:"category"`
	Articles []domain.NewsArticle `json:"articles"`
	Error    string               `json:"error,omitempty"`
}

type PortfolioRequest struct {
	Address string `json:"address"`
}

type PortfolioResponse struct {
	Address   string                  `json:"address"`
	Portfolio *domain.WalletPortfolio `json:"portfolio"`
}

// SettingsRequest updates any subset of the preferences.
type SettingsRequest struct {
	Theme             *string `json:"theme"`
	RefreshInterval   *int64  `json:"refresh_interval"`
	TutorialCompleted *bool   `json:"tutorial_completed"`
}

type SettingsResponse struct {
	state.Settings
	User             *domain.User `json:"user"`
	IntervalOptions  []int64      `json:"refresh_interval_options"`
	CurrentInterval  string       `json:"current_interval"`
	RefreshScheduled bool         `json:"refresh_scheduled"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AlertRequest holds the target price as typed by the user. Both JSON
// strings and numbers are accepted.
type AlertRequest struct {
	AssetID string          `json:"asset_id"`
	Price   json.RawMessage `json:"price"`
}

// rawPrice returns the user's input as text for validation.
func (r AlertRequest) rawPrice() string {
	var s string
	if err := json.Unmarshal(r.Price, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.Price))
}

type AlertsResponse struct {
	Alerts []domain.Alert `json:"alerts"`
}
