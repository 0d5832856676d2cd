// Package rookie is a Go client for the rookie-server HTTP API.
package rookie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rookie/internal/domain"
	"rookie/internal/httpapi"
)

// Client provides a Go SDK for interacting with the rookie-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new rookie API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rookie api: %d %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Snapshot retrieves every dataset and the top gainers.
func (c *Client) Snapshot(ctx context.Context) (*httpapi.SnapshotResponse, error) {
	var out httpapi.SnapshotResponse
	if err := c.do(ctx, http.MethodGet, "/api/snapshot", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dataset retrieves one dataset ("all" and "gainers" included), ordered by
// field and dir when field is set.
func (c *Client) Dataset(ctx context.Context, name, field, dir string) (*httpapi.DatasetResponse, error) {
	q := url.Values{}
	if field != "" {
		q.Set("sort", field)
		q.Set("dir", dir)
	}
	path := "/api/datasets/" + url.PathEscape(name)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out httpapi.DatasetResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh triggers a refresh cycle and waits for it.
func (c *Client) Refresh(ctx context.Context) (*httpapi.RefreshResponse, error) {
	var out httpapi.RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watchlist retrieves the watched IDs and their assets.
func (c *Client) Watchlist(ctx context.Context) (*httpapi.WatchlistResponse, error) {
	var out httpapi.WatchlistResponse
	if err := c.do(ctx, http.MethodGet, "/api/watchlist", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetWatched adds or removes one asset from the watchlist.
func (c *Client) SetWatched(ctx context.Context, assetID string, watched bool) (*httpapi.WatchlistResponse, error) {
	method := http.MethodPut
	if !watched {
		method = http.MethodDelete
	}
	var out httpapi.WatchlistResponse
	if err := c.do(ctx, method, "/api/watchlist/"+url.PathEscape(assetID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Technicals retrieves RSI and SMA for an asset.
func (c *Client) Technicals(ctx context.Context, assetID string) (*httpapi.TechnicalsResponse, error) {
	var out httpapi.TechnicalsResponse
	if err := c.do(ctx, http.MethodGet, "/api/assets/"+url.PathEscape(assetID)+"/technicals", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddAlert creates a price alert. price is passed through as typed.
func (c *Client) AddAlert(ctx context.Context, assetID, price string) (*domain.Alert, error) {
	var out domain.Alert
	body := map[string]string{"asset_id": assetID, "price": price}
	if err := c.do(ctx, http.MethodPost, "/api/alerts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReachedAlerts lists alerts whose target has been crossed.
func (c *Client) ReachedAlerts(ctx context.Context) ([]domain.Alert, error) {
	var out httpapi.AlertsResponse
	if err := c.do(ctx, http.MethodGet, "/api/alerts/reached", nil, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}
