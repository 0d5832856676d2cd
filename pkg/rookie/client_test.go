package rookie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trimmed baseURL, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/datasets/nasdaq" || r.URL.Query().Get("sort") != "change" || r.URL.Query().Get("dir") != "asc" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"name":"nasdaq","version":7,"assets":[{"id":"AAPL","symbol":"AAPL","current_price":190.5}]}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Dataset(context.Background(), "nasdaq", "change", "asc")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if got.Version != 7 || len(got.Assets) != 1 || got.Assets[0].CurrentPrice != 190.5 {
		t.Errorf("Dataset = %+v", got)
	}
}

func TestSetWatched(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{"ids":["bitcoin"],"assets":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.SetWatched(context.Background(), "bitcoin", true); err != nil {
		t.Fatalf("SetWatched(true): %v", err)
	}
	if _, err := c.SetWatched(context.Background(), "bitcoin", false); err != nil {
		t.Fatalf("SetWatched(false): %v", err)
	}
	if len(methods) != 2 || methods[0] != "PUT /api/watchlist/bitcoin" || methods[1] != "DELETE /api/watchlist/bitcoin" {
		t.Errorf("requests = %v", methods)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["price"] != "abc" {
			t.Errorf("price = %q", body["price"])
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid price"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AddAlert(context.Background(), "bitcoin", "abc")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid price" {
		t.Errorf("APIError = %+v", apiErr)
	}
}
