package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTypesExist(t *testing.T) {
	// Zero-value Asset keeps every numeric field at 0.
	a := Asset{}
	if a.CurrentPrice != 0 || a.PriceChangePercent24h != 0 || a.MarketCap != 0 || a.Volume != 0 {
		t.Error("expected zero numeric fields for zero-value Asset")
	}
	if a.Sparkline != nil {
		t.Error("expected nil Sparkline for zero-value Asset")
	}

	if AssetClassCrypto != "CRYPTO" || AssetClassStock != "STOCK" {
		t.Error("AssetClass constants have unexpected values")
	}
	if AlertAbove != "above" || AlertBelow != "below" {
		t.Error("AlertDirection constants have unexpected values")
	}
	if len(NativeAddress) != 42 || strings.Trim(NativeAddress[2:], "0") != "" {
		t.Errorf("NativeAddress = %q, want the all-zero address", NativeAddress)
	}
}

func TestAssetJSONFieldNames(t *testing.T) {
	a := Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", CurrentPrice: 1, Class: AssetClassCrypto}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"current_price":1`, `"price_change_percentage_24h":0`, `"type":"CRYPTO"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("marshalled asset %s missing %s", data, want)
		}
	}
}
