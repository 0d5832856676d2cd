package dashboard

import "testing"

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.00001234, "0.00001234"},
		{0.5, "0.5000"},
		{1, "1.00"},
		{65000.456, "65,000.46"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatChangeAndCap(t *testing.T) {
	if got := FormatChange(2.346); got != "+2.35%" {
		t.Errorf("FormatChange(2.346) = %q", got)
	}
	if got := FormatChange(-0.4); got != "-0.40%" {
		t.Errorf("FormatChange(-0.4) = %q", got)
	}
	if got := FormatMarketCap(1.28e12); got != "$1280.00B" {
		t.Errorf("FormatMarketCap = %q", got)
	}
	if got := FormatMarketCap(0); got != "N/A" {
		t.Errorf("FormatMarketCap(0) = %q", got)
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(1234.5); got != "$1,234.50" {
		t.Errorf("FormatUSD = %q", got)
	}
	if got := FormatCompactUSD(2.5e9); got != "$2.50B" {
		t.Errorf("FormatCompactUSD(2.5e9) = %q", got)
	}
	if got := FormatCompactUSD(3.25e6); got != "$3.25M" {
		t.Errorf("FormatCompactUSD(3.25e6) = %q", got)
	}
	if got := FormatCompactUSD(999); got != "$999.00" {
		t.Errorf("FormatCompactUSD(999) = %q", got)
	}
}
