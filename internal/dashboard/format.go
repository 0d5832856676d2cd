// Package dashboard renders asset values the way the dashboard tables show
// them.
package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatGrouped formats v with two decimals and comma-grouped integer part.
func formatGrouped(v float64) string {
	s := fmt.Sprintf("%.2f", math.Abs(v))
	whole, frac, _ := strings.Cut(s, ".")
	n, _ := strconv.ParseInt(whole, 10, 64)
	out := FormatInt(n) + "." + frac
	if v < 0 {
		out = "-" + out
	}
	return out
}

// FormatPrice shows sub-cent prices with 8 decimals, sub-dollar prices with
// 4, and everything else grouped with 2.
func FormatPrice(p float64) string {
	switch {
	case p > 0 && p < 0.01:
		return fmt.Sprintf("%.8f", p)
	case p > 0 && p < 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return formatGrouped(p)
	}
}

// FormatChange formats a 24h change percentage as "+1.25%" or "-0.40%".
func FormatChange(pct float64) string {
	sign := "+"
	if pct < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%.2f%%", sign, math.Abs(pct))
}

// FormatMarketCap formats a market cap in billions, or "N/A" when unknown.
func FormatMarketCap(v float64) string {
	if v <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("$%.2fB", v/1e9)
}

// FormatUSD formats a dollar amount as "$1,234.56".
func FormatUSD(v float64) string {
	if v < 0 {
		return "-$" + formatGrouped(-v)
	}
	return "$" + formatGrouped(v)
}

// FormatCompactUSD uses B and M suffixes for large wallet values.
func FormatCompactUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return FormatUSD(v)
	}
}
