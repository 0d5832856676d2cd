// Package indicator computes RSI and SMA over an asset's price series.
package indicator

import "math"

// Period is the RSI and SMA window length.
const Period = 14

// Technicals holds full-precision indicator values.
type Technicals struct {
	RSI float64 `json:"rsi"`
	SMA float64 `json:"sma"`
}

// Compute returns RSI(14) and SMA(14) for series, ordered oldest first.
// The boolean is false when fewer than Period points are available.
//
// The RSI window grows with the series: exactly Period points give only
// Period-1 = 13 one-step differences, and Period+1 or more points use the
// latest Period = 14. Both cases divide the summed gains and losses by
// Period, so with exactly Period points 13 differences are averaged over
// 14. A zero average loss is replaced by 1.
func Compute(series []float64) (Technicals, bool) {
	n := len(series)
	if n < Period {
		return Technicals{}, false
	}

	diffs := Period
	if n-1 < diffs {
		diffs = n - 1
	}
	var gains, losses float64
	for i := n - diffs; i < n; i++ {
		d := series[i] - series[i-1]
		if d >= 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / Period
	avgLoss := losses / Period
	if avgLoss == 0 {
		avgLoss = 1
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)

	var sum float64
	for _, p := range series[n-Period:] {
		sum += p
	}

	return Technicals{RSI: rsi, SMA: sum / Period}, true
}

// RoundRSI rounds to one decimal place for display.
func RoundRSI(v float64) float64 { return math.Round(v*10) / 10 }

// RoundSMA rounds to two decimal places for display.
func RoundSMA(v float64) float64 { return math.Round(v*100) / 100 }

// Signal classifies an RSI value the way the detail view labels it.
func Signal(rsi float64) string {
	switch {
	case rsi > 70:
		return "overbought"
	case rsi < 30:
		return "oversold"
	default:
		return "neutral"
	}
}
