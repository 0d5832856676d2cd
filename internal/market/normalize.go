package market

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Number decodes a JSON number. Null, strings, objects and values that do
// not fit a finite float64 decode to 0 without error.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(finite(f))
	return nil
}

// Float returns n as a float64.
func (n Number) Float() float64 { return float64(n) }

// LooseNumber is a Number that also accepts currency-formatted strings such
// as "$0.0431" or "$1,234,567".
type LooseNumber float64

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// UnmarshalJSON implements json.Unmarshaler.
func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = LooseNumber(ParseCurrency(s))
		return nil
	}
	var num Number
	_ = num.UnmarshalJSON(b)
	*n = LooseNumber(num)
	return nil
}

// Float returns n as a float64.
func (n LooseNumber) Float() float64 { return float64(n) }

// ParseCurrency strips everything except digits, '.' and '-' and parses the
// remainder. Unparseable input yields 0.
func ParseCurrency(s string) float64 {
	f, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(s, ""), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// Text decodes a JSON string. Numbers are kept in their literal form and
// every other shape decodes to "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*t = Text(num.String())
		return nil
	}
	*t = ""
	return nil
}

func (t Text) String() string { return string(t) }

// Lenient decodes a nested JSON value into T. A value of the wrong shape
// leaves the zero T with OK unset instead of failing the enclosing decode.
type Lenient[T any] struct {
	V  T
	OK bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lenient[T]) UnmarshalJSON(b []byte) error {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		*l = Lenient[T]{}
		return nil
	}
	*l = Lenient[T]{V: v, OK: string(b) != "null"}
	return nil
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// nonNegative clamps provider noise such as a negative market cap to 0.
func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

func firstText(vals ...Text) string {
	for _, v := range vals {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}

func firstNonZero(vals ...Number) float64 {
	for _, v := range vals {
		if v != 0 {
			return float64(v)
		}
	}
	return 0
}

func floats(ns []Number) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}
