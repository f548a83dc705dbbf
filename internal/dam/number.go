package dam

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	radixLiteral   = regexp.MustCompile(`^0([xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
)

// ParseNumber converts form text to a number the way a browser form coerces
// it: surrounding whitespace is ignored, an empty string is zero, and anything
// that is not a numeric literal is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)

	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if radixLiteral.MatchString(s) {
		base := 16
		switch s[1] {
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		n, ok := new(big.Int).SetString(s[2:], base)
		if !ok {
			return math.NaN()
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	}

	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}

	// Out-of-range literals come back as ±Inf with ErrRange, which is the
	// value we want.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return math.NaN()
	}
	return f
}

func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

// FormatFixed renders v with exactly two decimals, rounding half away from
// zero. Non-finite values render as NaN, Infinity and -Infinity.
func FormatFixed(v float64) string {
	if s, ok := formatNonFinite(v); ok {
		return s
	}
	if math.Abs(v) >= 1e21 {
		return FormatNumber(v)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatNumber renders v in the shortest form that round-trips, switching to
// exponent notation outside [1e-7, 1e21).
func FormatNumber(v float64) string {
	if s, ok := formatNonFinite(v); ok {
		return s
	}
	if v == 0 {
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e-7 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	s := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	if exp == "" {
		exp = "0"
	}
	return mant + "e" + sign + exp
}

// RoundFixed rounds v to two decimals, half away from zero. Non-finite values
// are returned unchanged.
func RoundFixed(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func formatNonFinite(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "NaN", true
	case math.IsInf(v, 1):
		return "Infinity", true
	case math.IsInf(v, -1):
		return "-Infinity", true
	}
	return "", false
}
