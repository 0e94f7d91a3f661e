package kabuka

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Engine computes portfolio values. Every implementation must return the same
// results for the same finite inputs, Calibrate checks it.
type Engine interface {
	// Name identifies the backend in logs and reports.
	Name() string
	// ParseStockPrice reads a displayed price like "¥1,234.56". It returns 0 when
	// nothing numeric can be read.
	ParseStockPrice(raw string) float64
	CalculatePortfolioValue(shares, price float64) float64
	CalculateUnrealizedGain(marketValue, totalCost float64) float64
	// CalculateGainPercentage returns 0 when totalCost is not positive.
	CalculateGainPercentage(gain, totalCost float64) float64
	FormatCurrencyJPY(amount float64) string
}

// Builtin is the float64 engine. It is always available.
var Builtin Engine = builtin{}

type builtin struct{}

func (builtin) Name() string { return "builtin" }

func (builtin) ParseStockPrice(raw string) float64 {
	s := priceDigits(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (builtin) CalculatePortfolioValue(shares, price float64) float64 { return shares * price }

func (builtin) CalculateUnrealizedGain(marketValue, totalCost float64) float64 {
	return marketValue - totalCost
}

func (builtin) CalculateGainPercentage(gain, totalCost float64) float64 {
	if !(totalCost > 0) {
		return 0
	}
	return gain / totalCost * 100
}

func (builtin) FormatCurrencyJPY(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return formatYen(decimal.Zero)
	}
	return formatYen(decimal.NewFromFloat(math.Round(amount)))
}

// pricePrefix matches the numeric prefix a browser's parseFloat would read once
// the decoration is gone.
var pricePrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)

// priceDigits strips everything but ASCII digits, '.' and '-' from raw and
// returns the longest numeric prefix, normalized so that both strconv and
// decimal accept it ("5." is "5", "-.5" is "-0.5").
func priceDigits(raw string) string {
	stripped := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	s := pricePrefix.FindString(stripped)
	if s == "" {
		return ""
	}
	s = strings.TrimSuffix(s, ".")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}
