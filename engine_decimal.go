package kabuka

import (
	"math"

	"github.com/shopspring/decimal"
)

// Decimal is the precise engine: prices are read and amounts rounded on
// shopspring decimals, so that no binary rounding happens at the text
// boundaries. Arithmetic stays IEEE float64, bit for bit the one of Builtin.
//
// It is the native backend the EngineHandle tries first.
var Decimal Engine = decimalEngine{}

type decimalEngine struct{}

func (decimalEngine) Name() string { return "decimal" }

func (decimalEngine) ParseStockPrice(raw string) float64 {
	s := priceDigits(raw)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsZero() {
		return 0
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (decimalEngine) CalculatePortfolioValue(shares, price float64) float64 {
	return Builtin.CalculatePortfolioValue(shares, price)
}

func (decimalEngine) CalculateUnrealizedGain(marketValue, totalCost float64) float64 {
	return Builtin.CalculateUnrealizedGain(marketValue, totalCost)
}

func (decimalEngine) CalculateGainPercentage(gain, totalCost float64) float64 {
	return Builtin.CalculateGainPercentage(gain, totalCost)
}

func (decimalEngine) FormatCurrencyJPY(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return formatYen(decimal.Zero)
	}
	// Round is half away from zero, as math.Round.
	return formatYen(decimal.NewFromFloat(amount).Round(0))
}
