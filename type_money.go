package kabuka

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// maxMoney is the largest amount go-money holds, in yen.
var maxMoney = decimal.NewFromInt(math.MaxInt64)

// formatYen renders whole yen the way the page shows amounts: "¥1,234",
// "-¥1,234". JPY has no minor unit, so the amount is also go-money's amount.
// yen must be an integer.
func formatYen(yen decimal.Decimal) string {
	if yen.Abs().LessThanOrEqual(maxMoney) {
		return money.New(yen.IntPart(), money.JPY).Display()
	}
	return groupYen(yen)
}

// groupYen formats amounts beyond go-money's int64, in the same layout.
func groupYen(yen decimal.Decimal) string {
	digits := yen.Abs().String()
	var b strings.Builder
	if yen.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("¥")
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// FormatJPY formats amount with the resolved engine of h.
// It is a shortcut for the presentation layer.
func (h *EngineHandle) FormatJPY(amount float64) string {
	return h.Engine().FormatCurrencyJPY(amount)
}
