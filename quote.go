package kabuka

import (
	"encoding/json"
	"fmt"
	"math"
)

// Quote is a point in time price observation as served by the quote API.
// Each fetch replaces the previous quote, no history is kept.
type Quote struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`
	// CurrentPriceRaw is the displayed price, possibly decorated ("¥1,234.56").
	CurrentPriceRaw Text   `json:"current_price"`
	Change          Text   `json:"change"`
	ChangePercent   Text   `json:"change_percent"`
	Currency        string `json:"currency"`
	// Holdings is only sent by the aggregate portfolio endpoint.
	Holdings *QuoteHolding `json:"holdings,omitempty"`
}

// QuoteHolding is the position embedded by the aggregate endpoint.
type QuoteHolding struct {
	Shares        float64 `json:"shares"`
	PurchasePrice float64 `json:"purchase_price"`
}

// Holding converts the embedded position.
func (q QuoteHolding) Holding() Holding {
	shares := math.Round(q.Shares)
	if shares < 0 {
		shares = 0
	}
	return Holding{Shares: int64(shares), PurchasePrice: q.PurchasePrice}
}

// Text is a display string. The quote API sometimes sends it as a bare JSON
// number, which is kept verbatim.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", b)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }
