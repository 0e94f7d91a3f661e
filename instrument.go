package kabuka

// Kind classifies a tracked instrument.
type Kind string

const (
	KindEquity Kind = "equity"
	KindIndex  Kind = "index"
	KindFX     Kind = "fx"
)

// Instrument identifies a tracked quote source. It is built from
// configuration and never changes during a session.
type Instrument struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	Currency string `json:"currency"`
	// Path is the quote endpoint, relative to the API base URL.
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
}

// Holding is a static position: how many shares, bought at which price.
type Holding struct {
	Shares        int64   `json:"shares"`
	PurchasePrice float64 `json:"purchase_price"`
}

// TotalCost returns the cost basis of the whole position.
func (h Holding) TotalCost(e Engine) float64 {
	return e.CalculatePortfolioValue(float64(h.Shares), h.PurchasePrice)
}

// Tracked is an instrument as configured for a session, with its optional
// holding. Index and FX instruments are display only and have no holding.
type Tracked struct {
	Instrument
	Holding *Holding `json:"holding,omitempty"`
	// Notional is a display amount valued at the current rate, for FX pairs.
	Notional float64 `json:"notional,omitempty"`
}

// Held reports whether the instrument takes part in the portfolio summary.
func (t Tracked) Held() bool { return t.Holding != nil }
