package kabuka

import (
	"time"
)

// PortfolioLine is the valuation of one holding at the latest quote.
// It is recomputed from scratch on every refresh.
type PortfolioLine struct {
	Shares         int64   `json:"shares"`
	PurchasePrice  float64 `json:"purchase_price"`
	CurrentPrice   float64 `json:"current_price"`
	MarketValue    float64 `json:"market_value"`
	TotalCost      float64 `json:"total_cost"`
	UnrealizedGain float64 `json:"unrealized_gain"`
	GainPercentage float64 `json:"gain_percentage"`
}

// EvaluateLine values h at quote q. It never fails: an unreadable price is 0,
// and so are the values derived from it. The raw quote is still there to
// show.
func EvaluateLine(e Engine, h Holding, q Quote) PortfolioLine {
	shares := float64(h.Shares)
	price := e.ParseStockPrice(string(q.CurrentPriceRaw))
	mv := e.CalculatePortfolioValue(shares, price)
	cost := h.TotalCost(e)
	gain := e.CalculateUnrealizedGain(mv, cost)
	return PortfolioLine{
		Shares:         h.Shares,
		PurchasePrice:  h.PurchasePrice,
		CurrentPrice:   price,
		MarketValue:    mv,
		TotalCost:      cost,
		UnrealizedGain: gain,
		GainPercentage: e.CalculateGainPercentage(gain, cost),
	}
}

// PortfolioSummary aggregates the lines of all held instruments.
type PortfolioSummary struct {
	TotalCost        float64 `json:"total_cost"`
	TotalMarketValue float64 `json:"total_market_value"`
	TotalGain        float64 `json:"total_gain"`
	TotalGainPercent float64 `json:"total_gain_percent"`
	// Held is the number of lines aggregated.
	Held int `json:"held"`
	// Failed is the number of held instruments missing from this summary
	// because their quote could not be fetched.
	Failed int `json:"failed"`
}

// EvaluateSummary folds lines into a summary.
func EvaluateSummary(e Engine, lines []PortfolioLine) PortfolioSummary {
	var s PortfolioSummary
	for _, l := range lines {
		s.TotalCost += l.TotalCost
		s.TotalMarketValue += l.MarketValue
		s.Held++
	}
	s.TotalGain = e.CalculateUnrealizedGain(s.TotalMarketValue, s.TotalCost)
	s.TotalGainPercent = e.CalculateGainPercentage(s.TotalGain, s.TotalCost)
	return s
}

// Entry is what is shown for one instrument after a fetch: the quote and its
// valuation, or the fetch error.
type Entry struct {
	Instrument Instrument `json:"instrument"`
	Holding    *Holding   `json:"holding,omitempty"`
	Quote      *Quote     `json:"quote,omitempty"`
	// Line is set for held instruments whose quote was fetched.
	Line *PortfolioLine `json:"line,omitempty"`
	// NotionalValue is the configured notional at the current rate.
	NotionalValue float64   `json:"notional_value,omitempty"`
	Error         string    `json:"error,omitempty"`
	Cycle         uint64    `json:"cycle"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OK reports whether the entry holds a quote.
func (en Entry) OK() bool { return en.Error == "" && en.Quote != nil }

// Evaluate builds the entry of t for a freshly fetched quote.
func Evaluate(e Engine, t Tracked, q Quote, cycle uint64, at time.Time) Entry {
	en := Entry{
		Instrument: t.Instrument,
		Holding:    t.Holding,
		Quote:      &q,
		Cycle:      cycle,
		UpdatedAt:  at,
	}
	if t.Holding != nil {
		line := EvaluateLine(e, *t.Holding, q)
		en.Line = &line
	}
	if t.Notional > 0 {
		rate := e.ParseStockPrice(string(q.CurrentPriceRaw))
		en.NotionalValue = e.CalculatePortfolioValue(t.Notional, rate)
	}
	return en
}

// Failed builds the entry of t for a failed fetch.
func Failed(t Tracked, err error, cycle uint64, at time.Time) Entry {
	return Entry{
		Instrument: t.Instrument,
		Holding:    t.Holding,
		Error:      FetchMessage(err),
		Cycle:      cycle,
		UpdatedAt:  at,
	}
}

// Summarize aggregates the lines found in entries.
func Summarize(e Engine, entries []Entry) PortfolioSummary {
	lines := make([]PortfolioLine, 0, len(entries))
	failed := 0
	for _, en := range entries {
		switch {
		case en.Line != nil:
			lines = append(lines, *en.Line)
		case en.Holding != nil && en.Error != "":
			failed++
		}
	}
	s := EvaluateSummary(e, lines)
	s.Failed = failed
	return s
}
