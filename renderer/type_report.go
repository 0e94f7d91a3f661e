package renderer

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/refresh"
)

// Report is the board as rendered: every amount is already formatted by the
// session engine, so templates only lay it out. Per share prices keep their
// decimals, quotes are shown as sent.
type Report struct {
	Title     string       `json:"title"`
	Cycle     uint64       `json:"cycle"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
	Engine    string       `json:"engine"`
	Countdown string       `json:"countdown,omitempty"`
	Quotes    []QuoteRow   `json:"quotes"`
	Holdings  []HoldingRow `json:"holdings"`
	Summary   *SummaryRow  `json:"summary,omitempty"`
	Errors    []ErrorRow   `json:"errors"`
}

// QuoteRow is the quote of one instrument.
type QuoteRow struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"changePercent"`
	// Notional is the configured FX amount at the current rate.
	Notional string `json:"notional,omitempty"`
}

// HoldingRow is the valuation of one held instrument.
type HoldingRow struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Shares        string `json:"shares"`
	PurchasePrice string `json:"purchasePrice"`
	CurrentPrice  string `json:"currentPrice"`
	MarketValue   string `json:"marketValue"`
	TotalCost     string `json:"totalCost"`
	Gain          string `json:"gain"`
	GainPercent   string `json:"gainPercent"`
}

// SummaryRow is the portfolio total.
type SummaryRow struct {
	TotalCost        string `json:"totalCost"`
	TotalMarketValue string `json:"totalMarketValue"`
	TotalGain        string `json:"totalGain"`
	TotalGainPercent string `json:"totalGainPercent"`
	Held             int    `json:"held"`
	Failed           int    `json:"failed"`
}

// ErrorRow is a failed fetch.
type ErrorRow struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

var printer = message.NewPrinter(language.Japanese)

// NewReport builds the report of entries. summary is nil when no cycle
// completed yet, and state nil outside of an auto update session.
func NewReport(e kabuka.Engine, entries []kabuka.Entry, summary *kabuka.PortfolioSummary, state *refresh.State) *Report {
	r := &Report{
		Title:    "Portfolio",
		Engine:   e.Name(),
		Quotes:   make([]QuoteRow, 0, len(entries)),
		Holdings: make([]HoldingRow, 0),
		Errors:   make([]ErrorRow, 0),
	}
	if state != nil {
		r.Countdown = Countdown(*state)
	}

	var last time.Time
	for _, en := range entries {
		if en.Cycle > r.Cycle {
			r.Cycle = en.Cycle
		}
		if en.UpdatedAt.After(last) {
			last = en.UpdatedAt
		}
		name := displayName(en.Instrument)
		if en.Error != "" {
			r.Errors = append(r.Errors, ErrorRow{Key: en.Instrument.Key, Name: name, Message: en.Error})
			continue
		}
		if en.Quote == nil {
			continue
		}
		q := en.Quote
		row := QuoteRow{
			Key:           en.Instrument.Key,
			Name:          name,
			Symbol:        orNA(q.Symbol),
			Price:         priceDisplay(en.Instrument, q),
			Change:        orNA(q.Change.String()),
			ChangePercent: orNA(q.ChangePercent.String()),
		}
		if en.NotionalValue != 0 {
			row.Notional = e.FormatCurrencyJPY(en.NotionalValue)
		}
		r.Quotes = append(r.Quotes, row)

		if l := en.Line; l != nil {
			r.Holdings = append(r.Holdings, HoldingRow{
				Key:           en.Instrument.Key,
				Name:          name,
				Shares:        printer.Sprintf("%d株", l.Shares),
				PurchasePrice: yenPrice(l.PurchasePrice),
				CurrentPrice:  row.Price,
				MarketValue:   e.FormatCurrencyJPY(l.MarketValue),
				TotalCost:     e.FormatCurrencyJPY(l.TotalCost),
				Gain:          e.FormatCurrencyJPY(l.UnrealizedGain),
				GainPercent:   percent(l.GainPercentage),
			})
		}
	}
	if !last.IsZero() {
		r.UpdatedAt = last.Format("2006-01-02 15:04:05")
	}

	if summary != nil {
		r.Summary = &SummaryRow{
			TotalCost:        e.FormatCurrencyJPY(summary.TotalCost),
			TotalMarketValue: e.FormatCurrencyJPY(summary.TotalMarketValue),
			TotalGain:        e.FormatCurrencyJPY(summary.TotalGain),
			TotalGainPercent: percent(summary.TotalGainPercent),
			Held:             summary.Held,
			Failed:           summary.Failed,
		}
	}
	return r
}

func displayName(in kabuka.Instrument) string {
	if in.Name != "" {
		return in.Name
	}
	return in.Key
}

// priceDisplay shows yen prices as sent, others with a dollar sign.
func priceDisplay(in kabuka.Instrument, q *kabuka.Quote) string {
	raw := q.CurrentPriceRaw.String()
	if raw == "" {
		return "N/A"
	}
	cur := q.Currency
	if cur == "" {
		cur = in.Currency
	}
	if cur == "" || cur == "JPY" {
		return raw
	}
	return "$" + raw
}

// yenPrice shows a per share price with its decimals: "¥977.3", "¥1,801".
func yenPrice(p float64) string {
	return printer.Sprintf("¥%v", number.Decimal(p, number.MaxFractionDigits(4)))
}

func percent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Countdown is the auto update status line: "次回更新: 1:05" or
// "次回更新: 42秒" while counting, "更新中..." while the cycle runs, and
// nothing when stopped.
func Countdown(st refresh.State) string {
	if !st.Running {
		return ""
	}
	if st.Updating || st.RemainingSeconds <= 0 {
		return "更新中..."
	}
	m, s := st.RemainingSeconds/60, st.RemainingSeconds%60
	if m > 0 {
		return fmt.Sprintf("次回更新: %d:%02d", m, s)
	}
	return fmt.Sprintf("次回更新: %d秒", s)
}
