package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/config"
	"github.com/etnz/kabuka/refresh"
	"github.com/etnz/kabuka/renderer"
)

// portfolioCmd holds the flags for the 'portfolio' subcommand.
type portfolioCmd struct {
	aggregate bool
	json      bool
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display the portfolio valuation" }
func (*portfolioCmd) Usage() string {
	return `kbk portfolio [-aggregate] [-json]

  Fetches every configured instrument and displays the value of the holdings,
  their unrealized gain and the portfolio total.

  With -aggregate, the positions are read from the aggregate portfolio
  endpoint (api.portfolio_path) instead of the configuration.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.aggregate, "aggregate", false, "Read quotes and holdings from the aggregate endpoint")
	f.BoolVar(&c.json, "json", false, "Print the snapshot as JSON")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	engine, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting engine: %v\n", err)
		return subcommands.ExitFailure
	}

	var snap kabuka.Snapshot
	if c.aggregate {
		snap, err = aggregate(ctx, cfg, engine.Engine())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
	} else {
		tracked := cfg.Tracked()
		ctx, cancel := context.WithTimeout(ctx, fetchDeadline(cfg, len(tracked)))
		defer cancel()
		snap = refresh.NewRunner(newClient(cfg), engine, tracked, nil, nil).Refresh(ctx)
	}

	if c.json {
		if err := writeJSON(snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			return subcommands.ExitFailure
		}
		return exitStatus(snap)
	}
	r := renderer.NewReport(engine.Engine(), snap.Entries, &snap.Summary, nil)
	printMarkdown(renderer.RenderReport(r, renderer.ReportRenderOptions{SkipQuotes: c.aggregate}))
	return exitStatus(snap)
}

// aggregate values the positions served by the aggregate endpoint.
func aggregate(ctx context.Context, cfg *config.Config, e kabuka.Engine) (kabuka.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchDeadline(cfg, 1))
	defer cancel()

	started := time.Now()
	quotes, err := newClient(cfg).FetchPortfolio(ctx, cfg.API.PortfolioPath)
	if err != nil {
		return kabuka.Snapshot{}, err
	}
	now := time.Now()
	entries := make([]kabuka.Entry, 0, len(quotes))
	for _, q := range quotes {
		entries = append(entries, kabuka.Evaluate(e, aggregated(q), q, 1, now))
	}
	return kabuka.Snapshot{
		Cycle:    1,
		Started:  started,
		Finished: now,
		Engine:   e.Name(),
		Entries:  entries,
		Summary:  kabuka.Summarize(e, entries),
	}, nil
}

// aggregated is the instrument described by a quote of the aggregate
// endpoint.
func aggregated(q kabuka.Quote) kabuka.Tracked {
	t := kabuka.Tracked{
		Instrument: kabuka.Instrument{
			Key:      strings.ToLower(q.Symbol),
			Name:     q.CompanyName,
			Currency: q.Currency,
			Kind:     kabuka.KindEquity,
		},
	}
	if q.Holdings != nil {
		h := q.Holdings.Holding()
		t.Holding = &h
	}
	return t
}
