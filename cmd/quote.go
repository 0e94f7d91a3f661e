package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/refresh"
	"github.com/etnz/kabuka/renderer"
)

// quoteCmd holds the flags for the 'quote' subcommand.
type quoteCmd struct {
	json bool
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch the latest quotes" }
func (*quoteCmd) Usage() string {
	return `kbk quote [-json] [<key>...]

  Fetches the quotes of the given instruments, all configured instruments by
  default, and displays them with the valuation of the held ones.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "Print the entries as JSON")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	tracked, err := selectTracked(cfg.Tracked(), f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	engine, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting engine: %v\n", err)
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, fetchDeadline(cfg, len(tracked)))
	defer cancel()
	snap := refresh.NewRunner(newClient(cfg), engine, tracked, nil, nil).Refresh(ctx)

	if c.json {
		if err := writeJSON(snap.Entries); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding entries: %v\n", err)
			return subcommands.ExitFailure
		}
	} else {
		r := renderer.NewReport(engine.Engine(), snap.Entries, nil, nil)
		printMarkdown(renderer.RenderReport(r, renderer.ReportRenderOptions{SkipSummary: true}))
	}
	return exitStatus(snap)
}

// exitStatus fails when nothing could be fetched.
func exitStatus(snap kabuka.Snapshot) subcommands.ExitStatus {
	if len(snap.Entries) > 0 && len(snap.Errors()) == len(snap.Entries) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
