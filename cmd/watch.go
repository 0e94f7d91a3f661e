package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/jonboulle/clockwork"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/refresh"
	"github.com/etnz/kabuka/renderer"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\x1b[H\x1b[2J"

// watchCmd holds the flags for the 'watch' subcommand.
type watchCmd struct {
	interval int
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "refresh the portfolio periodically" }
func (*watchCmd) Usage() string {
	return `kbk watch [-i <seconds>]

  Displays the portfolio and refreshes it every interval, with a countdown to
  the next update, until interrupted.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.interval, "i", 0, "Update interval in seconds, one of refresh.intervals. Defaults to refresh.interval")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	interval := cfg.Refresh.Interval
	if c.interval != 0 {
		interval = c.interval
	}
	policy, err := refresh.ParseStalePolicy(cfg.Refresh.StaleResults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	engine, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting engine: %v\n", err)
		return subcommands.ExitFailure
	}

	clock := clockwork.NewRealClock()
	tracked := cfg.Tracked()
	board := refresh.NewBoard(tracked, policy)
	runner := refresh.NewRunner(newClient(cfg), engine, tracked, board, clock)
	sched, err := refresh.NewScheduler(runner, clock, cfg.Refresh.Intervals, cfg.Refresh.Interval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer sched.Dispose()
	if err := sched.Start(interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting auto update: %v\n", err)
		return subcommands.ExitUsageError
	}
	logger.Info().Int("interval", interval).Msg("watching")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		draw(board, engine.Engine(), sched.State())
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-ticker.Chan():
		}
	}
}

// draw repaints the whole board.
func draw(board *refresh.Board, e kabuka.Engine, st refresh.State) {
	var summary *kabuka.PortfolioSummary
	if snap, ok := board.Snapshot(); ok {
		summary = &snap.Summary
	}
	r := renderer.NewReport(e, board.Entries(), summary, &st)
	fmt.Fprint(stdout, clearScreen)
	printMarkdown(renderer.RenderReport(r, renderer.ReportRenderOptions{}))
}
