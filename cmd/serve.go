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

	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/refresh"
	"github.com/etnz/kabuka/server"
)

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio over HTTP" }
func (*serveCmd) Usage() string {
	return `kbk serve [-addr <host:port>]

  Serves the portfolio and its auto update controls over HTTP, until
  interrupted. See "kbk topic server" for the routes.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address. Defaults to server.host:server.port")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	addr := c.addr
	if addr == "" {
		addr = cfg.Server.Addr()
	}
	policy, err := refresh.ParseStalePolicy(cfg.Refresh.StaleResults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	loc, err := time.LoadLocation(cfg.Refresh.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
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

	sessions := make([]server.Session, 0, len(cfg.Refresh.Sessions))
	for _, s := range cfg.Refresh.Sessions {
		sessions = append(sessions, server.Session{Start: s.Start, Stop: s.Stop})
	}
	srv, err := server.New(sched, board, engine, sessions, loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		return subcommands.ExitFailure
	}

	if cfg.Refresh.AutoStart {
		if err := sched.Start(cfg.Refresh.Interval); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting auto update: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	logger.Info().
		Str("engine", engine.Engine().Name()).
		Int("instruments", len(tracked)).
		Bool("auto_start", cfg.Refresh.AutoStart).
		Msg("session ready")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Listen(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error serving on %s: %v\n", addr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
