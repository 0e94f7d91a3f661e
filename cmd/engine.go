package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type engineCmd struct{}

func (*engineCmd) Name() string     { return "engine" }
func (*engineCmd) Synopsis() string { return "show the numeric engine in use" }
func (*engineCmd) Usage() string {
	return `kbk engine

  Resolves the numeric engine as a session would, and tells which one is used
  and why the native one was not.
`
}

func (*engineCmd) SetFlags(f *flag.FlagSet) {}

func (*engineCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	h, err := newEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting engine: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "mode:     %s\n", cfg.Engine.Mode)
	fmt.Fprintf(stdout, "engine:   %s\n", h.Engine().Name())
	fmt.Fprintf(stdout, "fallback: %t\n", h.Fallback())
	if cause := h.Cause(); cause != nil {
		fmt.Fprintf(stdout, "cause:    %v\n", cause)
	}
	return subcommands.ExitSuccess
}
