package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/kabuka"
)

// parseCmd holds the flags for the 'parse' subcommand.
type parseCmd struct {
	builtin bool
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "parse displayed prices" }
func (*parseCmd) Usage() string {
	return `kbk parse [-builtin] <price>...

  Parses displayed prices like "¥1,234.56" the way quotes are read, and
  prints each value with its yen formatting.
`
}

func (c *parseCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.builtin, "builtin", false, "Use the builtin engine regardless of the configuration")
}

func (c *parseCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: missing price to parse")
		return subcommands.ExitUsageError
	}
	e := kabuka.Builtin
	if !c.builtin {
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
		e = h.Engine()
	}
	for _, raw := range f.Args() {
		v := e.ParseStockPrice(raw)
		fmt.Fprintf(stdout, "%q\t%v\t%s\n", raw, v, e.FormatCurrencyJPY(v))
	}
	return subcommands.ExitSuccess
}
