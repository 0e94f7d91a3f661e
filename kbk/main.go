// Command kbk values a small stock portfolio from live quotes.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/etnz/kabuka/cmd"
	"github.com/etnz/kabuka/docs"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	completion().Complete("kbk")

	flag.Parse()
	if name := flag.Arg(0); name != "" && !registered(commander, name) {
		if found, code := cmd.RunExtension(name, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func registered(c *subcommands.Commander, name string) bool {
	found := false
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		found = found || cmd.Name() == name
	})
	return found
}

// completion describes kbk for shell completion, from the registered
// subcommands and their flags.
func completion() *complete.Command {
	root := &complete.Command{
		Sub: map[string]*complete.Command{},
		Flags: map[string]complete.Predictor{
			"config":    predict.Files("*.yaml"),
			"log-level": predict.Set{"debug", "info", "warn", "error"},
			"raw":       predict.Nothing,
		},
	}
	for _, cmds := range cmd.Commands() {
		for _, c := range cmds {
			sub := &complete.Command{Flags: map[string]complete.Predictor{}}
			f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
			c.SetFlags(f)
			f.VisitAll(func(fl *flag.Flag) {
				sub.Flags[fl.Name] = predict.Something
			})
			if c.Name() == "topic" {
				if names, err := docs.Names(); err == nil {
					sub.Args = predict.Set(append(names, "readme"))
				}
			}
			root.Sub[c.Name()] = sub
		}
	}
	return root
}
