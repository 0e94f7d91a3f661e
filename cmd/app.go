// Package cmd implements the kbk command line application.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/config"
	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/metrics"
	"github.com/etnz/kabuka/quote"
)

// Commands lists the kbk subcommands with their group.
func Commands() map[string][]subcommands.Command {
	return map[string][]subcommands.Command{
		"quotes": {
			&quoteCmd{},
			&portfolioCmd{},
			&watchCmd{},
		},
		"service": {
			&serveCmd{},
		},
		"engine": {
			&engineCmd{},
			&parseCmd{},
		},
		"help": {
			&topicCmd{},
		},
	}
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for group, cmds := range Commands() {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file. Defaults to kabuka.yaml in ., ./config or $HOME/.config/kabuka")
var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error). Overrides log.level")
var rawOutput = flag.Bool("raw", false, "Print markdown as is, without terminal rendering")

// stdout receives command output.
var stdout io.Writer = os.Stdout

// loadConfig loads and validates the configuration, then initializes the
// logger from it. Extensions get the -config flag of kbk through
// EnvConfigFile.
func loadConfig() (*config.Config, error) {
	file := *configFile
	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init("kbk", cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

// newEngine returns the engine handle of cfg, resolved.
func newEngine(cfg *config.Config) (*kabuka.EngineHandle, error) {
	load, err := cfg.Loader()
	if err != nil {
		return nil, err
	}
	h := kabuka.NewEngineHandle(load)
	e := h.Init()
	metrics.SetEngine(e.Name(), h.Fallback())
	if h.Fallback() {
		logger.Info().Err(h.Cause()).Str("engine", e.Name()).Msg("native engine not used")
	}
	return h, nil
}

// newClient returns the quote client of cfg.
func newClient(cfg *config.Config) *quote.Client {
	return quote.New(cfg.API.BaseURL,
		quote.WithTimeout(cfg.API.Timeout),
		quote.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
	)
}

// selectTracked returns the tracked instruments named by keys, all of them
// when keys is empty.
func selectTracked(all []kabuka.Tracked, keys []string) ([]kabuka.Tracked, error) {
	if len(keys) == 0 {
		return all, nil
	}
	byKey := make(map[string]kabuka.Tracked, len(all))
	for _, t := range all {
		byKey[t.Key] = t
	}
	selected := make([]kabuka.Tracked, 0, len(keys))
	for _, k := range keys {
		t, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("unknown instrument %q", k)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// fetchDeadline bounds a one shot command: every fetch is bounded by the
// client timeout, the limiter may queue them.
func fetchDeadline(cfg *config.Config, n int) time.Duration {
	d := cfg.API.Timeout
	if d <= 0 {
		d = quote.DefaultTimeout
	}
	if rps := cfg.API.RequestsPerSecond; rps > 0 {
		d += time.Duration(float64(n) / rps * float64(time.Second))
	}
	return d + time.Second
}
