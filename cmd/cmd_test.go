package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/kabuka"
)

// quoteAPI serves sony, rakuten and the aggregate portfolio. Every other
// instrument is rejected.
func quoteAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/finance/sony":
			fmt.Fprint(w, `{"success":true,"data":{"symbol":"6758","company_name":"Sony Group","current_price":"350","change":"+5","change_percent":"+1.45%","currency":"JPY"}}`)
		case "/api/finance/rakuten":
			fmt.Fprint(w, `{"success":true,"data":{"symbol":"4755","company_name":"Rakuten Group","current_price":"¥1,000","change":"-3","change_percent":"-0.30%","currency":"JPY"}}`)
		case "/api/finance/portfolio":
			fmt.Fprint(w, `{"success":true,"data":[
				{"symbol":"6758","company_name":"Sony Group","current_price":"350","currency":"JPY","holdings":{"shares":1000,"purchase_price":333}},
				{"symbol":"4755","company_name":"Rakuten Group","current_price":"1000","currency":"JPY","holdings":{"shares":100,"purchase_price":977}}
			]}`)
		default:
			fmt.Fprint(w, `{"success":false,"error":"maintenance"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setup isolates the test from any local configuration, points the API to
// base and captures the command output.
func setup(t *testing.T, base string) *bytes.Buffer {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfigFile, "")
	t.Setenv("KABUKA_LOG_LEVEL", "error")
	if base != "" {
		t.Setenv("KABUKA_API_BASE_URL", base)
	}

	var out bytes.Buffer
	prevOut, prevRaw, prevConfig := stdout, *rawOutput, *configFile
	stdout, *rawOutput, *configFile = &out, true, ""
	t.Cleanup(func() {
		stdout, *rawOutput, *configFile = prevOut, prevRaw, prevConfig
	})
	return &out
}

// run parses args for cmd and executes it.
func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func TestQuoteCmd(t *testing.T) {
	out := setup(t, quoteAPI(t).URL)

	status := run(t, &quoteCmd{}, "sony", "dow")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "Sony Group")
	assert.Contains(t, out.String(), "¥350,000")
	assert.Contains(t, out.String(), "**Dow Jones (DIA)**: maintenance")
	assert.NotContains(t, out.String(), "Rakuten")
}

func TestQuoteCmdJSON(t *testing.T) {
	out := setup(t, quoteAPI(t).URL)

	status := run(t, &quoteCmd{}, "-json", "rakuten")
	require.Equal(t, subcommands.ExitSuccess, status)

	var entries []kabuka.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Line)
	assert.Equal(t, 100000.0, entries[0].Line.MarketValue)
	assert.Equal(t, 2300.0, entries[0].Line.UnrealizedGain)
}

func TestQuoteCmdErrors(t *testing.T) {
	setup(t, quoteAPI(t).URL)
	assert.Equal(t, subcommands.ExitUsageError, run(t, &quoteCmd{}, "toyota"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &quoteCmd{}, "dow", "nikkei"))
}

func TestPortfolioCmd(t *testing.T) {
	out := setup(t, quoteAPI(t).URL)

	var snap kabuka.Snapshot
	status := run(t, &portfolioCmd{}, "-json")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))

	// imurayama failed: sony and rakuten only.
	assert.Equal(t, 2, snap.Summary.Held)
	assert.Equal(t, 1, snap.Summary.Failed)
	assert.Equal(t, 450000.0, snap.Summary.TotalMarketValue)
	assert.Equal(t, 430700.0, snap.Summary.TotalCost)
	assert.Len(t, snap.Errors(), 4)
}

func TestPortfolioCmdAggregate(t *testing.T) {
	out := setup(t, quoteAPI(t).URL)

	status := run(t, &portfolioCmd{}, "-aggregate")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "1,000株")
	assert.Contains(t, out.String(), "| ¥430,700 | ¥450,000 | ¥19,300 | +4.48% |")
	assert.NotContains(t, out.String(), "## Quotes")
}

func TestPortfolioCmdAggregateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	setup(t, srv.URL)
	srv.Close()
	assert.Equal(t, subcommands.ExitFailure, run(t, &portfolioCmd{}, "-aggregate"))
}

func TestParseCmd(t *testing.T) {
	out := setup(t, "")

	status := run(t, &parseCmd{}, "¥1,234.56", "N/A")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "\"¥1,234.56\"\t1234.56\t¥1,235\n\"N/A\"\t0\t¥0\n", out.String())

	assert.Equal(t, subcommands.ExitUsageError, run(t, &parseCmd{}))
}

func TestEngineCmd(t *testing.T) {
	out := setup(t, "")

	require.Equal(t, subcommands.ExitSuccess, run(t, &engineCmd{}))
	assert.Contains(t, out.String(), "engine:   decimal")
	assert.Contains(t, out.String(), "fallback: false")

	out.Reset()
	t.Setenv("KABUKA_ENGINE_MODE", "builtin")
	require.Equal(t, subcommands.ExitSuccess, run(t, &engineCmd{}))
	assert.Contains(t, out.String(), "engine:   builtin")
	assert.Contains(t, out.String(), "fallback: true")
	assert.Contains(t, out.String(), "disabled by configuration")
}

func TestInvalidConfig(t *testing.T) {
	setup(t, "")
	require.NoError(t, os.WriteFile("kabuka.yaml", []byte("refresh:\n  interval: 42\n"), 0644))
	assert.Equal(t, subcommands.ExitFailure, run(t, &engineCmd{}))
}

func TestTopicCmd(t *testing.T) {
	out := setup(t, "")

	require.Equal(t, subcommands.ExitSuccess, run(t, &topicCmd{}))
	assert.Contains(t, out.String(), "config")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, &topicCmd{}, "-l"))
	assert.Equal(t, "config\nengine\nscheduler\nserver\n", out.String())

	assert.Equal(t, subcommands.ExitFailure, run(t, &topicCmd{}, "nope"))
}

func TestRegister(t *testing.T) {
	c := subcommands.NewCommander(flag.NewFlagSet("kbk", flag.ContinueOnError), "kbk")
	Register(c)

	var names []string
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		names = append(names, cmd.Name())
	})
	assert.ElementsMatch(t, []string{"quote", "portfolio", "watch", "serve", "engine", "parse", "topic"}, names)
}

func TestRunExtension(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script extension")
	}
	out := setup(t, "")
	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$1 $" + EnvConfigFile + " $" + EnvLogLevel + "\"\nexit 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kbk-hello"), []byte(script), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	*configFile = "my.yaml"
	*logLevel = "debug"
	t.Cleanup(func() { *logLevel = "" })

	found, code := RunExtension("hello", []string{"world"})
	assert.True(t, found)
	assert.Equal(t, 3, code)
	assert.Equal(t, "world my.yaml debug", strings.TrimSpace(out.String()))

	found, _ = RunExtension("missing", nil)
	assert.False(t, found)
}
