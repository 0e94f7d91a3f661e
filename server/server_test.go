package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/refresh"
)

var tracked = []kabuka.Tracked{
	{
		Instrument: kabuka.Instrument{Key: "sony", Currency: "JPY", Path: "/api/finance/sony", Kind: kabuka.KindEquity},
		Holding:    &kabuka.Holding{Shares: 1000, PurchasePrice: 333},
	},
	{
		Instrument: kabuka.Instrument{Key: "dow", Currency: "USD", Path: "/api/finance/dow", Kind: kabuka.KindIndex},
	},
}

func newTestServer(t *testing.T, sessions ...Session) (*Server, *refresh.Scheduler) {
	t.Helper()
	f := refresh.FetcherFunc(func(ctx context.Context, inst kabuka.Instrument) (kabuka.Quote, error) {
		if inst.Key == "dow" {
			return kabuka.Quote{}, kabuka.NewFetchError(kabuka.FetchFormat, "dow", nil, "received HTML instead of JSON data")
		}
		return kabuka.Quote{Symbol: "6758", CurrentPriceRaw: "¥350"}, nil
	})
	engine := kabuka.NewEngineHandle(func() (kabuka.Engine, error) { return kabuka.Decimal, nil })
	clock := clockwork.NewFakeClock()
	board := refresh.NewBoard(tracked, refresh.ApplyLate)
	runner := refresh.NewRunner(f, engine, tracked, board, clock)
	sched, err := refresh.NewScheduler(runner, clock, nil, refresh.DefaultInterval)
	require.NoError(t, err)
	t.Cleanup(sched.Dispose)

	srv, err := New(sched, board, engine, sessions, time.UTC)
	require.NoError(t, err)
	return srv, sched
}

// call performs a request and decodes the envelope, data into data.
func call(t *testing.T, srv *Server, method, target, body string, data any) (int, Response) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env), "body %s", raw)
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return resp.StatusCode, env.Response
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPortfolio(t *testing.T) {
	srv, _ := newTestServer(t)

	var view PortfolioView
	status, env := call(t, srv, http.MethodGet, "/api/portfolio", "", &view)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Zero(t, view.Cycle)
	require.Len(t, view.Entries, 2)
	assert.Nil(t, view.Entries[0].Quote, "nothing fetched yet")

	status, _ = call(t, srv, http.MethodPost, "/api/refresh", "", &view)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(1), view.Cycle)
	assert.Equal(t, 350000.0, view.Summary.TotalMarketValue)
	assert.Equal(t, 1, view.Summary.Held)
	assert.Equal(t, 0, view.Summary.Failed, "the failed index is not held")
	assert.Equal(t, "¥350,000", view.Formatted.TotalMarketValue)
	assert.Equal(t, "¥17,000", view.Formatted.TotalGain)

	var en kabuka.Entry
	status, _ = call(t, srv, http.MethodGet, "/api/portfolio/dow", "", &en)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "received HTML instead of JSON data", en.Error)

	status, env = call(t, srv, http.MethodGet, "/api/portfolio/toyota", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "unknown instrument toyota", env.Error)
}

func TestSchedulerRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	var view SchedulerView
	status, _ := call(t, srv, http.MethodGet, "/api/scheduler", "", &view)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, view.Running)
	assert.Equal(t, []int{10, 30, 60, 300, 600}, view.Options)

	status, _ = call(t, srv, http.MethodPost, "/api/scheduler/start", `{"interval":30}`, &view)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, view.Running)
	assert.Equal(t, 30, view.IntervalSeconds)
	assert.Equal(t, 30, view.RemainingSeconds)

	status, env := call(t, srv, http.MethodPost, "/api/scheduler/start", "", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, _ = call(t, srv, http.MethodPut, "/api/scheduler/interval", `{"interval":45}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPut, "/api/scheduler/interval", `{"interval":300}`, &view)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 300, view.IntervalSeconds)
	assert.True(t, view.Running)

	status, _ = call(t, srv, http.MethodPost, "/api/scheduler/stop", "", &view)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, view.Running)

	status, _ = call(t, srv, http.MethodPost, "/api/scheduler/stop", "", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = call(t, srv, http.MethodPut, "/api/scheduler/interval", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEngineRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	var info map[string]any
	status, _ := call(t, srv, http.MethodGet, "/api/engine", "", &info)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "decimal", info["engine"])
	assert.Equal(t, false, info["fallback"])
}

func TestParseRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	var parsed map[string]any
	status, _ := call(t, srv, http.MethodGet, "/api/parse?amount="+url.QueryEscape("¥1,234.56"), "", &parsed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1234.56, parsed["value"])
	assert.Equal(t, "¥1,235", parsed["formatted"])

	status, env := call(t, srv, http.MethodGet, "/api/parse", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing amount", env.Error)
}

func TestSessions(t *testing.T) {
	_, idle := newTestServer(t)
	_, err := New(idle, nil, nil, []Session{{Start: "at nine", Stop: "0 15 * * *"}}, nil)
	assert.Error(t, err)

	srv, sched := newTestServer(t, Session{Start: "0 9 * * 1-5", Stop: "30 15 * * 1-5"})
	assert.Len(t, srv.cron.Entries(), 2)

	srv.openSession()
	assert.True(t, sched.State().Running)
	srv.openSession()
	assert.True(t, sched.State().Running)

	srv.closeSession()
	assert.False(t, sched.State().Running)
	srv.closeSession()
	assert.False(t, sched.State().Running)
}
