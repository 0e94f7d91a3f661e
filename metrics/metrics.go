// Package metrics exposes the kabuka prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	registry = prometheus.NewRegistry()

	refreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kabuka_refresh_cycles_total",
			Help: "Refresh cycles run, by trigger",
		},
		[]string{"trigger"},
	)

	quoteFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kabuka_quote_fetch_total",
			Help: "Quote fetches, by instrument and result",
		},
		[]string{"instrument", "result"},
	)

	quoteFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kabuka_quote_fetch_duration_seconds",
			Help:    "Quote fetch duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"instrument"},
	)

	marketValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabuka_portfolio_market_value",
		Help: "Market value of the held instruments, in yen",
	})
	totalCost = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabuka_portfolio_total_cost",
		Help: "Cost basis of the held instruments, in yen",
	})
	gain = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabuka_portfolio_gain",
		Help: "Unrealized gain of the held instruments, in yen",
	})

	schedulerRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabuka_scheduler_running",
		Help: "1 when the auto update is running",
	})

	engineInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kabuka_engine_info",
			Help: "Numeric engine in use",
		},
		[]string{"engine", "fallback"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(refreshCycles, quoteFetches, quoteFetchDuration)
	registry.MustRegister(marketValue, totalCost, gain)
	registry.MustRegister(schedulerRunning, engineInfo)
	registry.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Registry returns the kabuka registry.
func Registry() *prometheus.Registry { return registry }

// Handler serves the registry, for the /metrics route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// Middleware records HTTP metrics, except for skipPaths.
func Middleware(skipPaths ...string) fiber.Handler {
	skip := make(map[string]bool)
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordCycle counts a refresh cycle. trigger is "timer" or "manual".
func RecordCycle(trigger string) {
	refreshCycles.WithLabelValues(trigger).Inc()
}

// RecordFetch records a quote fetch outcome.
func RecordFetch(instrument string, err error, d time.Duration) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	quoteFetches.WithLabelValues(instrument, result).Inc()
	quoteFetchDuration.WithLabelValues(instrument).Observe(d.Seconds())
}

// SetPortfolio publishes the latest summary totals.
func SetPortfolio(mv, cost, g float64) {
	marketValue.Set(mv)
	totalCost.Set(cost)
	gain.Set(g)
}

// SetRunning publishes the auto update state.
func SetRunning(running bool) {
	if running {
		schedulerRunning.Set(1)
		return
	}
	schedulerRunning.Set(0)
}

// SetEngine publishes the resolved engine.
func SetEngine(name string, fallback bool) {
	engineInfo.Reset()
	engineInfo.WithLabelValues(name, strconv.FormatBool(fallback)).Set(1)
}
