// Package kabuka values a small, fixed set of tracked instruments from live
// quotes. It is the numeric and domain core of the `kbk` command-line tool and
// of its HTTP service.
//
// The core functionalities include:
//   - Numeric Engine: pure functions to parse displayed prices and compute
//     market value, unrealized gain and gain percentage. Two interchangeable
//     backends exist, a float64 one and a decimal one.
//   - Engine Selection: the decimal backend is resolved once per session and
//     silently replaced by the float64 backend when it cannot be used.
//   - Evaluation: a Holding and a Quote make a PortfolioLine; all held lines
//     make a PortfolioSummary.
//
// Fetching quotes lives in package quote, and the timed refresh in package
// refresh.
package kabuka
