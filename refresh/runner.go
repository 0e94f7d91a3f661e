// Package refresh runs refresh cycles: it fetches every tracked instrument,
// values the held ones, and shows the result on a Board, once on demand or
// periodically through a Scheduler.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/metrics"
)

// Fetcher fetches the quote of one instrument. A non nil error is shown in
// place of the quote.
type Fetcher interface {
	Fetch(ctx context.Context, inst kabuka.Instrument) (kabuka.Quote, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, inst kabuka.Instrument) (kabuka.Quote, error)

func (f FetcherFunc) Fetch(ctx context.Context, inst kabuka.Instrument) (kabuka.Quote, error) {
	return f(ctx, inst)
}

// Runner runs refresh cycles over a fixed set of instruments.
type Runner struct {
	fetcher Fetcher
	engine  *kabuka.EngineHandle
	tracked []kabuka.Tracked
	board   *Board
	clock   clockwork.Clock

	seq atomic.Uint64
}

// NewRunner returns a runner showing its results on board, which can be nil.
// A nil clock is the real clock.
func NewRunner(f Fetcher, engine *kabuka.EngineHandle, tracked []kabuka.Tracked, board *Board, clock clockwork.Clock) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		fetcher: f,
		engine:  engine,
		tracked: tracked,
		board:   board,
		clock:   clock,
	}
}

// Board returns the board of r.
func (r *Runner) Board() *Board { return r.board }

// Tracked returns the instruments of r.
func (r *Runner) Tracked() []kabuka.Tracked { return r.tracked }

// Next issues a new cycle token. Tokens increase strictly.
func (r *Runner) Next() uint64 { return r.seq.Add(1) }

// Issued returns the last issued token.
func (r *Runner) Issued() uint64 { return r.seq.Load() }

// Refresh runs one cycle with a new token.
func (r *Runner) Refresh(ctx context.Context) kabuka.Snapshot {
	return r.Run(ctx, r.Next())
}

// Run fetches every instrument concurrently. Each entry is shown as soon as
// its fetch settles, a failure never holds back the others. The summary is
// computed once all fetches have settled.
func (r *Runner) Run(ctx context.Context, token uint64) kabuka.Snapshot {
	e := r.engine.Engine()
	log := logger.Logger.With().Uint64("cycle", token).Logger()
	started := r.clock.Now()

	entries := make([]kabuka.Entry, len(r.tracked))
	var wg sync.WaitGroup
	for i, t := range r.tracked {
		wg.Add(1)
		go func() {
			defer wg.Done()
			begin := r.clock.Now()
			q, err := r.fetcher.Fetch(ctx, t.Instrument)
			metrics.RecordFetch(t.Key, err, r.clock.Since(begin))

			at := r.clock.Now()
			var en kabuka.Entry
			if err != nil {
				log.Warn().Err(err).Str("instrument", t.Key).Msg("fetch failed")
				en = kabuka.Failed(t, err, token, at)
			} else {
				en = kabuka.Evaluate(e, t, q, token, at)
			}
			entries[i] = en
			if r.board != nil && !r.board.Apply(en) {
				log.Debug().Str("instrument", t.Key).Msg("stale result dropped")
			}
		}()
	}
	wg.Wait()

	snap := kabuka.Snapshot{
		Cycle:    token,
		Started:  started,
		Finished: r.clock.Now(),
		Engine:   e.Name(),
		Entries:  entries,
		Summary:  kabuka.Summarize(e, entries),
	}
	if r.board == nil || r.board.Publish(snap) {
		metrics.SetPortfolio(snap.Summary.TotalMarketValue, snap.Summary.TotalCost, snap.Summary.TotalGain)
	}
	log.Debug().
		Int("failed", len(snap.Errors())).
		Dur("duration", snap.Finished.Sub(snap.Started)).
		Msg("refresh cycle done")
	return snap
}
