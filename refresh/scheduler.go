package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/metrics"
)

var (
	ErrRunning  = errors.New("auto update is already running")
	ErrIdle     = errors.New("auto update is not running")
	ErrInterval = errors.New("invalid auto update interval")
	ErrDisposed = errors.New("scheduler is disposed")
)

// DefaultIntervals are the selectable auto update periods, in seconds.
var DefaultIntervals = []int{10, 30, 60, 300, 600}

// DefaultInterval is the preselected period.
const DefaultInterval = 60

// Cycle triggers, as counted in metrics.
const (
	TriggerStart  = "start"
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// State is what the countdown display shows.
type State struct {
	Running          bool `json:"running"`
	IntervalSeconds  int  `json:"interval_seconds"`
	RemainingSeconds int  `json:"remaining_seconds"`
	// Updating is set while the countdown sits at 0 and its cycle runs.
	Updating bool `json:"updating"`
}

// Scheduler periodically runs refresh cycles.
//
// A countdown ticks once per second. When it reaches 0 a cycle starts, and
// the countdown is reset once that cycle completes, so timer cycles never
// overlap: a cycle due while another one is in flight waits for it.
//
// Stop never cancels in-flight fetches, their results still reach the board
// according to its StalePolicy. Dispose does cancel them.
type Scheduler struct {
	runner  *Runner
	clock   clockwork.Clock
	options []int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	running   bool
	disposed  bool
	interval  int
	remaining int
	updating  bool
	inflight  bool
	pending   bool
	gen       uint64
	session   string
	stop      chan struct{}
	loopDone  chan struct{}
}

// NewScheduler returns an idle scheduler. options are the accepted
// intervals, DefaultIntervals when empty, and interval the one used by the
// next Start.
func NewScheduler(r *Runner, clock clockwork.Clock, options []int, interval int) (*Scheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if len(options) == 0 {
		options = DefaultIntervals
	}
	if !slices.Contains(options, interval) {
		return nil, fmt.Errorf("%w: %d is not one of %v", ErrInterval, interval, options)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   r,
		clock:    clock,
		options:  slices.Clone(options),
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}, nil
}

// Options returns the accepted intervals.
func (s *Scheduler) Options() []int { return slices.Clone(s.options) }

func (s *Scheduler) checkInterval(n int) error {
	if !slices.Contains(s.options, n) {
		return fmt.Errorf("%w: %d is not one of %v", ErrInterval, n, s.options)
	}
	return nil
}

// Start runs a cycle now and arms the countdown for interval seconds.
func (s *Scheduler) Start(interval int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.running {
		return ErrRunning
	}
	if err := s.checkInterval(interval); err != nil {
		return err
	}
	s.startLocked(interval)
	return nil
}

// Stop disarms the countdown. No cycle starts after Stop returns.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrIdle
	}
	done := s.stopLocked()
	s.mu.Unlock()
	<-done
	return nil
}

// ChangeInterval sets the period. A running scheduler is restarted with it,
// which runs a cycle now; an idle one uses it at the next Start.
func (s *Scheduler) ChangeInterval(n int) error {
	s.mu.Lock()
	if err := s.checkInterval(n); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.running {
		s.interval = n
		s.mu.Unlock()
		return nil
	}
	done := s.stopLocked()
	s.startLocked(n)
	s.mu.Unlock()
	<-done
	return nil
}

// State returns the current countdown state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Running:          s.running,
		IntervalSeconds:  s.interval,
		RemainingSeconds: s.remaining,
		Updating:         s.updating,
	}
}

// Refresh runs one cycle now, outside of the countdown.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	// Dispose cancels manual cycles too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	metrics.RecordCycle(TriggerManual)
	s.runner.Refresh(ctx)
	return nil
}

// Dispose stops the scheduler, cancels in-flight cycles and waits for them.
// The scheduler cannot be started again.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	var done chan struct{}
	if s.running {
		done = s.stopLocked()
	}
	s.cancel()
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.wg.Wait()
}

func (s *Scheduler) log() *zerolog.Logger {
	l := logger.Logger.With().Str("session", s.session).Logger()
	return &l
}

func (s *Scheduler) startLocked(interval int) {
	s.gen++
	s.session = uuid.NewString()
	s.running = true
	s.interval = interval
	s.remaining = interval
	s.updating = false
	s.pending = false
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})

	ticker := s.clock.NewTicker(time.Second)
	go s.loop(s.gen, ticker, s.stop, s.loopDone)

	metrics.SetRunning(true)
	s.log().Info().Int("interval", interval).Msg("auto update started")
	if s.inflight {
		// the previous session's cycle is still running
		s.pending = true
		return
	}
	s.launchLocked(TriggerStart)
}

// stopLocked returns a channel closed when the countdown loop has exited.
func (s *Scheduler) stopLocked() chan struct{} {
	s.gen++
	s.running = false
	s.remaining = 0
	s.updating = false
	s.pending = false
	close(s.stop)
	if b := s.runner.Board(); b != nil {
		b.Reset(s.runner.Issued() + 1)
	}

	metrics.SetRunning(false)
	s.log().Info().Msg("auto update stopped")
	return s.loopDone
}

func (s *Scheduler) loop(gen uint64, ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.tick(gen)
		}
	}
}

// tick advances the countdown by one second.
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.running || s.updating {
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return
	}
	s.updating = true
	if s.inflight {
		s.pending = true
		return
	}
	s.launchLocked(TriggerTimer)
}

func (s *Scheduler) launchLocked(trigger string) {
	gen := s.gen
	s.inflight = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		metrics.RecordCycle(trigger)
		s.runner.Refresh(s.ctx)
		s.completed(gen, trigger)
	}()
}

func (s *Scheduler) completed(gen uint64, trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	if !s.running {
		return
	}
	if s.pending {
		s.pending = false
		trigger = TriggerStart
		if s.updating {
			trigger = TriggerTimer
		}
		s.launchLocked(trigger)
		return
	}
	if gen == s.gen && trigger == TriggerTimer {
		s.updating = false
		s.remaining = s.interval
	}
}
