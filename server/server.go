// Package server exposes a refresh session over HTTP.
//
// The browser page polls /api/portfolio and drives the auto update through
// /api/scheduler. Trading sessions, when configured, start and stop the
// auto update at market open and close.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/logger"
	"github.com/etnz/kabuka/metrics"
	"github.com/etnz/kabuka/refresh"
)

// Session is a trading session in cron syntax.
type Session struct {
	Start string
	Stop  string
}

// Server is the HTTP surface of one refresh session.
type Server struct {
	app    *fiber.App
	sched  *refresh.Scheduler
	board  *refresh.Board
	engine *kabuka.EngineHandle
	cron   *cron.Cron
}

// New returns a server for sched, showing board. sessions are evaluated in
// loc.
func New(sched *refresh.Scheduler, board *refresh.Board, engine *kabuka.EngineHandle, sessions []Session, loc *time.Location) (*Server, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		sched:  sched,
		board:  board,
		engine: engine,
		cron:   cron.New(cron.WithLocation(loc)),
	}
	for i, ss := range sessions {
		if _, err := s.cron.AddFunc(ss.Start, s.openSession); err != nil {
			return nil, fmt.Errorf("session %d start %q: %w", i, ss.Start, err)
		}
		if _, err := s.cron.AddFunc(ss.Stop, s.closeSession); err != nil {
			return nil, fmt.Errorf("session %d stop %q: %w", i, ss.Stop, err)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "kabuka",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.app.Use(requestIDMiddleware())
	s.app.Use(logMiddleware())
	s.app.Use(metrics.Middleware("/metrics", "/health"))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	s.routes()
	return s, nil
}

// App returns the fiber application, for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Get("/metrics", metrics.Handler())

	api := s.app.Group("/api")
	api.Get("/portfolio", s.portfolio)
	api.Get("/portfolio/:key", s.instrument)
	api.Post("/refresh", s.refresh)
	api.Get("/scheduler", s.scheduler)
	api.Post("/scheduler/start", s.start)
	api.Post("/scheduler/stop", s.stop)
	api.Put("/scheduler/interval", s.interval)
	api.Get("/engine", s.engineInfo)
	api.Get("/parse", s.parse)
}

// Listen serves on addr until ctx is done, then shuts down. The trading
// sessions run meanwhile.
func (s *Server) Listen(ctx context.Context, addr string) error {
	s.cron.Start()
	defer func() { <-s.cron.Stop().Done() }()

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) openSession() {
	err := s.sched.Start(s.sched.State().IntervalSeconds)
	switch {
	case err == nil:
		logger.Info().Msg("trading session opened")
	case errors.Is(err, refresh.ErrRunning):
	default:
		logger.Error().Err(err).Msg("cannot open trading session")
	}
}

func (s *Server) closeSession() {
	err := s.sched.Stop()
	switch {
	case err == nil:
		logger.Info().Msg("trading session closed")
	case errors.Is(err, refresh.ErrIdle):
	default:
		logger.Error().Err(err).Msg("cannot close trading session")
	}
}
