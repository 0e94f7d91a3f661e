package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/etnz/kabuka"
	"github.com/etnz/kabuka/refresh"
)

// PortfolioView is the page model: every shown entry and the last summary.
type PortfolioView struct {
	Entries   []kabuka.Entry          `json:"entries"`
	Summary   kabuka.PortfolioSummary `json:"summary"`
	Formatted FormattedSummary        `json:"formatted"`
	Cycle     uint64                  `json:"cycle"`
	Scheduler refresh.State           `json:"scheduler"`
}

// FormattedSummary holds the summary amounts as displayed.
type FormattedSummary struct {
	TotalCost        string `json:"total_cost"`
	TotalMarketValue string `json:"total_market_value"`
	TotalGain        string `json:"total_gain"`
}

// SchedulerView is the countdown state with the selectable intervals.
type SchedulerView struct {
	refresh.State
	Options []int `json:"options"`
}

type intervalRequest struct {
	Interval int `json:"interval"`
}

func (s *Server) view() PortfolioView {
	snap, _ := s.board.Snapshot()
	return PortfolioView{
		Entries: s.board.Entries(),
		Summary: snap.Summary,
		Formatted: FormattedSummary{
			TotalCost:        s.engine.FormatJPY(snap.Summary.TotalCost),
			TotalMarketValue: s.engine.FormatJPY(snap.Summary.TotalMarketValue),
			TotalGain:        s.engine.FormatJPY(snap.Summary.TotalGain),
		},
		Cycle:     snap.Cycle,
		Scheduler: s.sched.State(),
	}
}

func (s *Server) schedulerView() SchedulerView {
	return SchedulerView{State: s.sched.State(), Options: s.sched.Options()}
}

func (s *Server) health(c *fiber.Ctx) error {
	return success(c, fiber.Map{"status": "ok"})
}

func (s *Server) portfolio(c *fiber.Ctx) error {
	return success(c, s.view())
}

func (s *Server) instrument(c *fiber.Ctx) error {
	en, ok := s.board.Entry(c.Params("key"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown instrument "+c.Params("key"))
	}
	return success(c, en)
}

func (s *Server) refresh(c *fiber.Ctx) error {
	if err := s.sched.Refresh(c.UserContext()); err != nil {
		return schedulerError(err)
	}
	return success(c, s.view())
}

func (s *Server) scheduler(c *fiber.Ctx) error {
	return success(c, s.schedulerView())
}

// start accepts an optional {"interval": n}, the current interval otherwise.
func (s *Server) start(c *fiber.Ctx) error {
	req := intervalRequest{Interval: s.sched.State().IntervalSeconds}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := s.sched.Start(req.Interval); err != nil {
		return schedulerError(err)
	}
	return success(c, s.schedulerView())
}

func (s *Server) stop(c *fiber.Ctx) error {
	if err := s.sched.Stop(); err != nil {
		return schedulerError(err)
	}
	return success(c, s.schedulerView())
}

func (s *Server) interval(c *fiber.Ctx) error {
	var req intervalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.sched.ChangeInterval(req.Interval); err != nil {
		return schedulerError(err)
	}
	return success(c, s.schedulerView())
}

func (s *Server) engineInfo(c *fiber.Ctx) error {
	info := fiber.Map{
		"engine":   s.engine.Engine().Name(),
		"fallback": s.engine.Fallback(),
	}
	if err := s.engine.Cause(); err != nil {
		info["cause"] = err.Error()
	}
	return success(c, info)
}

// parse reads a decorated price from ?amount=.
func (s *Server) parse(c *fiber.Ctx) error {
	raw := c.Query("amount")
	if raw == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing amount")
	}
	e := s.engine.Engine()
	v := e.ParseStockPrice(raw)
	return success(c, fiber.Map{
		"amount":    raw,
		"value":     v,
		"formatted": e.FormatCurrencyJPY(v),
	})
}

func schedulerError(err error) error {
	switch {
	case errors.Is(err, refresh.ErrRunning), errors.Is(err, refresh.ErrIdle), errors.Is(err, refresh.ErrDisposed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, refresh.ErrInterval):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}
