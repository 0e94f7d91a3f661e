package kabuka

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/etnz/kabuka/logger"
)

// ErrEngineUnavailable reports that the native engine could not be used.
// EngineHandle absorbs it, callers only see it through Cause.
var ErrEngineUnavailable = errors.New("native engine unavailable")

// Loader provides the native engine, or an error when it cannot.
type Loader func() (Engine, error)

// Engine modes accepted by LoaderFor.
const (
	ModeNative  = "native"
	ModeBuiltin = "builtin"
)

// LoaderFor returns the loader for a configured engine mode.
func LoaderFor(mode string) (Loader, error) {
	switch mode {
	case ModeNative, "":
		return func() (Engine, error) { return Decimal, nil }, nil
	case ModeBuiltin:
		return func() (Engine, error) {
			return nil, errors.New("disabled by configuration")
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q, want %q or %q", mode, ModeNative, ModeBuiltin)
	}
}

// EngineHandle resolves the engine of a session exactly once.
//
// The first call to Engine runs the loader and calibrates its result against
// Builtin. On any failure Builtin is used instead, and the choice is never
// revisited for the lifetime of the handle.
type EngineHandle struct {
	load Loader

	once     sync.Once
	engine   Engine
	fallback bool
	cause    error
}

// NewEngineHandle returns an unresolved handle.
func NewEngineHandle(load Loader) *EngineHandle {
	return &EngineHandle{load: load}
}

// Init resolves the engine now rather than on first use.
func (h *EngineHandle) Init() Engine { return h.Engine() }

// Engine returns the resolved engine, resolving it on first call.
func (h *EngineHandle) Engine() Engine {
	h.once.Do(h.resolve)
	return h.engine
}

// Fallback reports whether Builtin was substituted for the native engine.
func (h *EngineHandle) Fallback() bool {
	h.Engine()
	return h.fallback
}

// Cause returns why the native engine was not used, nil if it is.
func (h *EngineHandle) Cause() error {
	h.Engine()
	return h.cause
}

func (h *EngineHandle) resolve() {
	e, err := h.tryNative()
	if err != nil {
		logger.Debug().Err(err).Msg("using builtin engine")
		h.engine, h.fallback, h.cause = Builtin, true, err
		return
	}
	logger.Debug().Str("engine", e.Name()).Msg("native engine loaded")
	h.engine = e
}

func (h *EngineHandle) tryNative() (e Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("%w: loader panic: %v", ErrEngineUnavailable, r)
		}
	}()

	if h.load == nil {
		return nil, fmt.Errorf("%w: no loader", ErrEngineUnavailable)
	}
	e, err = h.load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: loader returned no engine", ErrEngineUnavailable)
	}
	if err := Calibrate(e, Builtin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return e, nil
}

// sameFloat reports whether a and b are the same float64, sign of zero
// included.
func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b && math.Signbit(a) == math.Signbit(b)
}

// calibration inputs, shared with the equivalence tests.
var (
	calibrationPrices = []string{
		"", "N/A", "350", "¥1,234.56", "$39,112.16", "-12.5%", "+0.45", "1.2.3",
		"147.25円", "-0", ".5", "5.", "--5", "38,400.00 JPY", "1e3",
	}
	calibrationPairs = [][2]float64{
		{0, 0}, {1000, 350}, {1000, 333}, {100, 977}, {300, 1801}, {100, 0},
		{3, 0.1}, {0.1, 0.2}, {17000, 333000}, {-500, 1000}, {1, -1}, {12345678, 9876.54321},
		{3, 1020.3}, {100, 977.3}, {3, 977.3}, {7, 0.07}, {3060.9, 2931.9}, {102050, 97730},
	}
	calibrationAmounts = []float64{
		0, 1, -1, 0.5, -0.5, 2.5, 1234.56, -1234.5, 350000, 1e12, 17000.4999,
		0.49999999999999994, 9.2e18, 1e19, -1e19, math.MaxFloat64, -math.MaxFloat64,
	}
)

// Calibrate checks that candidate returns exactly what reference returns on
// a fixed battery of inputs. It returns the first disagreement found.
func Calibrate(candidate, reference Engine) error {
	for _, raw := range calibrationPrices {
		got, want := candidate.ParseStockPrice(raw), reference.ParseStockPrice(raw)
		if !sameFloat(got, want) {
			return fmt.Errorf("ParseStockPrice(%q) = %v, want %v", raw, got, want)
		}
	}
	for _, p := range calibrationPairs {
		a, b := p[0], p[1]
		if got, want := candidate.CalculatePortfolioValue(a, b), reference.CalculatePortfolioValue(a, b); !sameFloat(got, want) {
			return fmt.Errorf("CalculatePortfolioValue(%v, %v) = %v, want %v", a, b, got, want)
		}
		if got, want := candidate.CalculateUnrealizedGain(a, b), reference.CalculateUnrealizedGain(a, b); !sameFloat(got, want) {
			return fmt.Errorf("CalculateUnrealizedGain(%v, %v) = %v, want %v", a, b, got, want)
		}
		if got, want := candidate.CalculateGainPercentage(a, b), reference.CalculateGainPercentage(a, b); !sameFloat(got, want) {
			return fmt.Errorf("CalculateGainPercentage(%v, %v) = %v, want %v", a, b, got, want)
		}
	}
	for _, v := range calibrationAmounts {
		if got, want := candidate.FormatCurrencyJPY(v), reference.FormatCurrencyJPY(v); got != want {
			return fmt.Errorf("FormatCurrencyJPY(%v) = %q, want %q", v, got, want)
		}
	}
	return nil
}
