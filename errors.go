package kabuka

import (
	"errors"
	"fmt"
)

// FetchKind classifies why a quote could not be fetched.
type FetchKind int

const (
	// FetchTransport is a network failure, a timeout or a non-2xx status.
	FetchTransport FetchKind = iota + 1
	// FetchFormat is a body that is not the expected JSON envelope.
	FetchFormat
	// FetchSemantic is an envelope with success set to false.
	FetchSemantic
)

func (k FetchKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchFormat:
		return "format"
	case FetchSemantic:
		return "semantic"
	default:
		return fmt.Sprintf("FetchKind(%d)", int(k))
	}
}

// Sentinels to test a fetch error kind with errors.Is.
var (
	ErrFetchTransport = errors.New("quote transport error")
	ErrFetchFormat    = errors.New("quote format error")
	ErrFetchSemantic  = errors.New("quote rejected by the API")
)

// FetchError is the only error returned by quote fetching.
type FetchError struct {
	Kind       FetchKind
	Instrument string
	// Message is the human readable cause, shown in place of the quote.
	Message string
	Err     error
}

// NewFetchError builds a FetchError with a formatted message.
func NewFetchError(kind FetchKind, instrument string, err error, format string, args ...any) *FetchError {
	return &FetchError{
		Kind:       kind,
		Instrument: instrument,
		Message:    fmt.Sprintf(format, args...),
		Err:        err,
	}
}

func (e *FetchError) Error() string {
	if e.Instrument == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Instrument, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrFetchTransport:
		return e.Kind == FetchTransport
	case ErrFetchFormat:
		return e.Kind == FetchFormat
	case ErrFetchSemantic:
		return e.Kind == FetchSemantic
	}
	return false
}

// FetchMessage returns the text to display for err.
func FetchMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
