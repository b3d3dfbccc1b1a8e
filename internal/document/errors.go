package document

import (
	"errors"
	"fmt"
)

// Kind classifies document failures.
type Kind int

const (
	// KindTransientIO means the file is temporarily unavailable.
	KindTransientIO Kind = iota + 1
	// KindEngineFailure means a single page failed to rasterize or scan.
	KindEngineFailure
	// KindFatalOpen means the document cannot be opened at all.
	KindFatalOpen
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient io"
	case KindEngineFailure:
		return "engine failure"
	case KindFatalOpen:
		return "fatal open"
	default:
		return "unknown"
	}
}

// Sentinel errors matching each Kind via errors.Is.
var (
	ErrTransientIO   = errors.New("document temporarily unavailable")
	ErrEngineFailure = errors.New("page engine failure")
	ErrFatalOpen     = errors.New("document cannot be opened")

	ErrPageRange = errors.New("page out of range")
	ErrClosed    = errors.New("document is closed")
)

// Error is a classified document failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	// Page is -1 for whole-document operations.
	Page int
	Err  error
}

// NewError builds an Error for a whole-document operation.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Page: -1, Err: err}
}

// PageError builds an EngineFailure for one page.
func PageError(op, path string, page int, err error) *Error {
	return &Error{Kind: KindEngineFailure, Op: op, Path: path, Page: page, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Page >= 0 {
		msg += fmt.Sprintf(" page %d", e.Page+1)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransientIO:
		return e.Kind == KindTransientIO
	case ErrEngineFailure:
		return e.Kind == KindEngineFailure
	case ErrFatalOpen:
		return e.Kind == KindFatalOpen
	}
	return false
}

// KindOf returns the kind of err, or 0 if err is not classified.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsTransient reports whether err is a TransientIO failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransientIO) }

// IsFatal reports whether err is a FatalOpen failure.
func IsFatal(err error) bool { return errors.Is(err, ErrFatalOpen) }

// IsEngineFailure reports whether err is isolated to a single page.
func IsEngineFailure(err error) bool { return errors.Is(err, ErrEngineFailure) }
